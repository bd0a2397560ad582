package closure

import "github.com/btcsuite/btclog"

// log is the subsystem logger used throughout this package.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by closure.
func UseLogger(logger btclog.Logger) {
	log = logger
}
