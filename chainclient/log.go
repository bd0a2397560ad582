package chainclient

import "github.com/btcsuite/btclog"

// log is the subsystem logger used throughout this package. It defaults to
// the disabled logger so tests and library consumers don't see output
// unless they opt in via UseLogger.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by chainclient. This should
// be called before the package is used if the caller is not using the
// default logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
