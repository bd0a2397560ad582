package lnchannels

import (
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnchannels/chainclient"
)

const (
	defaultLogFilename    = "lnchannelsd.log"
	defaultMaxLogFileSize = 10
	defaultMaxLogFiles    = 3
	defaultLogLevel       = "info"
	defaultCursorFile     = "cursor.dat"
	defaultScanInterval   = "1m"
	defaultDeduceWorkers  = 5
)

// Config is the daemon's full configuration, populated from command-line
// flags via go-flags, matching the teacher's single-struct-with-nested-groups
// convention.
type Config struct {
	LogDir         string `long:"logdir" description:"Directory to log output."`
	LogLevel       string `long:"loglevel" description:"Logging level for all subsystems."`
	MaxLogFileSize int64  `long:"maxlogfilesize" description:"Maximum log file size in MB before it gets rotated."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum number of rotated log files to keep."`

	CursorFile    string `long:"cursorfile" description:"Path to the scanner's persisted cursor."`
	ScanInterval  string `long:"scaninterval" description:"How often to run a catch-up block scan, as a Go duration string."`
	DeduceWorkers int    `long:"deduceworkers" description:"Number of parallel chain-analysis deducer workers."`
	SampleRate    float64 `long:"samplerate" description:"Fraction of deducer candidates to process per run (0,1]; 1 processes all."`

	Postgres string `long:"postgres" description:"Postgres connection string."`

	RPC     chainclient.RPCConfig     `group:"rpc" namespace:"rpc"`
	Esplora chainclient.EsploraConfig `group:"esplora" namespace:"esplora"`

	GossipURL   string `long:"gossipurl" description:"Base URL of the gossip-derived channel/node listing service."`
	GossipToken string `long:"gossiptoken" description:"Access token for the gossip RPC endpoint."`
}

// DefaultConfig returns a Config seeded with the daemon's defaults, prior
// to flag/file parsing overriding any of them.
func DefaultConfig() Config {
	return Config{
		LogLevel:       defaultLogLevel,
		MaxLogFileSize: defaultMaxLogFileSize,
		MaxLogFiles:    defaultMaxLogFiles,
		CursorFile:     defaultCursorFile,
		ScanInterval:   defaultScanInterval,
		DeduceWorkers:  defaultDeduceWorkers,
		SampleRate:     1,
	}
}

// LoadConfig parses command-line flags into a Config seeded with defaults.
// No config file is read.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
