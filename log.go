package lnchannels

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/lightningnetwork/lnchannels/chainclient"
	"github.com/lightningnetwork/lnchannels/closure"
	"github.com/lightningnetwork/lnchannels/deducer"
	"github.com/lightningnetwork/lnchannels/gossip"
	"github.com/lightningnetwork/lnchannels/scanner"
	"github.com/lightningnetwork/lnchannels/store"
)

// subsystems maps each logging subsystem tag to the UseLogger hook of the
// package it belongs to, so a single backend can fan out to every
// subsystem logger by tag.
var subsystems = map[string]func(btclog.Logger){
	"CHCL": chainclient.UseLogger,
	"GOSP": gossip.UseLogger,
	"SCAN": scanner.UseLogger,
	"CLSF": closure.UseLogger,
	"DEDU": deducer.UseLogger,
	"STOR": store.UseLogger,
}

var logRotator *rotator.Rotator

// daemonLog is the top-level daemon's own logger, tagged "LNCH", separate
// from the per-package subsystem loggers in subsystems.
var daemonLog = btclog.Disabled

// Log returns the daemon-level logger, for use by cmd/lnchannelsd.
func Log() btclog.Logger {
	return daemonLog
}

// InitLogging wires up the log rotator and every subsystem logger
// (including the daemon's own) from cfg.
func InitLogging(cfg *Config) error {
	if err := initLogRotator(
		cfg.LogDir+"/"+defaultLogFilename,
		cfg.MaxLogFileSize,
		cfg.MaxLogFiles,
	); err != nil {
		return err
	}

	setSubsystemLoggers(cfg.LogLevel)

	backend := btclog.NewBackend(logWriter{})
	daemonLog = backend.Logger("LNCH")
	lvl, ok := btclog.LevelFromString(cfg.LogLevel)
	if !ok {
		lvl = btclog.LevelInfo
	}
	daemonLog.SetLevel(lvl)

	return nil
}

// initLogRotator opens the log rotator that writes subsystem output to
// logFile, rolling over at maxLogFileSize megabytes and keeping
// maxLogFiles old files around.
func initLogRotator(logFile string, maxLogFileSize int64, maxLogFiles int) error {
	r, err := rotator.New(logFile, maxLogFileSize*1024*1024, false, maxLogFiles)
	if err != nil {
		return err
	}
	logRotator = r
	return nil
}

// setSubsystemLoggers builds one backend shared by every subsystem tag,
// writing to both stdout and the log rotator, creates one logger per tag
// at the given level, and wires it in via each package's UseLogger hook.
func setSubsystemLoggers(level string) {
	backend := btclog.NewBackend(logWriter{})
	for tag, use := range subsystems {
		logger := backend.Logger(tag)
		lvl, ok := btclog.LevelFromString(level)
		if !ok {
			lvl = btclog.LevelInfo
		}
		logger.SetLevel(lvl)
		use(logger)
	}
}

// logWriter fans out to stdout and the rotating log file, matching the
// teacher daemon's dual-sink logging setup.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}
