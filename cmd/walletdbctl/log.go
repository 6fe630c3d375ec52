package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog/v2"
	"github.com/quanghuy1258/wallet/build"
	"github.com/quanghuy1258/wallet/dirlock"
	"github.com/quanghuy1258/wallet/engine/boltengine"
	"github.com/quanghuy1258/wallet/engine/memengine"
	"github.com/quanghuy1258/wallet/walletdb"
)

// Subsystem is the logging code of the command itself.
const Subsystem = "WDBC"

var log = btclog.Disabled

// setupLogging wires every package logger to the console and, if a log
// directory is configured, to a rotated log file. The returned function
// flushes and closes the file.
func setupLogging(cfg *config) (func(), error) {
	var console io.Writer = os.Stderr
	if cfg.Logging.Console.Disable {
		console = nil
	}

	rotator := build.NewRotatingLogWriter()
	if cfg.LogDir != "" && !cfg.Logging.File.Disable {
		logFile := filepath.Join(cfg.LogDir, defaultLogFile)
		err := rotator.InitLogRotator(cfg.Logging.File, logFile)
		if err != nil {
			return nil, err
		}
	}

	writer := &build.LogWriter{
		Console: console,
		File:    rotator,
	}
	mgr := build.NewSubLoggerManager(
		writer, cfg.Logging.Console.HandlerOptions()...,
	)

	mgr.RegisterSubLogger(Subsystem, func(l btclog.Logger) { log = l })
	mgr.RegisterSubLogger(walletdb.Subsystem, walletdb.UseLogger)
	mgr.RegisterSubLogger(boltengine.Subsystem, boltengine.UseLogger)
	mgr.RegisterSubLogger(memengine.Subsystem, memengine.UseLogger)
	mgr.RegisterSubLogger(dirlock.Subsystem, dirlock.UseLogger)

	if err := build.ParseAndSetDebugLevels(cfg.DebugLevel, mgr); err != nil {
		_ = rotator.Close()
		return nil, err
	}

	return func() {
		_ = rotator.Close()
	}, nil
}
