package main

import (
	"errors"
	"fmt"

	"github.com/quanghuy1258/wallet/walletdb"
	"github.com/urfave/cli"
)

// actionDecorator loads the configuration, sets up logging and hands the
// command an opened environment. The environment is flushed and shut down
// once the command returns.
func actionDecorator(f func(*cli.Context, *walletdb.Environment) error) func(
	*cli.Context) error {

	return func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		cleanup, err := setupLogging(cfg)
		if err != nil {
			return fmt.Errorf("unable to set up logging: %w", err)
		}
		defer cleanup()

		env, err := walletdb.NewEnvironment(cfg.DB)
		if err != nil {
			return err
		}
		if err := env.Open(); err != nil {
			return err
		}

		log.Debugf("Opened environment %v (%v backend)", env.Directory(),
			cfg.DB.Backend)

		cmdErr := f(ctx, env)

		// Flush(true) prunes the archived logs and closes the environment
		// when nothing is in use any more. Close covers the case where
		// the flush skipped the shutdown.
		flushErr := env.Flush(true)
		var closeErr error
		if env.IsInitialized() {
			closeErr = env.Close()
		}

		return errors.Join(cmdErr, flushErr, closeErr)
	}
}

// withBatch binds filename, runs f on a fresh batch and releases everything
// again.
func withBatch(env *walletdb.Environment, filename string, readOnly,
	create bool, f func(*walletdb.Batch) error) error {

	db, err := env.OpenDatabase(filename)
	if err != nil {
		return err
	}

	batch, err := db.NewBatch(readOnly, create)
	if err != nil {
		return errors.Join(err, db.Release())
	}

	runErr := f(batch)

	return errors.Join(runErr, batch.Close(), db.Release())
}

// fileArg returns the database file name given as the first argument.
func fileArg(ctx *cli.Context) (string, error) {
	if !ctx.Args().Present() {
		return "", fmt.Errorf("database file argument missing")
	}

	return ctx.Args().First(), nil
}
