package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/quanghuy1258/wallet/build"
	"github.com/quanghuy1258/wallet/walletdb"
	"github.com/urfave/cli"
)

const (
	defaultDBDir      = "walletdb"
	defaultDebugLevel = "warn"
	defaultLogFile    = "walletdbctl.log"
)

// config is the walletdbctl configuration. The ini file uses the group
// names as sections, e.g. [db] and [logging].
//
//nolint:lll
type config struct {
	DB *walletdb.Config `group:"db" namespace:"db"`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} or <subsystem>=<level>,... pairs."`

	LogDir string `long:"logdir" description:"Directory to write the rotated log file to. Logs only go to the console if empty."`

	Logging *build.LogConfig `group:"logging" namespace:"logging"`
}

func defaultConfig(dir string) *config {
	return &config{
		DB:         walletdb.DefaultConfig(dir),
		DebugLevel: defaultDebugLevel,
		Logging:    build.DefaultLogConfig(),
	}
}

// loadConfig builds the configuration from the defaults, the optional config
// file and finally the global command line flags.
func loadConfig(ctx *cli.Context) (*config, error) {
	cfg := defaultConfig(ctx.GlobalString("dir"))

	if path := ctx.GlobalString("configfile"); path != "" {
		if err := parseConfigFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if ctx.GlobalIsSet("dir") {
		cfg.DB.Dir = ctx.GlobalString("dir")
	}
	if ctx.GlobalIsSet("backend") {
		cfg.DB.Backend = ctx.GlobalString("backend")
	}
	if ctx.GlobalIsSet("debuglevel") {
		cfg.DebugLevel = ctx.GlobalString("debuglevel")
	}
	if ctx.GlobalIsSet("logdir") {
		cfg.LogDir = ctx.GlobalString("logdir")
	}

	if err := cfg.DB.Validate(); err != nil {
		return nil, fmt.Errorf("invalid db config: %w", err)
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return cfg, nil
}

// parseConfigFile reads the ini file at path into cfg.
func parseConfigFile(cfg *config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	if err := flags.IniParse(path, cfg); err != nil {
		return fmt.Errorf("unable to parse config file %v: %w", path,
			err)
	}

	return nil
}
