package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[walletdbctl] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "walletdbctl"
	app.Usage = "inspect and maintain wallet database environments"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:      "dir, d",
			Value:     defaultDBDir,
			Usage:     "The database environment directory.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name:      "configfile",
			Usage:     "Path to an ini configuration file.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name: "backend",
			Usage: "The storage engine, one of bolt or memory. " +
				"Overrides the config file.",
		},
		cli.StringFlag{
			Name: "debuglevel",
			Usage: "Logging level for all subsystems {trace, " +
				"debug, info, warn, error, critical} or " +
				"<subsystem>=<level>,... pairs.",
		},
		cli.StringFlag{
			Name:      "logdir",
			Usage:     "Also write logs to a rotated file in this directory.",
			TakesFile: true,
		},
	}
	app.Commands = []cli.Command{
		putCommand,
		getCommand,
		eraseCommand,
		dumpCommand,
		importCommand,
		backupCommand,
		verifyCommand,
		flushCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
