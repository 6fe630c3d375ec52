package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/quanghuy1258/wallet/walletdb"
	"github.com/urfave/cli"
)

var backupCommand = cli.Command{
	Name:      "backup",
	Category:  "Maintenance",
	Usage:     "Copy a database file to a backup location.",
	ArgsUsage: "file dest",
	Description: `
	Checkpoint the environment and copy the database file to dest. If
	dest is a directory the copy keeps the file name.`,
	Flags: []cli.Flag{
		cli.DurationFlag{
			Name:  "timeout",
			Value: time.Minute,
			Usage: "How long to wait for the file to become idle.",
		},
	},
	Action: actionDecorator(backup),
}

func backup(ctx *cli.Context, env *walletdb.Environment) error {
	args := ctx.Args()
	if len(args) != 2 {
		return cli.ShowCommandHelp(ctx, "backup")
	}

	db, err := env.OpenDatabase(args.First())
	if err != nil {
		return err
	}
	defer db.Release()

	timeoutCtx, cancel := context.WithTimeout(
		context.Background(), ctx.Duration("timeout"),
	)
	defer cancel()

	if err := db.Backup(timeoutCtx, args.Get(1)); err != nil {
		return err
	}

	fmt.Printf("Backed up %v to %v\n", args.First(), args.Get(1))

	return nil
}

var verifyCommand = cli.Command{
	Name:      "verify",
	Category:  "Maintenance",
	Usage:     "Check the structural integrity of a database file.",
	ArgsUsage: "file",
	Action:    actionDecorator(verify),
}

func verify(ctx *cli.Context, env *walletdb.Environment) error {
	filename, err := fileArg(ctx)
	if err != nil {
		return err
	}

	if err := env.Verify(filename); err != nil {
		return err
	}

	fmt.Printf("%v: ok\n", filename)

	return nil
}

var flushCommand = cli.Command{
	Name:     "flush",
	Category: "Maintenance",
	Usage:    "Checkpoint the environment and prune archived logs.",
	Description: `
	Force a checkpoint and shut the environment down cleanly, removing
	all but the newest archived log files. Prints the environment
	statistics before the shutdown.`,
	Action: actionDecorator(flush),
}

func flush(_ *cli.Context, env *walletdb.Environment) error {
	if err := env.Flush(false); err != nil {
		return err
	}

	printStats(os.Stdout, env.Directory(), env.Stats())

	// The decorator runs the shutdown flush.
	return nil
}

// printStats renders the environment bookkeeping as a table.
func printStats(w io.Writer, dir string, stats walletdb.Stats) {
	fmt.Fprintf(w, "Environment %v: %d databases, %d checkpoints\n", dir,
		stats.Databases, stats.Checkpoints)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"File", "Open", "Batches"})

	open := make(map[string]bool, len(stats.OpenFiles))
	for _, name := range stats.OpenFiles {
		open[name] = true
	}

	names := make([]string, 0, len(stats.UseCounts))
	for name := range stats.UseCounts {
		names = append(names, name)
	}
	for name := range open {
		if _, ok := stats.UseCounts[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		t.AppendRow(table.Row{name, open[name], stats.UseCounts[name]})
	}
	t.Render()
}
