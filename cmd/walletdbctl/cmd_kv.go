package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/quanghuy1258/wallet/walletdb"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

var hexFlag = cli.BoolFlag{
	Name:  "hex",
	Usage: "Keys and values are given and printed hex encoded.",
}

// decodeArg returns the raw bytes of a key or value argument.
func decodeArg(arg string, isHex bool) ([]byte, error) {
	if !isHex {
		return []byte(arg), nil
	}

	b, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", arg, err)
	}

	return b, nil
}

// encodeValue renders b for output.
func encodeValue(b []byte, isHex bool) string {
	if isHex {
		return hex.EncodeToString(b)
	}

	return string(b)
}

var putCommand = cli.Command{
	Name:      "put",
	Category:  "Records",
	Usage:     "Write a record to a database file.",
	ArgsUsage: "file key value",
	Description: `
	Store value under key in the given database file. The file is created
	if it does not exist yet. Unless --overwrite is set an existing key is
	left untouched and the command fails.`,
	Flags: []cli.Flag{
		hexFlag,
		cli.BoolFlag{
			Name:  "overwrite",
			Usage: "Replace the value of an existing key.",
		},
	},
	Action: actionDecorator(put),
}

func put(ctx *cli.Context, env *walletdb.Environment) error {
	args := ctx.Args()
	if len(args) != 3 {
		return cli.ShowCommandHelp(ctx, "put")
	}

	key, err := decodeArg(args.Get(1), ctx.Bool("hex"))
	if err != nil {
		return err
	}
	value, err := decodeArg(args.Get(2), ctx.Bool("hex"))
	if err != nil {
		return err
	}

	return withBatch(env, args.First(), false, true,
		func(b *walletdb.Batch) error {
			return b.Put(key, value, ctx.Bool("overwrite"))
		},
	)
}

var getCommand = cli.Command{
	Name:      "get",
	Category:  "Records",
	Usage:     "Print the value stored under a key.",
	ArgsUsage: "file key",
	Flags:     []cli.Flag{hexFlag},
	Action:    actionDecorator(get),
}

func get(ctx *cli.Context, env *walletdb.Environment) error {
	args := ctx.Args()
	if len(args) != 2 {
		return cli.ShowCommandHelp(ctx, "get")
	}

	key, err := decodeArg(args.Get(1), ctx.Bool("hex"))
	if err != nil {
		return err
	}

	return withBatch(env, args.First(), true, false,
		func(b *walletdb.Batch) error {
			value, err := b.Get(key)
			if err != nil {
				return err
			}
			defer value.Wipe()

			fmt.Println(encodeValue(value.Bytes(), ctx.Bool("hex")))

			return nil
		},
	)
}

var eraseCommand = cli.Command{
	Name:      "erase",
	Category:  "Records",
	Usage:     "Remove a key from a database file.",
	ArgsUsage: "file key",
	Description: `
	Erase the record stored under key. Erasing a key that does not exist
	is not an error.`,
	Flags:  []cli.Flag{hexFlag},
	Action: actionDecorator(erase),
}

func erase(ctx *cli.Context, env *walletdb.Environment) error {
	args := ctx.Args()
	if len(args) != 2 {
		return cli.ShowCommandHelp(ctx, "erase")
	}

	key, err := decodeArg(args.Get(1), ctx.Bool("hex"))
	if err != nil {
		return err
	}

	return withBatch(env, args.First(), false, false,
		func(b *walletdb.Batch) error {
			return b.Erase(key)
		},
	)
}

// dumpEntry is a single record as printed by dump --verbose.
type dumpEntry struct {
	Key   []byte
	Value []byte
}

var dumpCommand = cli.Command{
	Name:      "dump",
	Category:  "Records",
	Usage:     "Print every record of a database file in key order.",
	ArgsUsage: "file",
	Description: `
	Print all records as hex encoded key=value lines. With --verbose
	every record is printed as a hex dump instead.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "Print a hex dump of every record.",
		},
	},
	Action: actionDecorator(dump),
}

func dump(ctx *cli.Context, env *walletdb.Environment) error {
	filename, err := fileArg(ctx)
	if err != nil {
		return err
	}

	return withBatch(env, filename, true, false,
		func(b *walletdb.Batch) error {
			return dumpRecords(os.Stdout, b, ctx.Bool("verbose"))
		},
	)
}

// dumpRecords writes every record of the batch's file to w.
func dumpRecords(w io.Writer, b *walletdb.Batch, verbose bool) error {
	c, err := b.OpenCursor()
	if err != nil {
		return err
	}
	defer c.Close()

	for {
		key, value, ok := c.Next()
		if !ok {
			break
		}

		if verbose {
			fmt.Fprint(w, spew.Sdump(dumpEntry{
				Key:   key.Bytes(),
				Value: value.Bytes(),
			}))
		} else {
			fmt.Fprintf(w, "%x=%x\n", key.Bytes(), value.Bytes())
		}

		key.Wipe()
		value.Wipe()
	}

	return c.Err()
}

var importCommand = cli.Command{
	Name:      "import",
	Category:  "Records",
	Usage:     "Load hex encoded key=value lines into a database file.",
	ArgsUsage: "file [path]",
	Description: `
	Read hex encoded key=value lines from path, or from stdin if no path
	is given, and write them to the database file in a single
	transaction. Empty lines and lines starting with # are skipped. The
	import is all or nothing.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "overwrite",
			Usage: "Replace the value of existing keys.",
		},
		cli.IntFlag{
			Name:  "workers",
			Value: 4,
			Usage: "Number of goroutines decoding input lines.",
		},
	},
	Action: actionDecorator(importRecords),
}

func importRecords(ctx *cli.Context, env *walletdb.Environment) error {
	filename, err := fileArg(ctx)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if path := ctx.Args().Get(1); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		in = f
	}

	entries, err := readImport(in, ctx.Int("workers"))
	if err != nil {
		return err
	}

	err = withBatch(env, filename, false, true,
		func(b *walletdb.Batch) error {
			return writeImport(b, entries, ctx.Bool("overwrite"))
		},
	)
	if err != nil {
		return err
	}

	log.Infof("Imported %d records into %v", len(entries), filename)

	return nil
}

// parseImportLine decodes a single hex key=value line.
func parseImportLine(line string) (*dumpEntry, error) {
	keyHex, valueHex, ok := strings.Cut(line, "=")
	if !ok {
		return nil, errors.New("missing '='")
	}

	key, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("empty key")
	}

	value, err := hex.DecodeString(strings.TrimSpace(valueHex))
	if err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}

	return &dumpEntry{Key: key, Value: value}, nil
}

// readImport reads all lines of in and decodes them with up to workers
// goroutines. The entries are returned in input order.
func readImport(in io.Reader, workers int) ([]*dumpEntry, error) {
	var (
		lines   []string
		lineNos []int
	)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(nil, 1<<20)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
		lineNos = append(lineNos, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if workers < 1 {
		workers = 1
	}

	entries := make([]*dumpEntry, len(lines))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range lines {
		g.Go(func() error {
			entry, err := parseImportLine(lines[i])
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNos[i], err)
			}
			entries[i] = entry

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

// writeImport stores entries in one transaction.
func writeImport(b *walletdb.Batch, entries []*dumpEntry,
	overwrite bool) error {

	if err := b.TxnBegin(); err != nil {
		return err
	}

	for _, entry := range entries {
		err := b.Put(entry.Key, entry.Value, overwrite)
		if err != nil {
			return errors.Join(
				fmt.Errorf("key %x: %w", entry.Key, err),
				b.TxnAbort(),
			)
		}
	}

	return b.TxnCommit()
}

