package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quanghuy1258/wallet/walletdb"
	"github.com/stretchr/testify/require"
)

// TestParseImportLine checks the accepted and rejected import line forms.
func TestParseImportLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		key     []byte
		value   []byte
		wantErr bool
	}{
		{
			name:  "key and value",
			line:  "6b6579=76616c7565",
			key:   []byte("key"),
			value: []byte("value"),
		},
		{
			name:  "spaces around hex",
			line:  " 01 = 02 ",
			key:   []byte{1},
			value: []byte{2},
		},
		{
			name:  "empty value",
			line:  "01=",
			key:   []byte{1},
			value: []byte{},
		},
		{
			name:    "missing separator",
			line:    "0102",
			wantErr: true,
		},
		{
			name:    "empty key",
			line:    "=01",
			wantErr: true,
		},
		{
			name:    "bad hex",
			line:    "zz=01",
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			entry, err := parseImportLine(test.line)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.key, entry.Key)
			require.Equal(t, test.value, entry.Value)
		})
	}
}

// TestReadImport makes sure decoded entries keep the input order and that a
// bad line is reported with its line number.
func TestReadImport(t *testing.T) {
	t.Parallel()

	input := "# comment\n01=0a\n\n02=0b\n03=0c\n"
	entries, err := readImport(strings.NewReader(input), 2)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		require.Equal(t, []byte{byte(i + 1)}, entry.Key)
		require.Equal(t, []byte{byte(0x0a + i)}, entry.Value)
	}

	_, err = readImport(strings.NewReader("01=0a\nbroken\n"), 0)
	require.ErrorContains(t, err, "line 2")
}

// TestImportAndDump writes entries through writeImport and reads them back
// with dumpRecords.
func TestImportAndDump(t *testing.T) {
	t.Parallel()

	cfg := walletdb.DefaultConfig(t.TempDir())
	cfg.Coordinator = walletdb.NewCoordinator()

	env, err := walletdb.NewEnvironment(cfg)
	require.NoError(t, err)
	require.NoError(t, env.Open())
	t.Cleanup(func() {
		_ = env.Close()
	})

	entries, err := readImport(strings.NewReader("02=bb\n01=aa\n"), 4)
	require.NoError(t, err)

	err = withBatch(env, "wallet.dat", false, true,
		func(b *walletdb.Batch) error {
			return writeImport(b, entries, false)
		},
	)
	require.NoError(t, err)

	// A clashing key aborts the whole import.
	clash, err := readImport(strings.NewReader("03=cc\n01=ff\n"), 1)
	require.NoError(t, err)
	err = withBatch(env, "wallet.dat", false, false,
		func(b *walletdb.Batch) error {
			return writeImport(b, clash, false)
		},
	)
	require.ErrorIs(t, err, walletdb.ErrAlreadyExists)

	var out bytes.Buffer
	err = withBatch(env, "wallet.dat", true, false,
		func(b *walletdb.Batch) error {
			return dumpRecords(&out, b, false)
		},
	)
	require.NoError(t, err)
	require.Equal(t, "01=aa\n02=bb\n", out.String())

	out.Reset()
	err = withBatch(env, "wallet.dat", true, false,
		func(b *walletdb.Batch) error {
			return dumpRecords(&out, b, true)
		},
	)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Key:")
	require.Contains(t, out.String(), "Value:")
}

// TestParseConfigFile loads an ini file into the config structs.
func TestParseConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "walletdbctl.conf")
	conf := "debuglevel=debug,BOLT=trace\n\n" +
		"[db]\n" +
		"db.backend=memory\n" +
		"db.checkpointkb=64\n\n" +
		"[logging]\n" +
		"logging.console.no-timestamps=true\n"
	require.NoError(t, os.WriteFile(path, []byte(conf), 0600))

	cfg := defaultConfig(t.TempDir())
	require.NoError(t, parseConfigFile(cfg, path))

	require.Equal(t, "debug,BOLT=trace", cfg.DebugLevel)
	require.Equal(t, walletdb.MemoryBackend, cfg.DB.Backend)
	require.EqualValues(t, 64, cfg.DB.CheckpointKB)
	require.True(t, cfg.Logging.Console.NoTimestamps)

	err := parseConfigFile(cfg, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

// TestPrintStats checks that open files and batch counts end up in the table.
func TestPrintStats(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printStats(&out, "/tmp/wallet", walletdb.Stats{
		Initialized: true,
		UseCounts:   map[string]int{"wallet.dat": 2},
		OpenFiles:   []string{"wallet.dat", "peers.dat"},
		Databases:   2,
		Checkpoints: 7,
	})

	require.Contains(t, out.String(), "2 databases, 7 checkpoints")
	require.Contains(t, out.String(), "wallet.dat")
	require.Contains(t, out.String(), "peers.dat")
}
