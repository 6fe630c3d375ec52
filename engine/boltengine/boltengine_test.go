package boltengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quanghuy1258/wallet/engine"
	"github.com/quanghuy1258/wallet/engine/enginetest"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	t.Parallel()

	enginetest.Run(t, func(*testing.T) engine.Driver {
		return New()
	})
}

// TestFileLayout checks where the engine puts its files.
func TestFileLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env, err := New().Open(dir, engine.DefaultConfig("logs"))
	require.NoError(t, err)

	f, err := env.OpenFile("wallet.dat", true)
	require.NoError(t, err)
	require.NoError(t, f.Put(nil, []byte("k"), []byte("v"), true))
	require.NoError(t, f.Close())
	require.NoError(t, env.Close())

	require.Equal(t, filepath.Join(dir, "wallet.dat"), env.FilePath(
		"wallet.dat",
	))
	require.FileExists(t, filepath.Join(dir, "wallet.dat"))
	require.FileExists(t, filepath.Join(dir, "logs", segmentName(1)))
}

// TestArchivedAfterCheckpoints makes sure segments written before the last
// checkpoint are reported as archived, oldest first.
func TestArchivedAfterCheckpoints(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env, err := New().Open(dir, engine.DefaultConfig(""))
	require.NoError(t, err)
	defer func() { require.NoError(t, env.Close()) }()

	f, err := env.OpenFile("wallet.dat", true)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	archived, err := env.ArchivedLogFiles()
	require.NoError(t, err)
	require.Empty(t, archived)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Put(nil, []byte{byte(i)}, []byte("v"), true))
		require.NoError(t, env.Checkpoint(0, 0))
	}

	// A checkpoint without new writes does not add a segment.
	require.NoError(t, env.Checkpoint(0, 0))

	archived, err = env.ArchivedLogFiles()
	require.NoError(t, err)

	logDir := filepath.Join(dir, defaultLogSubdir)
	require.Equal(t, []string{
		filepath.Join(logDir, segmentName(1)),
		filepath.Join(logDir, segmentName(2)),
		filepath.Join(logDir, segmentName(3)),
		filepath.Join(logDir, segmentName(4)),
	}, archived)

	for _, path := range archived {
		require.NoError(t, os.Remove(path))
	}

	archived, err = env.ArchivedLogFiles()
	require.NoError(t, err)
	require.Empty(t, archived)
}

// TestTxnJournaled makes sure a committed transaction reaches the journal
// and an aborted one does not.
func TestTxnJournaled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e, err := New().Open(dir, engine.DefaultConfig(""))
	require.NoError(t, err)
	defer func() { require.NoError(t, e.Close()) }()

	f, err := e.OpenFile("wallet.dat", true)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	j := e.(*env).journal
	lsn := func() uint64 {
		j.mu.Lock()
		defer j.mu.Unlock()

		return j.nextLSN
	}

	txn, err := e.BeginTxn(false)
	require.NoError(t, err)
	require.NoError(t, f.Put(txn, []byte("k"), []byte("v"), true))
	require.NoError(t, txn.Abort())
	require.Equal(t, uint64(1), lsn())

	txn, err = e.BeginTxn(false)
	require.NoError(t, err)
	require.NoError(t, f.Put(txn, []byte("a"), []byte("1"), true))
	require.NoError(t, f.Put(txn, []byte("b"), []byte("2"), true))
	require.NoError(t, txn.Commit())

	// Two puts and the commit record.
	require.Equal(t, uint64(4), lsn())
}

// TestForeignTxn makes sure a transaction cannot cross environments.
func TestForeignTxn(t *testing.T) {
	t.Parallel()

	drv := New()
	env1, err := drv.Open(t.TempDir(), engine.DefaultConfig(""))
	require.NoError(t, err)
	defer func() { require.NoError(t, env1.Close()) }()

	env2, err := drv.Open(t.TempDir(), engine.DefaultConfig(""))
	require.NoError(t, err)
	defer func() { require.NoError(t, env2.Close()) }()

	f, err := env1.OpenFile("wallet.dat", true)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	txn, err := env2.BeginTxn(false)
	require.NoError(t, err)
	defer func() { require.NoError(t, txn.Abort()) }()

	_, err = f.Get(txn, []byte("k"))
	require.ErrorIs(t, err, engine.ErrTxnForeign)
}
