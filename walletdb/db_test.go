package walletdb

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestOpenDatabase covers binding databases to file names.
func TestOpenDatabase(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, MemoryBackend)

	for _, name := range []string{"", ".", "..", "a/b"} {
		_, err := env.OpenDatabase(name)
		require.ErrorIs(t, err, ErrInvalidName, name)
	}

	db := openTestDB(t, env, "wallet.dat")
	require.Equal(t, "wallet.dat", db.Filename())
	require.Same(t, env, db.Environment())
	require.True(t, env.IsDatabaseLoaded("wallet.dat"))
	require.False(t, env.IsFileOpen("wallet.dat"))

	_, err := env.OpenDatabase("wallet.dat")
	require.ErrorIs(t, err, ErrAlreadyExists)

	// Binding does not touch the environment.
	require.False(t, env.IsInitialized())
}

// TestDatabaseRelease checks that a database in use can neither be closed
// nor released, and that a released one is unbound.
func TestDatabaseRelease(t *testing.T) {
	t.Parallel()

	for _, backend := range backends {
		backend := backend

		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, backend)
			db := openTestDB(t, env, "wallet.dat")

			b := newTestBatch(t, db, false)
			require.NoError(t, b.Put([]byte("k"), []byte("v"), true))

			require.ErrorIs(t, db.Close(), ErrInUse)
			require.ErrorIs(t, db.Release(), ErrInUse)
			require.True(t, env.IsDatabaseLoaded("wallet.dat"))
			require.Equal(t, 1, env.UseCount("wallet.dat"))

			require.NoError(t, b.Close())
			require.NoError(t, db.Release())
			require.NoError(t, db.Release())
			require.False(t, env.IsDatabaseLoaded("wallet.dat"))
			require.Zero(t, env.UseCount("wallet.dat"))

			_, err := db.NewBatch(true, false)
			require.ErrorIs(t, err, ErrDatabaseNotOpen)

			// The name can be bound again and the data is still
			// there.
			db = openTestDB(t, env, "wallet.dat")
			value, err := getValue(t, db, "k")
			require.NoError(t, err)
			require.Equal(t, "v", value)

			require.NoError(t, env.Close())
		})
	}
}

// TestBackupWaitsForBatch checks that a backup blocks while a batch is open
// and then produces an exact copy of the file.
func TestBackupWaitsForBatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, BoltBackend)
	db := openTestDB(t, env, "wallet.dat")
	putValue(t, db, "addr1", "pubkeyABC")

	b := newTestBatch(t, db, false)
	require.NoError(t, b.Put([]byte("addr2"), []byte("pubkeyDEF"), true))

	destDir := t.TempDir()
	done := make(chan error, 1)
	go func() {
		done <- db.Backup(context.Background(), destDir)
	}()

	requireBlocked(t, done)
	require.NoError(t, b.Close())
	require.NoError(t, requireDone(t, done))

	require.False(t, env.IsFileOpen("wallet.dat"))
	require.Zero(t, env.UseCount("wallet.dat"))

	src, err := os.ReadFile(filepath.Join(env.Directory(), "wallet.dat"))
	require.NoError(t, err)
	dest, err := os.ReadFile(filepath.Join(destDir, "wallet.dat"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(src, dest))

	// A plain file destination works as well.
	destFile := filepath.Join(t.TempDir(), "copy.dat")
	require.NoError(t, db.Backup(context.Background(), destFile))
	require.FileExists(t, destFile)

	// The copy is a working database.
	cfg := newTestConfig(t, BoltBackend)
	cfg.Dir = destDir
	restored := newTestEnvWithConfig(t, cfg)
	restoredDB := openTestDB(t, restored, "wallet.dat")

	value, err := getValue(t, restoredDB, "addr2")
	require.NoError(t, err)
	require.Equal(t, "pubkeyDEF", value)

	// And the original is still usable.
	value, err = getValue(t, db, "addr1")
	require.NoError(t, err)
	require.Equal(t, "pubkeyABC", value)
}

// TestBackupContext makes sure a backup gives up once its context is done.
func TestBackupContext(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, BoltBackend)
	db := openTestDB(t, env, "wallet.dat")
	b := newTestBatch(t, db, false)

	ctx, cancel := context.WithTimeout(
		context.Background(), 50*time.Millisecond,
	)
	defer cancel()

	err := db.Backup(ctx, t.TempDir())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, env.IsFileOpen("wallet.dat"))

	require.NoError(t, b.Close())
}

// TestBackupFailures covers backups that cannot run.
func TestBackupFailures(t *testing.T) {
	t.Parallel()

	// The environment must be open.
	env := newTestEnv(t, BoltBackend)
	db := openTestDB(t, env, "wallet.dat")
	err := db.Backup(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrEnvNotOpen)

	// The destination must be writable.
	putValue(t, db, "k", "v")
	dest := filepath.Join(t.TempDir(), "missing", "wallet.dat")
	err = db.Backup(context.Background(), dest)
	require.ErrorIs(t, err, ErrIOFailure)
	require.NoFileExists(t, dest)

	// Memory files have nothing to copy.
	memEnv := newTestEnv(t, MemoryBackend)
	memDB := openTestDB(t, memEnv, "wallet.dat")
	putValue(t, memDB, "k", "v")
	err = memDB.Backup(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrIOFailure)
}
