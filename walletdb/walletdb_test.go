package walletdb

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var backends = []string{BoltBackend, MemoryBackend}

// newTestConfig returns a config for a fresh directory with its own
// coordinator, so tests do not share lock state.
func newTestConfig(t *testing.T, backend string) *Config {
	t.Helper()

	cfg := DefaultConfig(t.TempDir())
	cfg.Backend = backend
	cfg.Coordinator = NewCoordinator()

	return cfg
}

func newTestEnvWithConfig(t *testing.T, cfg *Config) *Environment {
	t.Helper()

	env, err := NewEnvironment(cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = env.Close()
	})

	return env
}

func newTestEnv(t *testing.T, backend string) *Environment {
	t.Helper()

	return newTestEnvWithConfig(t, newTestConfig(t, backend))
}

func openTestDB(t *testing.T, env *Environment, name string) *Database {
	t.Helper()

	db, err := env.OpenDatabase(name)
	require.NoError(t, err)

	return db
}

func newTestBatch(t *testing.T, db *Database, readOnly bool) *Batch {
	t.Helper()

	b, err := db.NewBatch(readOnly, true)
	require.NoError(t, err)

	return b
}

// putValue writes key through its own batch.
func putValue(t *testing.T, db *Database, key, value string) {
	t.Helper()

	b := newTestBatch(t, db, false)
	require.NoError(t, b.Put([]byte(key), []byte(value), true))
	require.NoError(t, b.Close())
}

// getValue reads key through its own read-only batch.
func getValue(t *testing.T, db *Database, key string) (string, error) {
	t.Helper()

	b := newTestBatch(t, db, true)
	defer func() { require.NoError(t, b.Close()) }()

	value, err := b.Get([]byte(key))
	if err != nil {
		return "", err
	}

	return string(value.Bytes()), nil
}

// logSegments lists the journal segments of a bolt environment.
func logSegments(t *testing.T, env *Environment) []string {
	t.Helper()

	entries, err := os.ReadDir(env.logDir())
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "log.") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names
}

// lockHeld reports whether the environment's coordinator holds the
// directory lock.
func lockHeld(env *Environment) bool {
	return env.coord.Locks().Held(env.dir, env.cfg.lockFileName())
}

// markerExists reports whether the lock marker file is on disk.
func markerExists(env *Environment) bool {
	_, err := os.Stat(filepath.Join(env.dir, env.cfg.lockFileName()))
	return err == nil
}

// requireBlocked fails the test if done fires within a short while.
func requireBlocked(t *testing.T, done <-chan error) {
	t.Helper()

	select {
	case err := <-done:
		t.Fatalf("expected call to block, returned %v", err)

	case <-time.After(100 * time.Millisecond):
	}
}

// requireDone waits for done and returns its error.
func requireDone(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err

	case <-time.After(10 * time.Second):
		t.Fatalf("call did not return")
		return nil
	}
}
