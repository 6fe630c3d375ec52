package walletdb

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var propertyFiles = []string{"a.dat", "b.dat", "c.dat"}

// TestUseCountBalance checks that any interleaving of batch opens and closes
// keeps the use-counts equal to the number of open batches, ending at zero.
func TestUseCountBalance(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp(base, "env")
		require.NoError(rt, err)

		cfg := DefaultConfig(dir)
		cfg.Backend = MemoryBackend
		cfg.Coordinator = NewCoordinator()

		env, err := NewEnvironment(cfg)
		require.NoError(rt, err)

		dbs := make(map[string]*Database)
		for _, name := range propertyFiles {
			dbs[name], err = env.OpenDatabase(name)
			require.NoError(rt, err)
		}

		var open []*Batch
		model := make(map[string]int)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if len(open) == 0 || rapid.Bool().Draw(rt, "open") {
				name := rapid.SampledFrom(propertyFiles).Draw(
					rt, "file",
				)
				readOnly := rapid.Bool().Draw(rt, "readOnly")

				b, err := dbs[name].NewBatch(readOnly, true)
				require.NoError(rt, err)

				open = append(open, b)
				model[name]++
			} else {
				idx := rapid.IntRange(0, len(open)-1).Draw(
					rt, "batch",
				)
				b := open[idx]

				require.NoError(rt, b.Close())
				model[b.filename]--
				open = append(open[:idx], open[idx+1:]...)
			}

			for _, name := range propertyFiles {
				require.Equal(rt, model[name], env.UseCount(name))
			}
		}

		for _, b := range open {
			require.NoError(rt, b.Close())
		}
		for _, name := range propertyFiles {
			require.Zero(rt, env.UseCount(name))
		}
		require.NoError(rt, env.Close())
	})
}

// TestEraseProperties checks that erasing always succeeds and that nothing
// erased is found afterwards.
func TestEraseProperties(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, MemoryBackend)
	db := openTestDB(t, env, "wallet.dat")

	rapid.Check(t, func(rt *rapid.T) {
		keys := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[a-z0-9]{1,12}`), 1, 16,
			rapid.ID[string],
		).Draw(rt, "keys")
		stored := rapid.IntRange(0, len(keys)).Draw(rt, "stored")

		b, err := db.NewBatch(false, true)
		require.NoError(rt, err)
		defer b.Close()

		for _, key := range keys[:stored] {
			require.NoError(rt, b.Put([]byte(key), []byte(key), true))
		}

		for _, key := range keys {
			require.NoError(rt, b.Erase([]byte(key)))

			ok, err := b.Exists([]byte(key))
			require.NoError(rt, err)
			require.False(rt, ok)
		}
	})
}

// TestNoOverwriteProperty checks that a non-overwriting put never replaces
// a stored value.
func TestNoOverwriteProperty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, MemoryBackend)
	db := openTestDB(t, env, "wallet.dat")

	rapid.Check(t, func(rt *rapid.T) {
		key := rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(rt, "key")
		v1 := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "v1")
		v2 := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "v2")

		b, err := db.NewBatch(false, true)
		require.NoError(rt, err)
		defer b.Close()

		require.NoError(rt, b.Erase(key))
		require.NoError(rt, b.Put(key, v1, false))
		require.ErrorIs(rt, b.Put(key, v2, false), ErrAlreadyExists)

		value, err := b.Get(key)
		require.NoError(rt, err)
		require.Equal(rt, len(v1), value.Len())
		if len(v1) > 0 {
			require.Equal(rt, v1, value.Bytes())
		}
	})
}
