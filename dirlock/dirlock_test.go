package dirlock

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAcquireRelease covers the basic lock life cycle.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	set := NewSet()
	marker := filepath.Join(dir, DefaultLockFileName)

	require.NoError(t, set.Acquire(dir, ""))
	require.FileExists(t, marker)
	require.True(t, set.Held(dir, DefaultLockFileName))

	// Acquiring again through the same set is a no-op.
	require.NoError(t, set.Acquire(dir, DefaultLockFileName))

	require.NoError(t, set.Release(dir, ""))
	require.NoFileExists(t, marker)
	require.False(t, set.Held(dir, ""))

	// So is releasing twice.
	require.NoError(t, set.Release(dir, ""))
}

// TestAcquireHeld makes sure a second set cannot take a lock another set
// holds.
func TestAcquireHeld(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	set1, set2 := NewSet(), NewSet()

	require.NoError(t, set1.Acquire(dir, ""))
	require.ErrorIs(t, set2.Acquire(dir, ""), ErrLockHeld)

	require.NoError(t, set1.Release(dir, ""))
	require.NoError(t, set2.Acquire(dir, ""))
	require.NoError(t, set2.ReleaseAll())
	require.False(t, set2.Held(dir, ""))
}

// TestStaleMarker checks that a marker nobody holds is reclaimed where
// advisory locks are available.
func TestStaleMarker(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" ||
		runtime.GOOS == "js" || runtime.GOOS == "wasip1" {

		t.Skipf("no advisory locks on %v", runtime.GOOS)
	}

	dir := t.TempDir()
	marker := filepath.Join(dir, DefaultLockFileName)
	require.NoError(t, os.WriteFile(marker, []byte("12345\n"), 0600))

	set := NewSet()
	require.NoError(t, set.Acquire(dir, ""))
	require.NoError(t, set.Release(dir, ""))
}

// TestDistinctNames makes sure different marker names lock independently.
func TestDistinctNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	set1, set2 := NewSet(), NewSet()

	require.NoError(t, set1.Acquire(dir, "a.lock"))
	require.NoError(t, set2.Acquire(dir, "b.lock"))

	require.NoError(t, set1.ReleaseAll())
	require.NoError(t, set2.ReleaseAll())
}
