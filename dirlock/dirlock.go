// Package dirlock implements the per-process set of directory locks that
// keeps two storage environments from sharing one directory. A lock is a
// marker file in the directory. Where the platform supports advisory file
// locks the marker is also flock'ed, so a marker left behind by a crashed
// process is recognised as stale and reclaimed.
package dirlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultLockFileName is the name of the marker file created in a
	// locked directory.
	DefaultLockFileName = ".dbEnvLock"

	lockFilePermission = 0600
)

var (
	// ErrLockHeld is returned when the directory is locked by another
	// holder.
	ErrLockHeld = errors.New("directory lock held")
)

// lockFile is a marker file this process holds.
type lockFile struct {
	path string
	f    *os.File
}

// Set tracks the directory locks held by this process. Acquiring a lock the
// set already holds succeeds without touching the disk.
type Set struct {
	mu   sync.Mutex
	held map[string]*lockFile
}

// NewSet returns an empty lock set.
func NewSet() *Set {
	return &Set{
		held: make(map[string]*lockFile),
	}
}

// lockPath returns the normalized path of the marker file, which is also the
// key it is tracked under.
func lockPath(dir, name string) (string, error) {
	if name == "" {
		name = DefaultLockFileName
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	return filepath.Join(abs, name), nil
}

// Acquire locks dir by creating the marker file name inside it. ErrLockHeld
// is returned if a live holder outside this set has it.
func (s *Set) Acquire(dir, name string) error {
	path, err := lockPath(dir, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.held[path]; ok {
		return nil
	}

	f, err := tryLock(path)
	if err != nil {
		return err
	}

	// Record the holder for whoever finds the marker later.
	if err := f.Truncate(0); err == nil {
		_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	}

	s.held[path] = &lockFile{path: path, f: f}

	log.Debugf("Acquired directory lock %v", path)

	return nil
}

// Release unlocks dir and removes the marker file. Releasing a lock the set
// does not hold is a no-op.
func (s *Set) Release(dir, name string) error {
	path, err := lockPath(dir, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lf, ok := s.held[path]
	if !ok {
		return nil
	}
	delete(s.held, path)

	// The marker goes first, so nobody can lock a file that is about to
	// disappear.
	removeErr := os.Remove(lf.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	unlockErr := unlock(lf.f)
	closeErr := lf.f.Close()

	log.Debugf("Released directory lock %v", path)

	return errors.Join(removeErr, unlockErr, closeErr)
}

// Held reports whether the set holds the lock on dir.
func (s *Set) Held(dir, name string) bool {
	path, err := lockPath(dir, name)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.held[path]

	return ok
}

// ReleaseAll releases every lock in the set.
func (s *Set) ReleaseAll() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.held))
	for path := range s.held {
		paths = append(paths, path)
	}
	s.mu.Unlock()

	var errs []error
	for _, path := range paths {
		dir, name := filepath.Split(path)
		errs = append(errs, s.Release(dir, name))
	}

	return errors.Join(errs...)
}
