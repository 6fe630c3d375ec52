package walletdb

import (
	"path/filepath"
	"sync"

	"github.com/quanghuy1258/wallet/dirlock"
)

// Coordinator is the process-wide state shared by every Environment: the
// lock that serializes file open and close, use-count changes and
// checkpoints, and the set of directory locks this process holds.
type Coordinator struct {
	mu    sync.Mutex
	locks *dirlock.Set

	// owners maps a locked directory to the environment holding it.
	owners map[string]*Environment
}

// NewCoordinator creates an isolated coordinator. Most programs use the
// default one.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		locks:  dirlock.NewSet(),
		owners: make(map[string]*Environment),
	}
}

var defaultCoordinator = NewCoordinator()

// DefaultCoordinator returns the coordinator shared by environments that are
// not given one.
func DefaultCoordinator() *Coordinator {
	return defaultCoordinator
}

// Locks returns the coordinator's directory lock set.
func (c *Coordinator) Locks() *dirlock.Set {
	return c.locks
}

// lockDirLocked takes the directory lock for env. Within one coordinator a
// directory belongs to a single environment.
func (c *Coordinator) lockDirLocked(env *Environment) error {
	key := ownerKey(env.dir)
	if owner, ok := c.owners[key]; ok && owner != env {
		return ErrLockHeld
	}

	if err := c.locks.Acquire(env.dir, env.cfg.lockFileName()); err != nil {
		return err
	}
	c.owners[key] = env

	return nil
}

// unlockDirLocked releases the directory lock held by env.
func (c *Coordinator) unlockDirLocked(env *Environment) error {
	key := ownerKey(env.dir)
	if c.owners[key] != env {
		return nil
	}
	delete(c.owners, key)

	return c.locks.Release(env.dir, env.cfg.lockFileName())
}

func ownerKey(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}

	return abs
}
