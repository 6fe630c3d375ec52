// Package memengine implements the engine boundary entirely in memory on top
// of copy-on-write B-trees. Data lives as long as the Driver value, so closing
// and reopening an environment on the same driver keeps its contents.
package memengine

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"github.com/quanghuy1258/wallet/engine"
)

const (
	// BackendName is the configuration name of this engine.
	BackendName = "memory"

	// btreeDegree is the branching factor of the per-file trees.
	btreeDegree = 32
)

// ErrEnvOpen is returned when an environment directory is opened twice on the
// same driver.
var ErrEnvOpen = errors.New("memory environment already open")

// Driver is an in-memory engine. The zero value is not usable, use New.
type Driver struct {
	mu     sync.Mutex
	stores map[string]*store
}

// Compile-time check that Driver implements engine.Driver.
var _ engine.Driver = (*Driver)(nil)

// New creates an empty in-memory engine.
func New() *Driver {
	return &Driver{
		stores: make(map[string]*store),
	}
}

// store holds every file of one environment directory.
type store struct {
	mu    sync.Mutex
	open  bool
	files map[string]*fileData
}

// fileData is the content of one file.
type fileData struct {
	// writeMu serializes writers. Transactions hold it from their first
	// use of the file until commit or abort.
	writeMu sync.Mutex

	// mu guards tree and open.
	mu   sync.RWMutex
	tree *btree.BTree
	open bool
}

// Name returns the backend name.
func (d *Driver) Name() string {
	return BackendName
}

// Open opens the environment for dir. Only one environment per directory may
// be open on a driver at a time.
func (d *Driver) Open(dir string, cfg *engine.Config) (engine.Env, error) {
	dir = filepath.Clean(dir)

	d.mu.Lock()
	s, ok := d.stores[dir]
	if !ok {
		s = &store{files: make(map[string]*fileData)}
		d.stores[dir] = s
	}
	d.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil, fmt.Errorf("%w: %v", ErrEnvOpen, dir)
	}
	s.open = true

	log.Debugf("Opened memory environment %v with %d files", dir,
		len(s.files))

	return &env{
		dir:   dir,
		cfg:   cfg,
		store: s,
	}, nil
}
