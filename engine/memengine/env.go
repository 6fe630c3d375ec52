package memengine

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/quanghuy1258/wallet/engine"
)

// env is an open in-memory environment.
type env struct {
	dir   string
	cfg   *engine.Config
	store *store

	mu          sync.Mutex
	closed      bool
	checkpoints uint64
}

// Compile-time check that env implements engine.Env.
var _ engine.Env = (*env)(nil)

func (e *env) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrEnvClosed
	}

	return nil
}

// Close closes the environment.
func (e *env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrEnvClosed
	}
	e.closed = true

	e.store.mu.Lock()
	e.store.open = false
	e.store.mu.Unlock()

	log.Debugf("Closed memory environment %v", e.dir)

	return nil
}

// Checkpoint has nothing to flush, it only counts invocations.
func (e *env) Checkpoint(_, _ uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrEnvClosed
	}
	e.checkpoints++

	return nil
}

// ArchivedLogFiles always returns an empty list since nothing is logged.
func (e *env) ArchivedLogFiles() ([]string, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	return nil, nil
}

// OpenFile opens the named file, creating an empty one if create is set.
func (e *env) OpenFile(name string, create bool) (engine.File, error) {
	if err := engine.ValidateName(name); err != nil {
		return nil, err
	}
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	data, ok := e.store.files[name]
	switch {
	case !ok && !create:
		return nil, fmt.Errorf("%w: %v", engine.ErrFileNotFound, name)

	case !ok:
		data = &fileData{tree: btree.New(btreeDegree)}
		e.store.files[name] = data
	}

	data.mu.Lock()
	defer data.mu.Unlock()

	if data.open {
		return nil, fmt.Errorf("%w: %v", engine.ErrFileOpen, name)
	}
	data.open = true

	return &file{env: e, name: name, data: data}, nil
}

// BeginTxn starts a transaction. It binds to files lazily on first use.
func (e *env) BeginTxn(readOnly bool) (engine.Txn, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	return &txn{
		env:      e,
		readOnly: readOnly,
		trees:    make(map[*fileData]*btree.BTree),
	}, nil
}

// Verify checks that the file exists and is not open.
func (e *env) Verify(name string) error {
	if err := engine.ValidateName(name); err != nil {
		return err
	}
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.store.mu.Lock()
	data, ok := e.store.files[name]
	e.store.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %v", engine.ErrFileNotFound, name)
	}

	data.mu.RLock()
	defer data.mu.RUnlock()
	if data.open {
		return fmt.Errorf("%w: %v", engine.ErrFileOpen, name)
	}

	return nil
}

// FilePath returns the empty string, memory files have no path.
func (e *env) FilePath(string) string {
	return ""
}
