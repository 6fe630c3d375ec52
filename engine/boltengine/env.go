package boltengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quanghuy1258/wallet/engine"
	"go.etcd.io/bbolt"
)

// env is an open bbolt environment.
type env struct {
	dir     string
	cfg     *engine.Config
	journal *journal

	mu     sync.Mutex
	closed bool
	files  map[string]*file
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

func (e *env) boltOptions(readOnly bool) *bbolt.Options {
	return &bbolt.Options{
		Timeout:         e.cfg.Timeout,
		NoFreelistSync:  e.cfg.NoFreelistSync,
		FreelistType:    bbolt.FreelistMapType,
		InitialMmapSize: int(e.cfg.CacheSize),
		ReadOnly:        readOnly,
	}
}

// Close closes the environment. Files still open are closed as well, an
// orderly caller closes them first.
func (e *env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrEnvClosed
	}
	e.closed = true

	var errs []error
	for name, f := range e.files {
		log.Warnf("Closing file %v left open at environment close",
			name)

		errs = append(errs, f.db.Close())
		delete(e.files, name)
	}
	errs = append(errs, e.journal.close())

	log.Debugf("Closed bolt environment %v", e.dir)

	return errors.Join(errs...)
}

// Checkpoint syncs every open file and records a checkpoint in the journal if
// the thresholds say one is due.
func (e *env) Checkpoint(sizeKB, minMinutes uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.ErrEnvClosed
	}
	if !e.journal.due(sizeKB, minMinutes) {
		return nil
	}

	for name, f := range e.files {
		if err := f.db.Sync(); err != nil {
			return fmt.Errorf("unable to sync %v: %w", name, err)
		}
	}

	if err := e.journal.checkpoint(); err != nil {
		return fmt.Errorf("unable to write checkpoint: %w", err)
	}

	log.Tracef("Checkpoint written in %v", e.dir)

	return nil
}

// ArchivedLogFiles returns journal segments no longer needed for recovery.
func (e *env) ArchivedLogFiles() ([]string, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	return e.journal.archived()
}

// FilePath returns the on-disk location of name.
func (e *env) FilePath(name string) string {
	return filepath.Join(e.dir, name)
}

// OpenFile opens the bbolt file backing name.
func (e *env) OpenFile(name string, create bool) (engine.File, error) {
	if err := engine.ValidateName(name); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, engine.ErrEnvClosed
	}
	if _, ok := e.files[name]; ok {
		return nil, fmt.Errorf("%w: %v", engine.ErrFileOpen, name)
	}

	path := e.FilePath(name)
	if !create && !fileExists(path) {
		return nil, fmt.Errorf("%w: %v", engine.ErrFileNotFound, name)
	}

	db, err := bbolt.Open(path, dbFilePermission, e.boltOptions(false))
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	f := &file{env: e, name: name, db: db}
	e.files[name] = f

	log.Debugf("Opened file %v", path)

	return f, nil
}

// removeFile forgets f once it is closed.
func (e *env) removeFile(f *file) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.files[f.name] == f {
		delete(e.files, f.name)
	}
}

// BeginTxn starts a transaction. Files join it on first use.
func (e *env) BeginTxn(readOnly bool) (engine.Txn, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	return &txn{
		env:      e,
		readOnly: readOnly,
		txs:      make(map[*file]*bbolt.Tx),
	}, nil
}

// Verify runs the bbolt consistency check over a file that is not open.
func (e *env) Verify(name string) error {
	if err := engine.ValidateName(name); err != nil {
		return err
	}

	e.mu.Lock()
	_, open := e.files[name]
	closed := e.closed
	e.mu.Unlock()

	switch {
	case closed:
		return engine.ErrEnvClosed
	case open:
		return fmt.Errorf("%w: %v", engine.ErrFileOpen, name)
	}

	path := e.FilePath(name)
	if !fileExists(path) {
		return fmt.Errorf("%w: %v", engine.ErrFileNotFound, name)
	}

	db, err := bbolt.Open(path, dbFilePermission, e.boltOptions(true))
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(func(tx *bbolt.Tx) error {
		var errs []error
		for err := range tx.Check() {
			errs = append(errs, err)
		}
		if tx.Bucket(rootBucket) == nil {
			errs = append(errs, fmt.Errorf("root bucket missing"))
		}

		return errors.Join(errs...)
	})
}

// fileExists returns true if the file exists, and false otherwise.
func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}
