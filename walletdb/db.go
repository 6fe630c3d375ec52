package walletdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/healthcheck"
	"github.com/quanghuy1258/wallet/engine"
)

const backupFilePermission = 0600

// Database is one named file inside an Environment. At most one Database is
// bound to a file name per Environment. The engine file is opened lazily by
// the first Batch.
type Database struct {
	env      *Environment
	filename string

	// file and released are guarded by the coordinator lock.
	file     engine.File
	released bool
}

// OpenDatabase binds a new Database to filename.
func (e *Environment) OpenDatabase(filename string) (*Database, error) {
	if err := engine.ValidateName(filename); err != nil {
		return nil, translateErr(err)
	}

	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	if _, ok := e.databases[filename]; ok {
		return nil, fmt.Errorf("%w: database %v already bound",
			ErrAlreadyExists, filename)
	}

	db := &Database{
		env:      e,
		filename: filename,
	}
	e.databases[filename] = db

	return db, nil
}

// Filename returns the file name the database is bound to.
func (db *Database) Filename() string {
	return db.filename
}

// Environment returns the environment the database lives in.
func (db *Database) Environment() *Environment {
	return db.env
}

// Close closes the engine file. It fails with ErrInUse while a batch is
// open on it.
func (db *Database) Close() error {
	db.env.coord.mu.Lock()
	defer db.env.coord.mu.Unlock()

	return db.closeLocked()
}

func (db *Database) closeLocked() error {
	if count := db.env.useCounts[db.filename]; count > 0 {
		return fmt.Errorf("%w: %v has %d open batches", ErrInUse,
			db.filename, count)
	}

	return db.closeFileLocked()
}

// closeFileLocked closes the engine file without looking at use-counts.
func (db *Database) closeFileLocked() error {
	if db.file == nil {
		return nil
	}

	err := db.file.Close()
	db.file = nil
	if err != nil {
		return fmt.Errorf("%w: unable to close %v: %w", ErrIOFailure,
			db.filename, err)
	}

	log.Debugf("Closed database file %v", db.filename)

	return nil
}

// Release closes the database and unbinds it from the environment. Nothing
// changes if the close fails.
func (db *Database) Release() error {
	db.env.coord.mu.Lock()
	defer db.env.coord.mu.Unlock()

	if db.released {
		return nil
	}
	if err := db.closeLocked(); err != nil {
		return err
	}

	db.released = true
	if db.env.databases[db.filename] == db {
		delete(db.env.databases, db.filename)
	}
	delete(db.env.useCounts, db.filename)

	return nil
}

// Backup waits until no batch uses the database, closes its file, writes a
// checkpoint and copies the file to dest. If dest is a directory the copy
// keeps the file name. The wait ends early with the context's error if ctx
// is done first.
func (db *Database) Backup(ctx context.Context, dest string) error {
	env := db.env

	env.coord.mu.Lock()
	defer env.coord.mu.Unlock()

	if !env.initialized {
		return fmt.Errorf("%w: backup of %v", ErrEnvNotOpen,
			db.filename)
	}
	if db.released {
		return fmt.Errorf("%w: %v was released", ErrDatabaseNotOpen,
			db.filename)
	}

	err := env.waitLocked(ctx, func() bool {
		return env.useCounts[db.filename] == 0
	})
	if err != nil {
		return fmt.Errorf("backup of %v interrupted: %w", db.filename,
			err)
	}

	// Waiting let go of the lock, the environment may be gone by now.
	if !env.initialized {
		return fmt.Errorf("%w: backup of %v", ErrEnvNotOpen,
			db.filename)
	}

	if err := db.closeFileLocked(); err != nil {
		return err
	}
	if err := env.checkpointLocked(0, 0); err != nil {
		return err
	}
	delete(env.useCounts, db.filename)

	src := env.filePathLocked(db.filename)
	if src == "" {
		return fmt.Errorf("%w: %v backend keeps no files to back up",
			ErrIOFailure, env.driver.Name())
	}

	if err := copyFile(src, dest); err != nil {
		return fmt.Errorf("%w: backup of %v to %v failed: %w",
			ErrIOFailure, db.filename, dest, err)
	}

	log.Infof("Backed up %v to %v", db.filename, dest)

	return nil
}

// copyFile copies src to dest, or into dest if it is a directory. The
// in-memory copy is wiped afterwards.
func copyFile(src, dest string) error {
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, filepath.Base(src))
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	buf := NewSecureBuffer(data)
	defer buf.Wipe()

	free, err := healthcheck.AvailableDiskSpace(filepath.Dir(dest))
	if err != nil {
		return err
	}
	if free < uint64(buf.Len()) {
		return errors.New("not enough free disk space")
	}

	return fn.WriteFileRemove(dest, buf.Bytes(), backupFilePermission)
}
