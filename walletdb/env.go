package walletdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/quanghuy1258/wallet/engine"
)

// KeepArchivedLogs is the number of archived log files a shutdown flush
// leaves on disk.
const KeepArchivedLogs = 3

// Environment is the handle to the storage engine for one directory. It
// tracks which database files are open, how many batches use each of them,
// and owns the directory lock while it is initialized.
//
// An Environment is shared by all Databases bound to it. Its state is
// guarded by the lock of its Coordinator.
type Environment struct {
	cfg    *Config
	dir    string
	driver engine.Driver
	coord  *Coordinator

	initialized bool
	env         engine.Env
	useCounts   map[string]int
	databases   map[string]*Database

	// changed is closed and replaced whenever a use-count drops, waking
	// everyone waiting for files to become idle.
	changed chan struct{}

	checkpoints atomic.Uint64
}

// NewEnvironment creates an uninitialized environment. Nothing is touched on
// disk until Open.
func NewEnvironment(cfg *Config) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	coord := cfg.Coordinator
	if coord == nil {
		coord = DefaultCoordinator()
	}

	return &Environment{
		cfg:       cfg,
		dir:       cfg.Dir,
		driver:    cfg.driver(),
		coord:     coord,
		useCounts: make(map[string]int),
		databases: make(map[string]*Database),
		changed:   make(chan struct{}),
	}, nil
}

// Directory returns the environment directory.
func (e *Environment) Directory() string {
	return e.dir
}

// Config returns the environment config.
func (e *Environment) Config() *Config {
	return e.cfg
}

// IsInitialized reports whether the environment is open.
func (e *Environment) IsInitialized() bool {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	return e.initialized
}

// IsDatabaseLoaded reports whether a Database is bound to filename.
func (e *Environment) IsDatabaseLoaded(filename string) bool {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	_, ok := e.databases[filename]

	return ok
}

// IsFileOpen reports whether the engine file behind filename is open.
func (e *Environment) IsFileOpen(filename string) bool {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	db, ok := e.databases[filename]

	return ok && db.file != nil
}

// UseCount returns the number of open batches on filename.
func (e *Environment) UseCount(filename string) int {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	return e.useCounts[filename]
}

// Open initializes the environment. It is a no-op if the environment is
// already initialized.
func (e *Environment) Open() error {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	return e.openLocked()
}

func (e *Environment) openLocked() error {
	if e.initialized {
		return nil
	}

	ecfg := e.cfg.engineConfig()
	created, err := createDirs(e.dir, ecfg.LogDir)
	if err != nil {
		return fmt.Errorf("%w: unable to create %v: %w", ErrIOFailure,
			e.dir, err)
	}

	if err := e.coord.lockDirLocked(e); err != nil {
		removeDirs(created)

		return fmt.Errorf("%w: unable to lock %v: %w", ErrIOFailure,
			e.dir, err)
	}

	env, err := e.driver.Open(e.dir, ecfg)
	if err != nil {
		if unlockErr := e.coord.unlockDirLocked(e); unlockErr != nil {
			log.Errorf("Unable to release lock on %v: %v", e.dir,
				unlockErr)
		}
		removeDirs(created)

		return fmt.Errorf("%w: unable to open %v environment in %v: %w",
			ErrIOFailure, e.driver.Name(), e.dir, err)
	}

	e.env = env
	e.initialized = true

	log.Infof("Opened %v database environment in %v", e.driver.Name(),
		e.dir)

	return nil
}

// Close closes every open database file and the engine, then releases the
// directory lock. It is a no-op if the environment is not initialized and
// fails with ErrInUse while any batch is open.
func (e *Environment) Close() error {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	return e.closeLocked()
}

func (e *Environment) closeLocked() error {
	if !e.initialized {
		return nil
	}

	if names := e.inUseLocked(); len(names) > 0 {
		return fmt.Errorf("%w: unable to close environment %v, "+
			"files in use: %v", ErrInUse, e.dir, names)
	}

	e.initialized = false

	var errs []error
	for _, db := range e.databases {
		if err := db.closeFileLocked(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := e.env.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: unable to close "+
			"environment %v: %w", ErrIOFailure, e.dir, err))
	}
	e.env = nil

	if err := e.coord.unlockDirLocked(e); err != nil {
		errs = append(errs, fmt.Errorf("%w: unable to release lock "+
			"on %v: %w", ErrIOFailure, e.dir, err))
	}

	log.Infof("Closed database environment in %v", e.dir)

	return errors.Join(errs...)
}

// inUseLocked returns the sorted names of files with open batches.
func (e *Environment) inUseLocked() []string {
	var names []string
	for name, count := range e.useCounts {
		if count > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names
}

// notifyLocked wakes everyone waiting in waitLocked.
func (e *Environment) notifyLocked() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// waitLocked blocks until idle returns true. The coordinator lock is released
// while waiting and held again when waitLocked returns, also on error.
func (e *Environment) waitLocked(ctx context.Context, idle func() bool) error {
	for !idle() {
		changed := e.changed

		e.coord.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			e.coord.mu.Lock()
			return ctx.Err()
		}
		e.coord.mu.Lock()
	}

	return nil
}

// checkpointLocked asks the engine for a checkpoint. It is a no-op on an
// uninitialized environment.
func (e *Environment) checkpointLocked(sizeKB, minMinutes uint32) error {
	if !e.initialized {
		return nil
	}

	if err := e.env.Checkpoint(sizeKB, minMinutes); err != nil {
		return fmt.Errorf("%w: checkpoint failed: %w", ErrIOFailure, err)
	}
	e.checkpoints.Add(1)

	return nil
}

// Flush closes every database file no batch uses and writes a checkpoint.
// With shutdown set and no file in use, old archived logs are deleted and
// the environment is closed.
func (e *Environment) Flush(shutdown bool) error {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	return e.flushLocked(shutdown)
}

func (e *Environment) flushLocked(shutdown bool) error {
	if !e.initialized {
		return nil
	}

	log.Debugf("Flushing database environment %v (shutdown=%v)", e.dir,
		shutdown)

	var errs []error
	for name, count := range e.useCounts {
		if count > 0 {
			continue
		}

		if err := e.closeDbLocked(name); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(e.useCounts, name)

		log.Tracef("Flushed %v", name)
	}

	if err := e.checkpointLocked(0, 0); err != nil {
		errs = append(errs, err)
	}

	if !shutdown || len(e.inUseLocked()) > 0 {
		return errors.Join(errs...)
	}

	if err := e.pruneLogsLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := e.closeLocked(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// pruneLogsLocked deletes all but the newest KeepArchivedLogs archived logs.
func (e *Environment) pruneLogsLocked() error {
	archived, err := e.env.ArchivedLogFiles()
	if err != nil {
		return fmt.Errorf("%w: unable to list archived logs: %w",
			ErrIOFailure, err)
	}
	if len(archived) <= KeepArchivedLogs {
		return nil
	}

	var errs []error
	for _, path := range archived[:len(archived)-KeepArchivedLogs] {
		log.Debugf("Removing archived log %v", path)

		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrIOFailure,
				err))
		}
	}

	return errors.Join(errs...)
}

// CloseDb closes the engine file of filename if it is open. The Database
// stays bound.
func (e *Environment) CloseDb(filename string) error {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	return e.closeDbLocked(filename)
}

func (e *Environment) closeDbLocked(filename string) error {
	db, ok := e.databases[filename]
	if !ok {
		return nil
	}

	return db.closeLocked()
}

// Reload waits until no batch is open, closes everything and opens the
// environment again. Bound Databases stay usable. The wait ends early with
// the context's error if ctx is done first.
func (e *Environment) Reload(ctx context.Context) error {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	err := e.waitLocked(ctx, func() bool {
		return len(e.inUseLocked()) == 0
	})
	if err != nil {
		return fmt.Errorf("reload of %v interrupted: %w", e.dir, err)
	}

	log.Infof("Reloading database environment %v", e.dir)

	var errs []error
	for name := range e.databases {
		if err := e.closeDbLocked(name); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.flushLocked(true); err != nil {
		errs = append(errs, err)
	}
	if err := e.closeLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	e.resetLocked()

	return e.openLocked()
}

// resetLocked drops the engine handle of a closed environment.
func (e *Environment) resetLocked() {
	e.env = nil
	e.initialized = false
}

// Verify checks the consistency of filename. The file must not be in use,
// an idle open handle is closed first.
func (e *Environment) Verify(filename string) error {
	if err := engine.ValidateName(filename); err != nil {
		return translateErr(err)
	}

	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	if !e.initialized {
		return ErrEnvNotOpen
	}
	if e.useCounts[filename] > 0 {
		return fmt.Errorf("%w: %v", ErrInUse, filename)
	}
	if err := e.closeDbLocked(filename); err != nil {
		return err
	}

	if err := e.env.Verify(filename); err != nil {
		return translateErr(err)
	}

	return nil
}

// Stats is a snapshot of the environment bookkeeping.
type Stats struct {
	// Initialized is true while the environment is open.
	Initialized bool

	// UseCounts maps a file name to its number of open batches.
	UseCounts map[string]int

	// OpenFiles lists the files with an open engine handle.
	OpenFiles []string

	// Databases is the number of bound databases.
	Databases int

	// Checkpoints is the number of checkpoints issued since creation.
	Checkpoints uint64
}

// Stats returns a snapshot of the environment bookkeeping.
func (e *Environment) Stats() Stats {
	e.coord.mu.Lock()
	defer e.coord.mu.Unlock()

	stats := Stats{
		Initialized: e.initialized,
		UseCounts:   make(map[string]int, len(e.useCounts)),
		Databases:   len(e.databases),
		Checkpoints: e.checkpoints.Load(),
	}
	for name, count := range e.useCounts {
		stats.UseCounts[name] = count
	}
	for name, db := range e.databases {
		if db.file != nil {
			stats.OpenFiles = append(stats.OpenFiles, name)
		}
	}
	sort.Strings(stats.OpenFiles)

	return stats
}

// filePathLocked returns where the engine keeps filename, or the empty
// string.
func (e *Environment) filePathLocked(filename string) string {
	if e.env == nil {
		return ""
	}

	return e.env.FilePath(filename)
}

// logDir returns the engine log directory.
func (e *Environment) logDir() string {
	return filepath.Join(e.dir, LogSubdir)
}

// createDirs creates every directory in dirs. It returns the topmost
// directory of each path that did not exist before, so that a failed open
// can remove exactly what it created.
func createDirs(dirs ...string) ([]string, error) {
	var created []string
	for _, dir := range dirs {
		top := missingRoot(dir)
		if err := os.MkdirAll(dir, 0700); err != nil {
			removeDirs(created)
			return nil, err
		}
		if top != "" {
			created = append(created, top)
		}
	}

	return created, nil
}

// missingRoot returns the outermost ancestor of dir, dir included, that does
// not exist yet, or the empty string if dir exists.
func missingRoot(dir string) string {
	var top string
	for dir = filepath.Clean(dir); ; {
		_, err := os.Stat(dir)
		if !errors.Is(err, os.ErrNotExist) {
			return top
		}
		top = dir

		parent := filepath.Dir(dir)
		if parent == dir {
			return top
		}
		dir = parent
	}
}

// removeDirs removes directories returned by createDirs, newest first.
func removeDirs(dirs []string) {
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.RemoveAll(dirs[i]); err != nil {
			log.Warnf("Unable to remove %v: %v", dirs[i], err)
		}
	}
}
