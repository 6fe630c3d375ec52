// Package boltengine implements the engine boundary on top of bbolt. Every
// database file of an environment is its own bbolt file with a single root
// bucket, and the environment keeps a segmented commit journal next to them
// that drives checkpoints and log archival.
//
// A read-write transaction holds the bbolt writer lock of every file it
// touched until it ends, so a goroutine with an open transaction must not
// write to the same file outside of it. A read-only transaction keeps bbolt
// from remapping a file that grows, so it should end before large writes to
// the same file. Cursors opened outside a transaction hold nothing between
// steps.
package boltengine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/quanghuy1258/wallet/engine"
)

const (
	// BackendName is the configuration name of this engine.
	BackendName = "bolt"

	// defaultLogSubdir is used when the config does not name a log
	// directory.
	defaultLogSubdir = "database"

	dbFilePermission = 0600
)

// rootBucket holds all key/value pairs of a file.
var rootBucket = []byte("main")

// Driver opens bbolt backed environments.
type Driver struct {
	clock clock.Clock
}

// Compile-time check that Driver implements engine.Driver.
var _ engine.Driver = (*Driver)(nil)

// New returns a driver using the wall clock.
func New() *Driver {
	return NewWithClock(clock.NewDefaultClock())
}

// NewWithClock returns a driver that reads time from clk, which decides when
// time based checkpoints are due.
func NewWithClock(clk clock.Clock) *Driver {
	return &Driver{clock: clk}
}

// Name returns the backend name.
func (d *Driver) Name() string {
	return BackendName
}

// Open opens the environment rooted at dir, running journal recovery if the
// config asks for it.
func (d *Driver) Open(dir string, cfg *engine.Config) (engine.Env, error) {
	if cfg == nil {
		cfg = engine.DefaultConfig("")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	logDir := cfg.LogDir
	switch {
	case logDir == "":
		logDir = filepath.Join(dir, defaultLogSubdir)
	case !filepath.IsAbs(logDir):
		logDir = filepath.Join(dir, logDir)
	}

	bufSize := cfg.LogBufferSize
	if bufSize <= 0 {
		bufSize = engine.DefaultLogBufferSize
	}

	j, err := openJournal(logDir, cfg.LogMaxSize, bufSize, d.clock,
		cfg.Recover)
	if err != nil {
		return nil, fmt.Errorf("unable to open journal: %w", err)
	}

	log.Debugf("Opened bolt environment %v (log dir %v)", dir, logDir)

	return &env{
		dir:     dir,
		cfg:     cfg,
		journal: j,
		files:   make(map[string]*file),
	}, nil
}
