package walletdb

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/quanghuy1258/wallet/dirlock"
	"github.com/quanghuy1258/wallet/engine"
	"github.com/quanghuy1258/wallet/engine/boltengine"
	"github.com/quanghuy1258/wallet/engine/memengine"
)

const (
	// BoltBackend stores every database in its own bbolt file.
	BoltBackend = boltengine.BackendName

	// MemoryBackend keeps everything in memory.
	MemoryBackend = memengine.BackendName

	// LogSubdir is the directory inside the environment directory that
	// holds the engine logs.
	LogSubdir = "database"

	// DefaultCheckpointKB is the amount of log in kilobytes after which a
	// read-only batch checkpoints on close.
	DefaultCheckpointKB = 100 * 1024

	// DefaultFlushInterval is how often idle files are flushed when the
	// background flusher runs.
	DefaultFlushInterval = 10 * time.Minute
)

// Config is the configuration of an Environment.
//
//nolint:lll
type Config struct {
	Dir string `long:"dir" description:"The directory holding the database files."`

	Backend string `long:"backend" description:"The storage engine to use." choice:"bolt" choice:"memory"`

	CacheSize int64 `long:"cachesize" description:"Engine cache size in bytes."`

	LogBufferSize int `long:"logbuffersize" description:"Size of the in-memory log buffer in bytes."`

	LogMaxSize int64 `long:"logmaxsize" description:"Size in bytes a log file may grow to before a new one is started."`

	CheckpointKB uint32 `long:"checkpointkb" description:"Kilobytes of log after which a read-only batch writes a checkpoint when it is closed."`

	DBTimeout time.Duration `long:"dbtimeout" description:"How long to wait for a database file lock held by another process."`

	NoFreelistSync bool `long:"nofreelistsync" description:"Do not sync the free page list to disk. Speeds up writes, slows down opening."`

	LockFileName string `long:"lockfile" description:"Name of the marker file that locks the directory."`

	FlushInterval time.Duration `long:"flushinterval" description:"How often idle database files are closed and a checkpoint written. Zero disables the background flush."`

	// Driver overrides the engine picked by Backend.
	Driver engine.Driver `no-flag:"true"`

	// Coordinator is the process-wide state shared by all environments.
	// DefaultCoordinator is used if nil.
	Coordinator *Coordinator `no-flag:"true"`
}

// DefaultConfig returns the default configuration for an environment in dir.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:           dir,
		Backend:       BoltBackend,
		CacheSize:     engine.DefaultCacheSize,
		LogBufferSize: engine.DefaultLogBufferSize,
		LogMaxSize:    engine.DefaultLogMaxSize,
		CheckpointKB:  DefaultCheckpointKB,
		DBTimeout:     engine.DefaultTimeout,
		LockFileName:  dirlock.DefaultLockFileName,
		FlushInterval: DefaultFlushInterval,
	}
}

// Validate checks the config for sanity.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("database directory must be set")
	}

	switch c.Backend {
	case BoltBackend, MemoryBackend:

	default:
		if c.Driver == nil {
			return fmt.Errorf("unknown backend %q, must be either "+
				"%q or %q", c.Backend, BoltBackend, MemoryBackend)
		}
	}

	switch {
	case c.CacheSize < 0:
		return fmt.Errorf("cache size must not be negative")

	case c.LogBufferSize < 0:
		return fmt.Errorf("log buffer size must not be negative")

	case c.LogMaxSize < 0:
		return fmt.Errorf("log max size must not be negative")

	case c.DBTimeout < 0:
		return fmt.Errorf("db timeout must not be negative")

	case c.FlushInterval < 0:
		return fmt.Errorf("flush interval must not be negative")
	}

	if c.LockFileName != "" {
		if err := engine.ValidateName(c.LockFileName); err != nil {
			return fmt.Errorf("invalid lock file name: %w", err)
		}
	}

	return nil
}

// driver returns the engine the config selects.
func (c *Config) driver() engine.Driver {
	if c.Driver != nil {
		return c.Driver
	}

	if c.Backend == MemoryBackend {
		return memengine.New()
	}

	return boltengine.New()
}

// lockFileName returns the directory lock marker name.
func (c *Config) lockFileName() string {
	if c.LockFileName == "" {
		return dirlock.DefaultLockFileName
	}

	return c.LockFileName
}

// engineConfig returns the options the engine is opened with.
func (c *Config) engineConfig() *engine.Config {
	cfg := engine.DefaultConfig(filepath.Join(c.Dir, LogSubdir))
	if c.CacheSize > 0 {
		cfg.CacheSize = c.CacheSize
	}
	if c.LogBufferSize > 0 {
		cfg.LogBufferSize = c.LogBufferSize
	}
	if c.LogMaxSize > 0 {
		cfg.LogMaxSize = c.LogMaxSize
	}
	if c.DBTimeout > 0 {
		cfg.Timeout = c.DBTimeout
	}
	cfg.NoFreelistSync = c.NoFreelistSync

	return cfg
}
