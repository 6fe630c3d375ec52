// Package engine defines the boundary between the wallet storage environment
// and the transactional key-value engine that actually stores the bytes.
// Implementations live in the boltengine and memengine sub-packages.
package engine

import (
	"time"
)

const (
	// DefaultCacheSize is the default engine cache size in bytes.
	DefaultCacheSize = 0x100000

	// DefaultLogBufferSize is the default size of the in-memory log
	// buffer in bytes.
	DefaultLogBufferSize = 0x10000

	// DefaultLogMaxSize is the default size in bytes a single log file
	// may grow to before it is rotated.
	DefaultLogMaxSize = 0x100000

	// DefaultTimeout is how long opening a file waits for a file level
	// lock held by another process.
	DefaultTimeout = 60 * time.Second
)

// Config holds the options an engine environment is opened with.
type Config struct {
	// CacheSize is the cache size hint in bytes.
	CacheSize int64

	// LogDir is the directory the engine keeps its log files in.
	LogDir string

	// LogBufferSize is the size of the in-memory log buffer in bytes.
	LogBufferSize int

	// LogMaxSize is the size a log file may grow to before the engine
	// switches to a new one.
	LogMaxSize int64

	// AutoCommit makes operations issued without a transaction commit
	// on their own.
	AutoCommit bool

	// Recover runs crash recovery while opening.
	Recover bool

	// Timeout bounds how long OpenFile waits for a file lock.
	Timeout time.Duration

	// NoFreelistSync skips syncing the free page list to disk, trading
	// startup time for write throughput.
	NoFreelistSync bool
}

// DefaultConfig returns the engine defaults for an environment whose log
// directory is logDir.
func DefaultConfig(logDir string) *Config {
	return &Config{
		CacheSize:     DefaultCacheSize,
		LogDir:        logDir,
		LogBufferSize: DefaultLogBufferSize,
		LogMaxSize:    DefaultLogMaxSize,
		AutoCommit:    true,
		Recover:       true,
		Timeout:       DefaultTimeout,
	}
}

// Driver opens engine environments. A driver is the engine "type", e.g. the
// bbolt backed or the in-memory one.
type Driver interface {
	// Name returns the backend name used in configuration.
	Name() string

	// Open opens (creating if needed) the environment rooted at dir.
	Open(dir string, cfg *Config) (Env, error)
}

// Env is an open engine environment for one directory.
type Env interface {
	// Close closes the environment. All files must already be closed.
	Close() error

	// Checkpoint flushes engine state to stable storage. The checkpoint
	// is skipped unless at least sizeKB kilobytes of log were written or
	// minMinutes minutes passed since the last one. A zero for both
	// forces it.
	Checkpoint(sizeKB, minMinutes uint32) error

	// ArchivedLogFiles returns the log files that are no longer needed
	// for recovery, oldest first.
	ArchivedLogFiles() ([]string, error)

	// OpenFile opens the named database file. ErrFileNotFound is
	// returned if it does not exist and create is false.
	OpenFile(name string, create bool) (File, error)

	// BeginTxn starts a transaction. A read-only transaction sees a
	// stable view of every file it reads and does not block writers or
	// other readers; writes inside it fail with ErrTxnReadOnly.
	BeginTxn(readOnly bool) (Txn, error)

	// Verify checks the structural consistency of a file that is not
	// currently open.
	Verify(name string) error

	// FilePath returns the on-disk location of the named file, or the
	// empty string if the engine does not keep files on disk.
	FilePath(name string) string
}

// File is an open database file inside an environment. A nil Txn means the
// operation runs on its own.
type File interface {
	// Name returns the file name within the environment.
	Name() string

	// Close closes the file.
	Close() error

	// Get returns a copy of the value stored under key, or ErrNotFound.
	Get(txn Txn, key []byte) ([]byte, error)

	// Put stores value under key. If overwrite is false and the key
	// exists, ErrKeyExists is returned and nothing is written.
	Put(txn Txn, key, value []byte, overwrite bool) error

	// Delete removes key, returning ErrNotFound if it was not present.
	Delete(txn Txn, key []byte) error

	// Exists reports whether key is present.
	Exists(txn Txn, key []byte) (bool, error)

	// Cursor opens a forward cursor positioned before the first entry.
	Cursor(txn Txn) (Cursor, error)
}

// Txn is an engine transaction.
type Txn interface {
	// Commit makes the transaction's writes durable.
	Commit() error

	// Abort discards the transaction's writes.
	Abort() error
}

// Cursor iterates over the entries of a file in key order.
type Cursor interface {
	// Next returns copies of the next key and value. io.EOF is returned
	// once the cursor is exhausted.
	Next() (key, value []byte, err error)

	// Close releases the cursor.
	Close() error
}
