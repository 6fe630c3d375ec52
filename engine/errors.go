package engine

import "errors"

var (
	// ErrNotFound is returned when a key is not present in a file.
	ErrNotFound = errors.New("key not found")

	// ErrKeyExists is returned by a non-overwriting put on an existing
	// key.
	ErrKeyExists = errors.New("key already exists")

	// ErrFileNotFound is returned when opening a file that does not exist
	// without the create flag.
	ErrFileNotFound = errors.New("database file not found")

	// ErrFileOpen is returned when an already open file is opened again
	// or verified while open.
	ErrFileOpen = errors.New("database file already open")

	// ErrEnvClosed is returned when an environment is used after Close.
	ErrEnvClosed = errors.New("environment closed")

	// ErrTxnDone is returned when a transaction is used after it was
	// committed or aborted.
	ErrTxnDone = errors.New("transaction already finished")

	// ErrTxnReadOnly is returned for a write inside a read-only
	// transaction.
	ErrTxnReadOnly = errors.New("transaction is read-only")

	// ErrTxnForeign is returned when a transaction of one engine is
	// handed to another.
	ErrTxnForeign = errors.New("transaction belongs to another engine")

	// ErrInvalidName is returned for empty or path-like file names.
	ErrInvalidName = errors.New("invalid database file name")
)

// ErrTxnRequired is returned for writes issued without a transaction while
// auto-commit is disabled.
var ErrTxnRequired = errors.New("auto-commit disabled, transaction required")
