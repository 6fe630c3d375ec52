package walletdb

import (
	"errors"
	"fmt"

	"github.com/quanghuy1258/wallet/dirlock"
	"github.com/quanghuy1258/wallet/engine"
)

var (
	// ErrIOFailure is returned when a directory, lock, engine or file
	// cannot be created, opened, closed or written.
	ErrIOFailure = errors.New("storage I/O failure")

	// ErrLockHeld is returned when the environment directory is locked by
	// another environment.
	ErrLockHeld = dirlock.ErrLockHeld

	// ErrInUse is returned when closing something that open batches still
	// use.
	ErrInUse = errors.New("database in use")

	// ErrNotFound is returned when a key or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by a non-overwriting put on an existing
	// key and when binding a second database to the same file name.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTxnState is returned when beginning a transaction while one is
	// active, or committing or aborting without one.
	ErrTxnState = errors.New("invalid transaction state")

	// ErrReadOnly is returned by writes through a read-only batch.
	ErrReadOnly = errors.New("batch is read-only")

	// ErrBatchClosed is returned by every batch operation after Close.
	ErrBatchClosed = errors.New("batch closed")

	// ErrDatabaseNotOpen is returned when the database has no open file
	// handle or was released.
	ErrDatabaseNotOpen = errors.New("database not open")

	// ErrInvalidName is returned for an empty or path-like file name.
	ErrInvalidName = errors.New("invalid database name")

	// ErrEnvNotOpen is returned by operations that need an initialized
	// environment.
	ErrEnvNotOpen = errors.New("environment not open")
)

// translateErr maps an engine error onto the error kinds of this package,
// keeping the original error in the chain.
func translateErr(err error) error {
	var kind error
	switch {
	case err == nil:
		return nil

	case errors.Is(err, engine.ErrNotFound),
		errors.Is(err, engine.ErrFileNotFound):

		kind = ErrNotFound

	case errors.Is(err, engine.ErrKeyExists):
		kind = ErrAlreadyExists

	case errors.Is(err, engine.ErrTxnDone):
		kind = ErrTxnState

	case errors.Is(err, engine.ErrTxnReadOnly):
		kind = ErrReadOnly

	case errors.Is(err, engine.ErrInvalidName):
		kind = ErrInvalidName

	case errors.Is(err, engine.ErrEnvClosed):
		kind = ErrEnvNotOpen

	default:
		kind = ErrIOFailure
	}

	return fmt.Errorf("%w: %w", kind, err)
}
