package boltengine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quanghuy1258/wallet/engine"
	"go.etcd.io/bbolt"
)

// txn is an environment transaction. It starts one bbolt transaction per
// file it touches, writable unless the txn is read-only. A commit spanning
// several files is atomic per file only.
type txn struct {
	env      *env
	readOnly bool

	mu      sync.Mutex
	done    bool
	txs     map[*file]*bbolt.Tx
	pending []*record
}

// Compile-time check that txn implements engine.Txn.
var _ engine.Txn = (*txn)(nil)

// bind returns the transaction on f, starting it on first use.
func (t *txn) bind(f *file) (*bbolt.Tx, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil, engine.ErrTxnDone
	}
	if tx, ok := t.txs[f]; ok {
		return tx, nil
	}

	tx, err := f.db.Begin(!t.readOnly)
	if err != nil {
		return nil, err
	}
	t.txs[f] = tx

	return tx, nil
}

// queue remembers a journal record to write once the transaction commits.
func (t *txn) queue(rec *record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = append(t.pending, rec)
}

// Commit commits every file transaction and journals the writes.
func (t *txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return engine.ErrTxnDone
	}
	t.done = true

	var commitErr error
	for f, tx := range t.txs {
		if t.readOnly {
			if err := tx.Rollback(); err != nil {
				commitErr = fmt.Errorf("release %v: %w", f.name,
					err)
			}
			continue
		}
		if commitErr != nil {
			_ = tx.Rollback()
			continue
		}
		if err := tx.Commit(); err != nil {
			commitErr = fmt.Errorf("commit %v: %w", f.name, err)
		}
	}
	t.txs = nil
	if commitErr != nil {
		return commitErr
	}

	if len(t.pending) == 0 {
		return nil
	}
	recs := append(t.pending, &record{kind: kindCommit})
	t.pending = nil

	return t.env.journal.append(recs...)
}

// Abort rolls back every file transaction.
func (t *txn) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return engine.ErrTxnDone
	}
	t.done = true

	var errs []error
	for _, tx := range t.txs {
		errs = append(errs, tx.Rollback())
	}
	t.txs = nil
	t.pending = nil

	return errors.Join(errs...)
}
