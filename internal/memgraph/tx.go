package memgraph

import "sync"

// Tx is an optimistic transaction. Begin snapshots the graph once and
// traversals on the returned source mutate that working copy in place.
// Commit publishes it unless another writer committed first.
type Tx struct {
	g *Graph

	mu      sync.RWMutex
	work    *store
	base    uint64
	open    bool
	dirty   bool
	started bool
}

// Begin opens the transaction and returns a source bound to it.
func (tx *Tx) Begin() (*Source, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.started {
		return nil, ErrTxClosed
	}
	tx.g.mu.RLock()
	tx.work = tx.g.s.clone()
	tx.base = tx.g.s.version
	tx.g.mu.RUnlock()
	tx.open = true
	tx.started = true
	return &Source{ref: tx}, nil
}

// Commit publishes the working copy. It fails with ErrConflict if the graph
// version moved since Begin and the transaction wrote anything.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.open {
		return ErrTxClosed
	}
	tx.open = false
	if !tx.dirty {
		tx.work = nil
		return nil
	}

	tx.g.mu.Lock()
	defer tx.g.mu.Unlock()
	if tx.g.s.version != tx.base {
		tx.work = nil
		return ErrConflict
	}
	tx.work.version = tx.base + 1
	tx.g.s = tx.work
	tx.work = nil
	return nil
}

// Rollback discards the working copy.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.open {
		return ErrTxClosed
	}
	tx.open = false
	tx.work = nil
	return nil
}

// Close rolls back an open transaction. Closing twice is a no-op.
func (tx *Tx) Close() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.open = false
	tx.work = nil
	return nil
}

// IsOpen reports whether the transaction can still be used.
func (tx *Tx) IsOpen() bool {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.open
}

func (tx *Tx) read(fn func(*store) error) error {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	if !tx.open {
		return ErrTxClosed
	}
	return fn(tx.work)
}

func (tx *Tx) write(fn func(*store) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.open {
		return ErrTxClosed
	}
	if err := fn(tx.work); err != nil {
		tx.work.revert()
		return err
	}
	tx.work.settle()
	tx.dirty = true
	return nil
}
