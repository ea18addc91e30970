// Package txn runs units of work against a backend handle. A Manager either
// hands the ambient (auto-committing) handle to a callback, or opens a fresh
// transaction scope, commits it when the callback succeeds and rolls it back
// otherwise.
package txn

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Scope is one open transaction over a handle of type H.
type Scope[H any] interface {
	Handle() H
	Commit() error
	Rollback() error
	Close() error
	IsOpen() bool
}

// Source produces handles: the ambient one and fresh transaction scopes.
type Source[H any] interface {
	Ambient() H
	Begin(ctx context.Context) (Scope[H], error)
}

// ErrBegin wraps failures to open a transaction scope.
var ErrBegin = errors.New("txn: begin failed")

// Manager executes callbacks against a Source. It holds no per-call state and
// is safe for concurrent use.
type Manager[H any] struct {
	src    Source[H]
	logger *zap.Logger
}

// NewManager returns a manager over src. A nil logger discards output.
func NewManager[H any](src Source[H], logger *zap.Logger) *Manager[H] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager[H]{src: src, logger: logger}
}

// Execute runs fn on the ambient handle. Errors are returned wrapped; nothing
// is retried.
func (m *Manager[H]) Execute(ctx context.Context, fn func(H) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(m.src.Ambient()); err != nil {
		return fmt.Errorf("txn: execute: %w", err)
	}
	return nil
}

// ExecuteInNewTransaction runs fn inside a new scope. The scope is committed
// when fn returns nil and rolled back when fn fails or panics; a panic is
// re-raised after the rollback. Rollback and close failures are logged and
// suppressed so the caller sees the original cause. Close runs exactly once.
func (m *Manager[H]) ExecuteInNewTransaction(ctx context.Context, fn func(H) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	scope, err := m.src.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBegin, err)
	}
	defer m.closeScope(scope)

	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			m.rollback(scope)
			panic(r)
		}
		m.rollback(scope)
	}()

	if err := fn(scope.Handle()); err != nil {
		return fmt.Errorf("txn: execute in new transaction: %w", err)
	}
	if err := scope.Commit(); err != nil {
		return fmt.Errorf("txn: commit: %w", err)
	}
	committed = true
	return nil
}

func (m *Manager[H]) rollback(scope Scope[H]) {
	if !scope.IsOpen() {
		return
	}
	if err := scope.Rollback(); err != nil {
		m.logger.Error("transaction rollback failed", zap.Error(err))
	}
}

func (m *Manager[H]) closeScope(scope Scope[H]) {
	if err := scope.Close(); err != nil {
		m.logger.Error("transaction close failed", zap.Error(err))
	}
}

// Do is Execute for callbacks that produce a value.
func Do[H, T any](ctx context.Context, m *Manager[H], fn func(H) (T, error)) (T, error) {
	var out T
	err := m.Execute(ctx, func(h H) error {
		v, err := fn(h)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// DoInNewTransaction is ExecuteInNewTransaction for callbacks that produce a
// value. The value is returned only when the commit succeeded.
func DoInNewTransaction[H, T any](ctx context.Context, m *Manager[H], fn func(H) (T, error)) (T, error) {
	var out, zero T
	err := m.ExecuteInNewTransaction(ctx, func(h H) error {
		v, err := fn(h)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}
