package txn

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// ---------- fakes ----------

type fakeScope struct {
	mu          sync.Mutex
	handle      string
	open        bool
	commits     int
	rollbacks   int
	closes      int
	commitErr   error
	rollbackErr error
	closeErr    error
}

func (s *fakeScope) Handle() string { return s.handle }

func (s *fakeScope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	if s.commitErr != nil {
		return s.commitErr
	}
	s.open = false
	return nil
}

func (s *fakeScope) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	s.open = false
	return s.rollbackErr
}

func (s *fakeScope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.open = false
	return s.closeErr
}

func (s *fakeScope) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

type fakeSource struct {
	beginErr error
	template fakeScope
	scopes   []*fakeScope
}

func (f *fakeSource) Ambient() string { return "ambient" }

func (f *fakeSource) Begin(context.Context) (Scope[string], error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	s := &fakeScope{
		handle:      "tx",
		open:        true,
		commitErr:   f.template.commitErr,
		rollbackErr: f.template.rollbackErr,
		closeErr:    f.template.closeErr,
	}
	f.scopes = append(f.scopes, s)
	return s, nil
}

func newObservedManager(src Source[string]) (*Manager[string], *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewManager(src, zap.New(core)), logs
}

// ---------- Execute ----------

func TestExecute_UsesAmbientHandle(t *testing.T) {
	src := &fakeSource{}
	m, _ := newObservedManager(src)

	var got string
	require.NoError(t, m.Execute(context.Background(), func(h string) error {
		got = h
		return nil
	}))
	assert.Equal(t, "ambient", got)
	assert.Empty(t, src.scopes)
}

func TestExecute_WrapsError(t *testing.T) {
	m, _ := newObservedManager(&fakeSource{})
	boom := errors.New("boom")

	err := m.Execute(context.Background(), func(string) error { return boom })
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestExecute_CanceledContext(t *testing.T) {
	m, _ := newObservedManager(&fakeSource{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.Execute(ctx, func(string) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

// ---------- ExecuteInNewTransaction ----------

func TestExecuteInNewTransaction_Commit(t *testing.T) {
	src := &fakeSource{}
	m, _ := newObservedManager(src)

	var got string
	require.NoError(t, m.ExecuteInNewTransaction(context.Background(), func(h string) error {
		got = h
		return nil
	}))

	require.Len(t, src.scopes, 1)
	s := src.scopes[0]
	assert.Equal(t, "tx", got)
	assert.Equal(t, 1, s.commits)
	assert.Equal(t, 0, s.rollbacks)
	assert.Equal(t, 1, s.closes)
}

func TestExecuteInNewTransaction_RollbackOnError(t *testing.T) {
	src := &fakeSource{}
	m, _ := newObservedManager(src)
	boom := errors.New("boom")

	err := m.ExecuteInNewTransaction(context.Background(), func(string) error { return boom })
	assert.ErrorIs(t, err, boom)

	s := src.scopes[0]
	assert.Equal(t, 0, s.commits)
	assert.Equal(t, 1, s.rollbacks)
	assert.Equal(t, 1, s.closes)
}

func TestExecuteInNewTransaction_RollbackOnPanic(t *testing.T) {
	src := &fakeSource{}
	m, _ := newObservedManager(src)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = m.ExecuteInNewTransaction(context.Background(), func(string) error { panic("kaboom") })
	})

	s := src.scopes[0]
	assert.Equal(t, 1, s.rollbacks)
	assert.Equal(t, 1, s.closes)
}

func TestExecuteInNewTransaction_SuppressesCleanupFailures(t *testing.T) {
	src := &fakeSource{template: fakeScope{
		rollbackErr: errors.New("rollback broke"),
		closeErr:    errors.New("close broke"),
	}}
	m, logs := newObservedManager(src)
	boom := errors.New("boom")

	err := m.ExecuteInNewTransaction(context.Background(), func(string) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, err.Error(), "broke")

	assert.Equal(t, 1, logs.FilterMessage("transaction rollback failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("transaction close failed").Len())
}

func TestExecuteInNewTransaction_CommitFailure(t *testing.T) {
	commitErr := errors.New("conflict")
	src := &fakeSource{template: fakeScope{commitErr: commitErr}}
	m, _ := newObservedManager(src)

	err := m.ExecuteInNewTransaction(context.Background(), func(string) error { return nil })
	assert.ErrorIs(t, err, commitErr)

	s := src.scopes[0]
	assert.Equal(t, 1, s.rollbacks, "scope still open after failed commit is rolled back")
	assert.Equal(t, 1, s.closes)
}

func TestExecuteInNewTransaction_BeginFailure(t *testing.T) {
	cause := errors.New("no connection")
	m, _ := newObservedManager(&fakeSource{beginErr: cause})

	err := m.ExecuteInNewTransaction(context.Background(), func(string) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrBegin)
	assert.ErrorIs(t, err, cause)
}

func TestExecuteInNewTransaction_IndependentScopes(t *testing.T) {
	src := &fakeSource{}
	m, _ := newObservedManager(src)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.ExecuteInNewTransaction(context.Background(), func(string) error { return nil }))
	}
	require.Len(t, src.scopes, 3)
	for _, s := range src.scopes {
		assert.Equal(t, 1, s.commits)
		assert.Equal(t, 1, s.closes)
	}
}

// ---------- helpers ----------

func TestDo(t *testing.T) {
	m, _ := newObservedManager(&fakeSource{})

	n, err := Do(context.Background(), m, func(h string) (int, error) { return len(h), nil })
	require.NoError(t, err)
	assert.Equal(t, len("ambient"), n)

	n, err = DoInNewTransaction(context.Background(), m, func(h string) (int, error) { return len(h), nil })
	require.NoError(t, err)
	assert.Equal(t, len("tx"), n)

	n, err = DoInNewTransaction(context.Background(), m, func(string) (int, error) { return 7, errors.New("nope") })
	require.Error(t, err)
	assert.Zero(t, n)
}
