package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/memgraph"
)

func TestMemoryEngine(t *testing.T) {
	runEngineSuite(t, func(t *testing.T) Engine {
		return NewMemoryBackend(nil).Ambient()
	})
}

func TestMemoryBackend_Scopes(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(nil)

	scope, err := b.Begin(ctx)
	require.NoError(t, err)
	require.True(t, scope.IsOpen())
	_, err = scope.Handle().CreateVertex(ctx, "Person", graph.Props{"name": "tx"})
	require.NoError(t, err)

	n, err := b.Ambient().Count(ctx, "Person")
	require.NoError(t, err)
	assert.Zero(t, n, "uncommitted vertex is invisible")

	require.NoError(t, scope.Commit())
	require.NoError(t, scope.Close())
	n, err = b.Ambient().Count(ctx, "Person")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rolled, err := b.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, rolled.Handle().DeleteAll(ctx, "Person"))
	require.NoError(t, rolled.Rollback())
	assert.False(t, rolled.IsOpen())
	n, err = b.Ambient().Count(ctx, "Person")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryBackend_Conflict(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(memgraph.New())

	scope, err := b.Begin(ctx)
	require.NoError(t, err)
	_, err = scope.Handle().CreateVertex(ctx, "A", nil)
	require.NoError(t, err)

	_, err = b.Ambient().CreateVertex(ctx, "B", nil)
	require.NoError(t, err)

	err = scope.Commit()
	require.Error(t, err)
	assert.True(t, errors.Is(err, memgraph.ErrConflict))
	assert.ErrorIs(t, err, graph.ErrExecution)
}

func TestMemoryEngine_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewMemoryBackend(nil).Ambient()

	_, err := e.CreateVertex(ctx, "A", nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.FindAll(ctx, "A")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewMemoryBackend(nil).Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
