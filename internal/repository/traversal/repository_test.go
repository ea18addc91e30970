package traversal

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dusk-indust/graphogm/internal/engine"
	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/repository"
	"github.com/dusk-indust/graphogm/internal/repository/repotest"
	"github.com/dusk-indust/graphogm/internal/schema"
)

func TestRepository_Memory(t *testing.T) {
	repotest.Run(t, func(t *testing.T, reg *schema.Registry) repository.Repository {
		return New(engine.NewMemoryBackend(nil), reg, Options{}, zaptest.NewLogger(t))
	})
}

func TestRepository_MemoryTransactional(t *testing.T) {
	repotest.Run(t, func(t *testing.T, reg *schema.Registry) repository.Repository {
		return New(engine.NewMemoryBackend(nil), reg, Options{TransactionalWrites: true}, zaptest.NewLogger(t))
	})
}

func TestRepository_Gremlin(t *testing.T) {
	raw := os.Getenv("GRAPHOGM_GREMLIN_URL")
	if raw == "" {
		t.Skip("GRAPHOGM_GREMLIN_URL not set")
	}
	opts, err := engine.ParseGremlinURL(raw)
	require.NoError(t, err)
	repotest.Run(t, func(t *testing.T, reg *schema.Registry) repository.Repository {
		b, err := engine.DialGremlin(opts, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, b.Ambient().DeleteAll(context.Background(), "Person"))
		require.NoError(t, b.Ambient().DeleteAll(context.Background(), "City"))
		require.NoError(t, b.Ambient().DeleteAll(context.Background(), "Ticket"))
		return New(b, reg, Options{}, zaptest.NewLogger(t))
	})
}

func newTestRepository(t *testing.T, opts Options) *Repository {
	t.Helper()
	reg := schema.NewRegistry()
	schema.MustRegister[repotest.Person](reg)
	return New(engine.NewMemoryBackend(nil), reg, opts, zaptest.NewLogger(t))
}

func TestAddEdges_TransactionalRollsBack(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, Options{TransactionalWrites: true})

	hub, err := r.CreateVertex(ctx, "Person", graph.Props{"name": "hub"})
	require.NoError(t, err)
	x, err := r.CreateVertex(ctx, "Person", graph.Props{"name": "x"})
	require.NoError(t, err)

	err = r.AddEdges(ctx, hub, []graph.ID{x, int64(9999)}, "knows", graph.DirectionOut)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrExecution)

	n, err := r.CountEdges(ctx, hub, "knows")
	require.NoError(t, err)
	assert.Zero(t, n, "partial batch rolled back")
}

func TestAddEdges_AmbientKeepsPartialWork(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, Options{})

	hub, err := r.CreateVertex(ctx, "Person", graph.Props{"name": "hub"})
	require.NoError(t, err)
	x, err := r.CreateVertex(ctx, "Person", graph.Props{"name": "x"})
	require.NoError(t, err)

	err = r.AddEdges(ctx, hub, []graph.ID{x, int64(9999)}, "knows", graph.DirectionOut)
	require.Error(t, err)

	n, err := r.CountEdges(ctx, hub, "knows")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRepository_Unregistered(t *testing.T) {
	r := newTestRepository(t, Options{})
	type Ghost struct{ ID string }

	_, err := r.Save(context.Background(), &Ghost{})
	assert.ErrorIs(t, err, schema.ErrUnregistered)

	_, err = repository.FindAll[Ghost](context.Background(), r)
	assert.ErrorIs(t, err, schema.ErrUnregistered)
}

func TestRepository_Name(t *testing.T) {
	r := newTestRepository(t, Options{})
	assert.Equal(t, "memory", r.Name())
	assert.NoError(t, r.Close(context.Background()))
}

func TestSaveAll_RollbackLeavesIdentitiesUnset(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, Options{TransactionalWrites: true})
	type Ghost struct{ ID string }

	ann := &repotest.Person{Name: "Ann"}
	_, err := r.SaveAll(ctx, ann, &Ghost{})
	require.ErrorIs(t, err, schema.ErrUnregistered)
	assert.Empty(t, ann.ID, "identity is written only after commit")

	n, err := r.CountLabel(ctx, "Person")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.SaveAll(ctx, ann)
	require.NoError(t, err)
	assert.NotEmpty(t, ann.ID)
}
