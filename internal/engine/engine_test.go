package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// runEngineSuite exercises the Engine contract. newEngine must return an
// engine over an empty graph.
func runEngineSuite(t *testing.T, newEngine func(t *testing.T) Engine) {
	ctx := context.Background()

	t.Run("CreateAndFind", func(t *testing.T) {
		e := newEngine(t)
		id, err := e.CreateVertex(ctx, "Person", graph.Props{"name": "Ann", "age": 31, "nick": nil})
		require.NoError(t, err)
		require.NotNil(t, id)

		got, ok, err := e.FindByID(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Ann", got["name"])
		assert.Equal(t, int64(31), got["age"])
		assert.Equal(t, "Person", got.Label())
		assert.True(t, graph.SameID(id, got.ID()))
		assert.NotContains(t, got, "nick")

		exists, err := e.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("UpdateVertex", func(t *testing.T) {
		e := newEngine(t)
		id, err := e.CreateVertex(ctx, "Person", graph.Props{"name": "Ann", "city": "Oslo"})
		require.NoError(t, err)

		ok, err := e.UpdateVertex(ctx, id, graph.Props{"name": "Anna", "city": nil, "id": "ignored"})
		require.NoError(t, err)
		assert.True(t, ok)

		got, _, err := e.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Anna", got["name"])
		assert.NotContains(t, got, "city")
		assert.True(t, graph.SameID(id, got.ID()))
	})

	t.Run("LookupsByLabelAndProperty", func(t *testing.T) {
		e := newEngine(t)
		for _, name := range []string{"a", "b", "c", "d"} {
			_, err := e.CreateVertex(ctx, "Person", graph.Props{"name": name, "team": "x"})
			require.NoError(t, err)
		}
		_, err := e.CreateVertex(ctx, "City", graph.Props{"name": "a"})
		require.NoError(t, err)

		all, err := e.FindAll(ctx, "Person")
		require.NoError(t, err)
		assert.Len(t, all, 4)

		page, err := e.FindPage(ctx, "Person", 2, 1)
		require.NoError(t, err)
		assert.Len(t, page, 2)

		rest, err := e.FindPage(ctx, "Person", 0, 3)
		require.NoError(t, err)
		assert.Len(t, rest, 1)

		one, ok, err := e.FindByProperty(ctx, "City", "name", "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "City", one.Label())

		_, ok, err = e.FindByProperty(ctx, "City", "name", "zzz")
		require.NoError(t, err)
		assert.False(t, ok)

		matches, err := e.FindByProperties(ctx, "Person", graph.Props{"team": "x", "name": "c"})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "c", matches[0]["name"])

		exists, err := e.ExistsByProperty(ctx, "Person", "name", "d")
		require.NoError(t, err)
		assert.True(t, exists)

		n, err := e.Count(ctx, "Person")
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		total, err := e.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})

	t.Run("InvalidIdentityYieldsEmpty", func(t *testing.T) {
		e := newEngine(t)
		bad := []graph.ID{nil, 3.5, []int{1}}
		for _, id := range bad {
			_, ok, err := e.FindByID(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)

			exists, err := e.Exists(ctx, id)
			require.NoError(t, err)
			assert.False(t, exists)

			out, err := e.TraverseOutgoing(ctx, id, "knows")
			require.NoError(t, err)
			assert.Empty(t, out)

			paths, err := e.FindPath(ctx, id, id, "knows", 3)
			require.NoError(t, err)
			assert.Empty(t, paths)

			n, err := e.CountEdges(ctx, id, "knows")
			require.NoError(t, err)
			assert.Zero(t, n)
		}
	})

	t.Run("AddEdgeDirections", func(t *testing.T) {
		e := newEngine(t)
		v := mustVertex(t, e, "Person", "v")
		w := mustVertex(t, e, "Person", "w")
		x := mustVertex(t, e, "Person", "x")

		require.NoError(t, e.AddEdge(ctx, v, w, "knows", graph.DirectionOut, nil))
		assertNames(t, e.TraverseOutgoing, v, "knows", "w")
		assertNames(t, e.TraverseIncoming, w, "knows", "v")

		require.NoError(t, e.AddEdge(ctx, v, x, "likes", graph.DirectionIn, nil))
		assertNames(t, e.TraverseOutgoing, x, "likes", "v")
		assertNames(t, e.TraverseOutgoing, v, "likes")

		require.NoError(t, e.AddEdge(ctx, w, x, "pal", graph.DirectionBoth, graph.Props{"since": 2020}))
		assertNames(t, e.TraverseOutgoing, w, "pal", "x")
		assertNames(t, e.TraverseOutgoing, x, "pal", "w")

		n, err := e.CountEdges(ctx, w, "pal")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n, "BOTH creates two directed edges")

		pals, err := e.EdgesByLabel(ctx, "pal")
		require.NoError(t, err)
		require.Len(t, pals, 2)
		for _, el := range pals {
			assert.Equal(t, graph.ElementEdge, el.Kind)
			assert.Equal(t, "pal", el.Label)
		}

		err = e.AddEdge(ctx, v, "999999", "knows", graph.DirectionOut, nil)
		assert.ErrorIs(t, err, graph.ErrExecution)
	})

	t.Run("TraverseBothDistinct", func(t *testing.T) {
		e := newEngine(t)
		a := mustVertex(t, e, "Person", "a")
		b := mustVertex(t, e, "Person", "b")
		require.NoError(t, e.AddEdge(ctx, a, b, "knows", graph.DirectionBoth, nil))

		assertNames(t, e.TraverseBoth, a, "knows", "b")
	})

	t.Run("LinkOrCreate", func(t *testing.T) {
		e := newEngine(t)
		ann := graph.VertexMatch{Label: "Person", Props: graph.Props{"name": "Ann"}}
		bob := graph.VertexMatch{Label: "Person", Props: graph.Props{"name": "Bob"}}

		_, err := e.LinkOrCreate(ctx, ann, bob, "follows", graph.Props{"w": 1})
		require.NoError(t, err)
		_, err = e.LinkOrCreate(ctx, ann, bob, "follows", nil)
		require.NoError(t, err)

		n, err := e.Count(ctx, "Person")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n, "endpoints are reused")

		edges, err := e.EdgesByLabel(ctx, "follows")
		require.NoError(t, err)
		assert.Len(t, edges, 2, "each call adds a new edge")

		out, err := e.Traverse(ctx, ann, "follows", graph.DirectionOut)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "Bob", out[0]["name"])
	})

	t.Run("TraverseWithDepth", func(t *testing.T) {
		e := newEngine(t)
		a := mustVertex(t, e, "Person", "a")
		b := mustVertex(t, e, "Person", "b")
		c := mustVertex(t, e, "Person", "c")
		d := mustVertex(t, e, "Person", "d")
		require.NoError(t, e.AddEdges(ctx, a, []graph.ID{b}, "knows", graph.DirectionOut))
		require.NoError(t, e.AddEdges(ctx, b, []graph.ID{c}, "knows", graph.DirectionOut))
		require.NoError(t, e.AddEdges(ctx, c, []graph.ID{d}, "knows", graph.DirectionOut))

		one := func(t *testing.T) {
			out, err := e.TraverseWithDepth(ctx, a, "knows", 1)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"b"}, namesOf(out))
		}
		two := func(t *testing.T) {
			out, err := e.TraverseWithDepth(ctx, a, "knows", 2)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"b", "c"}, namesOf(out))
		}
		t.Run("depth1", one)
		t.Run("depth2", two)

		out, err := e.TraverseWithDepth(ctx, a, "knows", 0)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("FindPath", func(t *testing.T) {
		e := newEngine(t)
		a := mustVertex(t, e, "Person", "a")
		x := mustVertex(t, e, "Person", "x")
		b := mustVertex(t, e, "Person", "b")
		lonely := mustVertex(t, e, "Person", "lonely")
		require.NoError(t, e.AddEdge(ctx, a, x, "knows", graph.DirectionOut, nil))
		require.NoError(t, e.AddEdge(ctx, x, b, "knows", graph.DirectionOut, nil))

		paths, err := e.FindPath(ctx, a, b, "knows", 2)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, 2, paths[0].Hops())
		require.Len(t, paths[0], 5)
		assert.Equal(t, graph.ElementVertex, paths[0][0].Kind)
		assert.Equal(t, graph.ElementEdge, paths[0][1].Kind)
		assert.True(t, graph.SameID(a, paths[0][0].ID))
		assert.True(t, graph.SameID(b, paths[0][4].ID))

		short, err := e.FindPath(ctx, a, b, "knows", 1)
		require.NoError(t, err)
		assert.Empty(t, short)

		require.NoError(t, e.AddEdge(ctx, a, b, "knows", graph.DirectionOut, nil))
		paths, err = e.FindPath(ctx, a, b, "knows", 2)
		require.NoError(t, err)
		require.Len(t, paths, 2)
		hops := []int{paths[0].Hops(), paths[1].Hops()}
		assert.ElementsMatch(t, []int{1, 2}, hops)

		none, err := e.FindPath(ctx, a, lonely, "knows", 3)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("FindPathIgnoresCycles", func(t *testing.T) {
		e := newEngine(t)
		a := mustVertex(t, e, "Person", "a")
		b := mustVertex(t, e, "Person", "b")
		require.NoError(t, e.AddEdge(ctx, a, b, "knows", graph.DirectionBoth, nil))

		paths, err := e.FindPath(ctx, a, b, "knows", 5)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.True(t, paths[0].Simple())
	})

	t.Run("Deletes", func(t *testing.T) {
		e := newEngine(t)
		a := mustVertex(t, e, "Person", "a")
		b := mustVertex(t, e, "Person", "b")
		c := mustVertex(t, e, "Person", "c")
		require.NoError(t, e.AddEdge(ctx, a, b, "knows", graph.DirectionOut, nil))
		require.NoError(t, e.AddEdge(ctx, a, c, "knows", graph.DirectionOut, nil))
		require.NoError(t, e.AddEdge(ctx, c, a, "likes", graph.DirectionOut, nil))

		require.NoError(t, e.DeleteEdge(ctx, a, b, "knows"))
		assertNames(t, e.TraverseOutgoing, a, "knows", "c")

		require.NoError(t, e.DeleteEdgesIncident(ctx, a, "likes"))
		n, err := e.CountEdges(ctx, a, "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		require.NoError(t, e.DeleteEdgesByLabel(ctx, "knows"))
		n, err = e.CountEdges(ctx, a, "")
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, e.DeleteByProperty(ctx, "Person", "name", "b"))
		_, ok, err := e.FindByProperty(ctx, "Person", "name", "b")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, e.Delete(ctx, c))
		exists, err := e.Exists(ctx, c)
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, e.DeleteAll(ctx, "Person"))
		total, err := e.CountAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

// ---------- helpers ----------

func mustVertex(t *testing.T, e Engine, label, name string) graph.ID {
	t.Helper()
	id, err := e.CreateVertex(context.Background(), label, graph.Props{"name": name})
	require.NoError(t, err)
	return id
}

func namesOf(maps []graph.Props) []string {
	out := make([]string, 0, len(maps))
	for _, m := range maps {
		out = append(out, graph.ToString(m["name"]))
	}
	return out
}

type traverseFunc func(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error)

func assertNames(t *testing.T, fn traverseFunc, id graph.ID, edgeLabel string, want ...string) {
	t.Helper()
	out, err := fn(context.Background(), id, edgeLabel)
	require.NoError(t, err)
	if len(want) == 0 {
		assert.Empty(t, out)
		return
	}
	assert.ElementsMatch(t, want, namesOf(out))
}
