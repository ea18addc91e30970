// Package repotest holds the behavioural suite every repository.Repository
// implementation must pass.
package repotest

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/repository"
	"github.com/dusk-indust/graphogm/internal/schema"
)

// Person is the suite's primary entity.
type Person struct {
	ID      string
	Name    string
	Email   string
	Age     int
	Knows   []*Person `graph:"knows,edge=knows,dir=out"`
	LivesIn *City     `graph:"livesIn,edge=livesIn"`
}

type City struct {
	ID   string
	Name string
}

// Ticket has an integer identity field.
type Ticket struct {
	ID       int64
	Title    string
	Priority int
}

// Factory builds an empty repository whose entities are registered in reg.
type Factory func(t *testing.T, reg *schema.Registry) repository.Repository

// Run executes the suite. Each subtest gets a fresh repository.
func Run(t *testing.T, factory Factory) {
	newRepo := func(t *testing.T) repository.Repository {
		t.Helper()
		reg := schema.NewRegistry()
		schema.MustRegister[Person](reg)
		schema.MustRegister[City](reg)
		schema.MustRegister[Ticket](reg)
		r := factory(t, reg)
		t.Cleanup(func() { _ = r.Close(context.Background()) })
		return r
	}

	t.Run("SaveAndFindByID", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		ann := &Person{Name: "Ann", Email: "ann@x.io", Age: 31}
		id, err := r.Save(ctx, ann)
		require.NoError(t, err)
		require.NotEmpty(t, ann.ID)
		assert.True(t, graph.SameID(id, ann.ID))

		got, ok, err := repository.FindByID[Person](ctx, r, ann.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Ann", got.Name)
		assert.Equal(t, 31, got.Age)
		assert.Equal(t, ann.ID, got.ID)

		ok, err = r.Exists(ctx, ann.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		_, ok, err = repository.FindByID[City](ctx, r, ann.ID)
		require.NoError(t, err)
		assert.False(t, ok, "label mismatch reads as absent")
	})

	t.Run("FindersAndCounts", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		for _, p := range []*Person{
			{Name: "Ann", Email: "team@x.io", Age: 30},
			{Name: "Bob", Email: "team@x.io", Age: 40},
			{Name: "Cat", Email: "solo@x.io", Age: 30},
		} {
			_, err := r.Save(ctx, p)
			require.NoError(t, err)
		}
		_, err := r.Save(ctx, &City{Name: "Oslo"})
		require.NoError(t, err)

		all, err := repository.FindAll[Person](ctx, r)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Ann", "Bob", "Cat"}, personNames(all))

		first, err := repository.FindPage[Person](ctx, r, repository.Page{Limit: 2})
		require.NoError(t, err)
		rest, err := repository.FindPage[Person](ctx, r, repository.Page{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, first, 2)
		assert.Len(t, rest, 1)
		assert.ElementsMatch(t, []string{"Ann", "Bob", "Cat"}, append(personNames(first), personNames(rest)...))

		bob, ok, err := repository.FindByProperty[Person](ctx, r, "name", "Bob")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 40, bob.Age)

		team, err := repository.FindByProperties[Person](ctx, r, graph.Props{"email": "team@x.io", "age": 30})
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann"}, personNames(team))

		ok, err = repository.ExistsByProperty[Person](ctx, r, "name", "Zed")
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := repository.CountVertices[Person](ctx, r)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		total, err := r.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)

		st, err := repository.Stats(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, int64(4), st.VertexCount)
		assert.Equal(t, map[string]int64{"Person": 3, "City": 1, "Ticket": 0}, st.ByLabel)
	})

	t.Run("SaveOrUpdate", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		ann := &Person{Name: "Ann", Email: "old@x.io"}
		id, err := r.SaveOrUpdate(ctx, ann)
		require.NoError(t, err)

		ann.Email = "new@x.io"
		again, err := r.SaveOrUpdate(ctx, ann)
		require.NoError(t, err)
		assert.True(t, graph.SameID(id, again))

		n, err := repository.CountVertices[Person](ctx, r)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, ok, err := repository.FindByProperty[Person](ctx, r, "email", "new@x.io")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Ann", got.Name)
	})

	t.Run("SaveEntityGraph", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		oslo := &City{Name: "Oslo"}
		bob := &Person{Name: "Bob", LivesIn: oslo}
		ann := &Person{Name: "Ann", Knows: []*Person{bob}, LivesIn: oslo}
		bob.Knows = []*Person{ann}

		_, err := r.Save(ctx, ann)
		require.NoError(t, err)

		people, err := repository.CountVertices[Person](ctx, r)
		require.NoError(t, err)
		cities, err := repository.CountVertices[City](ctx, r)
		require.NoError(t, err)
		assert.Equal(t, int64(2), people)
		assert.Equal(t, int64(1), cities, "shared pointer saved once")

		known, err := repository.TraverseOutgoing[Person](ctx, r, ann.ID, "knows")
		require.NoError(t, err)
		assert.Equal(t, []string{"Bob"}, personNames(known))

		residents, err := repository.TraverseIncoming[Person](ctx, r, oslo.ID, "livesIn")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Ann", "Bob"}, personNames(residents))

		n, err := r.CountEdges(ctx, ann.ID, "knows")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("LinkAndTraverse", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		_, err := r.Link(ctx, &Person{Name: "Ann"}, &Person{Name: "Bob"}, "knows", nil)
		require.NoError(t, err)
		_, err = r.Link(ctx, &Person{Name: "Ann"}, &Person{Name: "Cat"}, "knows", graph.Props{"since": int64(2020)})
		require.NoError(t, err)

		n, err := repository.CountVertices[Person](ctx, r)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n, "endpoints are reused")

		out, err := repository.Traverse[Person](ctx, r, &Person{Name: "Ann"}, "knows", graph.DirectionOut)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Bob", "Cat"}, personNames(out))

		edges, err := r.Edges(ctx, "knows")
		require.NoError(t, err)
		require.Len(t, edges, 2)
		for _, e := range edges {
			assert.Equal(t, graph.ElementEdge, e.Kind)
			assert.Equal(t, "knows", e.Label)
		}
	})

	t.Run("EdgeDirectionsAndBoth", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		a := mustSave(t, r, "A")
		b := mustSave(t, r, "B")
		c := mustSave(t, r, "C")

		require.NoError(t, r.AddEdge(ctx, a, b, "knows", graph.DirectionOut, nil))
		require.NoError(t, r.AddEdge(ctx, a, c, "knows", graph.DirectionIn, nil))
		require.NoError(t, r.AddEdge(ctx, b, c, "knows", graph.DirectionBoth, nil))

		out, err := repository.TraverseOutgoing[Person](ctx, r, a, "knows")
		require.NoError(t, err)
		assert.Equal(t, []string{"B"}, personNames(out))

		in, err := repository.TraverseIncoming[Person](ctx, r, a, "knows")
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, personNames(in))

		// c->a from the incoming edge, b<->c from the bidirectional one.
		both, err := repository.TraverseBoth[Person](ctx, r, c, "knows")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A", "B"}, personNames(both), "distinct neighbours")

		require.NoError(t, r.DeleteEdge(ctx, a, b, "knows"))
		out, err = repository.TraverseOutgoing[Person](ctx, r, a, "knows")
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("AddEdges", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		hub := mustSave(t, r, "Hub")
		x := mustSave(t, r, "X")
		y := mustSave(t, r, "Y")

		require.NoError(t, r.AddEdges(ctx, hub, []graph.ID{x, y}, "knows", graph.DirectionOut))
		out, err := repository.TraverseOutgoing[Person](ctx, r, hub, "knows")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"X", "Y"}, personNames(out))
	})

	t.Run("TraverseWithDepth", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		a := mustSave(t, r, "A")
		b := mustSave(t, r, "B")
		c := mustSave(t, r, "C")
		require.NoError(t, r.AddEdge(ctx, a, b, "knows", graph.DirectionOut, nil))
		require.NoError(t, r.AddEdge(ctx, b, c, "knows", graph.DirectionOut, nil))

		one, err := repository.TraverseWithDepth[Person](ctx, r, a, "knows", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"B"}, personNames(one))

		two, err := repository.TraverseWithDepth[Person](ctx, r, a, "knows", 2)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"B", "C"}, personNames(two))

		none, err := repository.TraverseWithDepth[Person](ctx, r, a, "knows", 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("GetPath", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		a := mustSave(t, r, "A")
		b := mustSave(t, r, "B")
		c := mustSave(t, r, "C")
		require.NoError(t, r.AddEdge(ctx, a, b, "knows", graph.DirectionOut, nil))
		require.NoError(t, r.AddEdge(ctx, b, c, "knows", graph.DirectionOut, nil))
		require.NoError(t, r.AddEdge(ctx, a, c, "knows", graph.DirectionOut, nil))
		require.NoError(t, r.AddEdge(ctx, c, a, "knows", graph.DirectionOut, nil))

		paths, err := r.GetPath(ctx, a, c, "knows", 3)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, hops(paths))
		for _, p := range paths {
			assert.True(t, p.Simple())
			vs := p.Vertices()
			assert.True(t, graph.SameID(a, vs[0].ID))
			assert.True(t, graph.SameID(c, vs[len(vs)-1].ID))
		}

		short, err := r.GetPath(ctx, a, c, "knows", 1)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, hops(short))

		self, err := r.GetPath(ctx, a, a, "knows", 3)
		require.NoError(t, err)
		assert.Empty(t, self)
	})

	t.Run("RawOperations", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		id, err := r.CreateVertex(ctx, "Person", graph.Props{"name": "Raw", "age": int64(5)})
		require.NoError(t, err)

		m, ok, err := r.FindVertex(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Person", m.Label())
		assert.Equal(t, "Raw", m["name"])

		ok, err = r.UpdateVertex(ctx, id, graph.Props{"name": "Cooked"})
		require.NoError(t, err)
		assert.True(t, ok)

		m, ok, err = r.FindVertexByProperty(ctx, "Person", "name", "Cooked")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, graph.SameID(id, m.ID()))

		list, err := r.FindVertices(ctx, "Person", repository.Page{})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = r.LinkOrCreate(ctx,
			graph.VertexMatch{Label: "Person", Props: graph.Props{"name": "Cooked"}},
			graph.VertexMatch{Label: "City", Props: graph.Props{"name": "Rome"}},
			"livesIn", nil)
		require.NoError(t, err)

		near, err := r.TraverseVertices(ctx, id, "livesIn", graph.DirectionOut)
		require.NoError(t, err)
		require.Len(t, near, 1)
		assert.Equal(t, "Rome", near[0]["name"])

		ok, err = r.ExistsVertexByProperty(ctx, "City", "name", "Rome")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, r.DeleteVerticesByProperty(ctx, "City", "name", "Rome"))
		n, err := r.CountLabel(ctx, "City")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("MissingAndInvalidIdentities", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		a := mustSave(t, r, "A")

		for _, id := range []graph.ID{3.5, struct{}{}, nil} {
			out, err := r.TraverseVertices(ctx, id, "", graph.DirectionOut)
			require.NoError(t, err)
			assert.Empty(t, out)
			ok, err := r.Exists(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)
		}

		ok, err := r.UpdateVertex(ctx, "424242", graph.Props{"name": "x"})
		require.NoError(t, err)
		assert.False(t, ok)

		err = r.AddEdge(ctx, a, "424242", "knows", graph.DirectionOut, nil)
		assert.ErrorIs(t, err, graph.ErrExecution, "edge to a missing vertex fails")
	})

	t.Run("IntegerIdentity", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		tk := &Ticket{Title: "flaky test", Priority: 2}
		id, err := r.Save(ctx, tk)
		require.NoError(t, err)
		require.NotZero(t, tk.ID)
		assert.True(t, graph.SameID(id, tk.ID))

		got, ok, err := repository.FindByID[Ticket](ctx, r, tk.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, *tk, *got)

		all, err := repository.FindAll[Ticket](ctx, r)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, tk.ID, all[0].ID)

		tk.Priority = 1
		again, err := r.SaveOrUpdate(ctx, tk)
		require.NoError(t, err)
		assert.True(t, graph.SameID(again, tk.ID))
		got, _, err = repository.FindByID[Ticket](ctx, r, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Priority)

		n, err := repository.CountVertices[Ticket](ctx, r)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("EmptyLabelMatchesNothing", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		mustSave(t, r, "A")

		found, err := r.FindVertices(ctx, "", repository.Page{})
		require.NoError(t, err)
		assert.Empty(t, found)

		found, err = r.FindVerticesByProperties(ctx, "", graph.Props{"name": "A"})
		require.NoError(t, err)
		assert.Empty(t, found)

		ok, err := r.ExistsVertexByProperty(ctx, "", "name", "A")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, r.DeleteVerticesByProperty(ctx, "", "name", "A"))
		total, err := r.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total, "nothing deleted")
	})

	t.Run("MismatchedFilterTypes", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		_, err := r.Save(ctx, &Person{Name: "Ann", Age: 30})
		require.NoError(t, err)

		for _, filter := range []graph.Props{
			{"age": "thirty"},
			{"age": "30"},
			{"age": 30.5},
			{"name": 7},
		} {
			found, err := r.FindVerticesByProperties(ctx, "Person", filter)
			require.NoError(t, err, "%v", filter)
			assert.Empty(t, found, "%v", filter)
		}

		require.NoError(t, r.DeleteVerticesByProperty(ctx, "Person", "age", "thirty"))
		n, err := r.CountLabel(ctx, "Person")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		found, err := r.FindVerticesByProperties(ctx, "Person", graph.Props{"age": 30})
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("Deletes", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()
		a := mustSave(t, r, "A")
		b := mustSave(t, r, "B")
		require.NoError(t, r.AddEdge(ctx, a, b, "knows", graph.DirectionOut, nil))

		require.NoError(t, r.Delete(ctx, b))
		ok, err := r.Exists(ctx, b)
		require.NoError(t, err)
		assert.False(t, ok)
		n, err := r.CountEdges(ctx, a, "")
		require.NoError(t, err)
		assert.Zero(t, n, "incident edges removed with the vertex")

		require.NoError(t, repository.DeleteByProperty[Person](ctx, r, "name", "A"))
		_, err = r.Save(ctx, &City{Name: "Oslo"})
		require.NoError(t, err)
		require.NoError(t, repository.DeleteAll[City](ctx, r))
		total, err := r.CountAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, total)

		require.NoError(t, r.DeleteLabel(ctx, "Nothing"))
	})
}

func mustSave(t *testing.T, r repository.Repository, name string) graph.ID {
	t.Helper()
	p := &Person{Name: name}
	_, err := r.Save(context.Background(), p)
	require.NoError(t, err)
	return p.ID
}

func personNames(ps []*Person) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func hops(paths []graph.Path) []int {
	out := make([]int, 0, len(paths))
	for _, p := range paths {
		out = append(out, p.Hops())
	}
	sort.Ints(out)
	return out
}
