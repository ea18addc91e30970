package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dusk-indust/graphogm/internal/engine"
	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/repository"
	"github.com/dusk-indust/graphogm/internal/repository/traversal"
	"github.com/dusk-indust/graphogm/internal/schema"
)

type Author struct {
	ID    string
	Name  string
	Wrote []*Book `graph:"wrote,edge=wrote"`
}

type Book struct {
	ID    string
	Title string
}

func seededRepository(t *testing.T) repository.Repository {
	t.Helper()
	reg := schema.NewRegistry()
	schema.MustRegister[Author](reg)
	schema.MustRegister[Book](reg)
	repo := traversal.New(engine.NewMemoryBackend(nil), reg, traversal.Options{}, zaptest.NewLogger(t))

	ctx := context.Background()
	_, err := repo.Save(ctx, &Author{Name: `Le "Guin"`, Wrote: []*Book{{Title: "Earthsea"}, {Title: "Lathe"}}})
	require.NoError(t, err)
	_, err = repo.CreateVertex(ctx, "Shelf", graph.Props{"name": "unregistered"})
	require.NoError(t, err)
	return repo
}

func TestBuild(t *testing.T) {
	repo := seededRepository(t)
	snap, err := Build(context.Background(), repo, Options{})
	require.NoError(t, err)

	assert.Equal(t, "memory", snap.Backend)
	assert.Equal(t, int64(4), snap.Stats.VertexCount)
	assert.Equal(t, map[string]int64{"Author": 1, "Book": 2}, snap.Stats.ByLabel)
	assert.Len(t, snap.Vertices, 3, "only registered labels by default")
	require.Len(t, snap.Edges, 2)
	for _, e := range snap.Edges {
		assert.Equal(t, "wrote", e.Label)
	}
}

func TestBuild_LabelScope(t *testing.T) {
	repo := seededRepository(t)
	snap, err := Build(context.Background(), repo, Options{Labels: []string{"Book"}})
	require.NoError(t, err)
	assert.Len(t, snap.Vertices, 2)
	assert.Empty(t, snap.Edges, "edges need both endpoints in scope")

	snap, err = Build(context.Background(), repo, Options{EdgeLabel: "missing"})
	require.NoError(t, err)
	assert.Empty(t, snap.Edges)
}

func TestWriteJSON(t *testing.T) {
	snap, err := Build(context.Background(), seededRepository(t), Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snap))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "memory", decoded["backend"])
	assert.Len(t, decoded["vertices"], 3)
	assert.Len(t, decoded["edges"], 2)
}

func TestMermaid(t *testing.T) {
	snap := &Snapshot{
		Vertices: []graph.Element{
			{Kind: graph.ElementVertex, ID: "a1", Label: "Author", Props: graph.Props{"name": `Le "Guin"`}},
			{Kind: graph.ElementVertex, ID: "b1", Label: "Book", Props: graph.Props{"title": "Earthsea"}},
			{Kind: graph.ElementVertex, ID: "b2", Label: "Book"},
		},
		Edges: []graph.Element{
			{Kind: graph.ElementEdge, ID: "e1", Label: "wrote", OutV: "a1", InV: "b1"},
		},
	}
	want := "graph LR\n" +
		"  subgraph G0[\"Author\"]\n" +
		"    N0[\"Le #quot;Guin#quot;\"]\n" +
		"  end\n" +
		"  subgraph G1[\"Book\"]\n" +
		"    N1[\"Earthsea\"]\n" +
		"    N2[\"Book b2\"]\n" +
		"  end\n" +
		"  N0 -->|wrote| N1\n"
	assert.Equal(t, want, Mermaid(snap))
}
