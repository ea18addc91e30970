package engine

import (
	"os"
	"testing"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// TestGremlinEngine runs the engine suite against a live server, e.g.
// GRAPHOGM_GREMLIN_URL=ws://localhost:8182/gremlin with TinkerGraph.
func TestGremlinEngine(t *testing.T) {
	raw := os.Getenv("GRAPHOGM_GREMLIN_URL")
	if raw == "" {
		t.Skip("GRAPHOGM_GREMLIN_URL not set")
	}
	opts, err := ParseGremlinURL(raw)
	require.NoError(t, err)
	opts.PoolSize = 8
	opts.BatchSize = 512

	b, err := DialGremlin(opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(t.Context()) })

	runEngineSuite(t, func(t *testing.T) Engine {
		require.NoError(t, <-b.g.V().Drop().Iterate())
		return b.Ambient()
	})
}

func TestGremlinOptions_URL(t *testing.T) {
	require.Equal(t, "ws://db:8182/gremlin", GremlinOptions{Host: "db", Port: 8182}.URL())
	require.Equal(t, "wss://db:443/gremlin", GremlinOptions{Host: "db", Port: 443, SSL: true}.URL())
}

func TestParseGremlinURL(t *testing.T) {
	opts, err := ParseGremlinURL("wss://graph.local:8443/gremlin")
	require.NoError(t, err)
	require.Equal(t, GremlinOptions{Host: "graph.local", Port: 8443, SSL: true}, opts)

	_, err = ParseGremlinURL("http://graph.local:8182")
	require.Error(t, err)
	_, err = ParseGremlinURL("ws://graph.local")
	require.Error(t, err)
}

func TestPathTraversal_Script(t *testing.T) {
	g := gremlingo.NewDefaultGraphTraversalSource()
	script, err := gremlingo.NewTranslator("g").Translate(pathTraversal(g, int64(1), int64(2), "knows", 3).Bytecode)
	require.NoError(t, err)

	assert.Contains(t, script, "g.V(1).repeat(outE('knows').inV().simplePath())")
	assert.Contains(t, script, "emit(hasId(2))")
	assert.Contains(t, script, "times(3)")
	assert.NotContains(t, script, "until(", "until() cannot be combined with times()")
}

func TestElementFromMap(t *testing.T) {
	tests := []struct {
		name string
		in   map[interface{}]interface{}
		want graph.Element
	}{
		{
			name: "vertex keeps IN and OUT properties",
			in:   map[interface{}]interface{}{gremlingo.T.Id: int64(1), gremlingo.T.Label: "Gate", "IN": "north", "OUT": int64(2)},
			want: graph.Element{Kind: graph.ElementVertex, ID: int64(1), Label: "Gate", Props: graph.Props{"IN": "north", "OUT": int64(2)}},
		},
		{
			name: "edge endpoints",
			in: map[interface{}]interface{}{
				"id": int64(9), "label": "knows", "since": int32(2020),
				"OUT": map[interface{}]interface{}{"id": int64(1), "label": "Person"},
				"IN":  map[interface{}]interface{}{"id": int64(2), "label": "Person"},
			},
			want: graph.Element{Kind: graph.ElementEdge, ID: int64(9), Label: "knows", Props: graph.Props{"since": int64(2020)}, OutV: int64(1), InV: int64(2)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, elementFromMap(tt.in))
		})
	}
}
