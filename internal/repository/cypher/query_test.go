package cypher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/graphogm/internal/graph"
)

func TestQuote(t *testing.T) {
	q, err := quote("Person")
	require.NoError(t, err)
	assert.Equal(t, "`Person`", q)

	for _, bad := range []string{"", "a`b", "x\ny"} {
		_, err := quote(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestRelPattern(t *testing.T) {
	tests := []struct {
		name  string
		v     string
		label string
		hops  string
		dir   graph.Direction
		want  string
	}{
		{"out", "r", "knows", "", graph.DirectionOut, "-[r:`knows`]->"},
		{"in", "", "knows", "", graph.DirectionIn, "<-[:`knows`]-"},
		{"both any label", "r", "", "", graph.DirectionBoth, "-[r]-"},
		{"variable length", "", "knows", "*1..3", graph.DirectionOut, "-[:`knows`*1..3]->"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := relPattern(tt.v, tt.label, tt.hops, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionsAndLiterals(t *testing.T) {
	p := params{}
	conds, err := conditions(p, "n", graph.Props{"name": "Ann", "age": 3, "gone": nil})
	require.NoError(t, err)
	assert.Equal(t, []string{"n.`age` = $p0", "n.`gone` IS NULL", "n.`name` = $p1"}, conds)
	assert.Equal(t, params{"p0": int64(3), "p1": "Ann"}, p)
	assert.Equal(t, " WHERE a AND b", whereClause([]string{"a", "b"}))
	assert.Empty(t, whereClause(nil))

	p = params{}
	lit, err := mapLiteral(p, 42, graph.Props{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "{`_uid`: $p0, `name`: $p1}", lit)
	assert.Equal(t, int64(42), p["p0"])

	assert.Equal(t, " SKIP 2 LIMIT 5", pageClause(5, 2))
	assert.Equal(t, " LIMIT 1", pageClause(1, 0))
	assert.Empty(t, pageClause(0, -1))
}

func TestStorable(t *testing.T) {
	got := storable(graph.Props{"id": 1, "label": "x", KeyUID: "u", "name": "Ann", "nil": nil, "n": 7})
	assert.Equal(t, graph.Props{"name": "Ann", "n": int64(7)}, got)
}

func TestUIDOf(t *testing.T) {
	tests := []struct {
		name string
		in   graph.ID
		want int64
		ok   bool
	}{
		{"int64", int64(7), 7, true},
		{"int", 9, 9, true},
		{"uint8", uint8(3), 3, true},
		{"numeric string", "42", 42, true},
		{"non-numeric string", "abc", 0, false},
		{"float", 1.5, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := uidOf(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUIDSource(t *testing.T) {
	clock := time.UnixMilli(uidEpoch + 1000)
	s := newUIDSource(func() time.Time { return clock })

	first := s.next()
	assert.Equal(t, int64(1000), first>>(uidNodeBits+uidSeqBits), "milliseconds since the epoch lead")
	assert.Zero(t, first&uidSeqMask)

	prev := first
	for i := 0; i < uidSeqMask+10; i++ {
		id := s.next()
		require.Greater(t, id, prev, "identities strictly increase within a millisecond")
		prev = id
	}
	assert.Equal(t, int64(1001), prev>>(uidNodeBits+uidSeqBits), "an exhausted sequence moves to the next millisecond")

	clock = clock.Add(-time.Second)
	assert.Greater(t, s.next(), prev, "a clock stepping back does not reorder identities")

	assert.NotEqual(t, newUID(), newUID())
}

func TestVertexProps(t *testing.T) {
	m, err := vertexProps(Node{Label: "Person", Props: graph.Props{KeyUID: int64(11), "name": "Ann", "gone": nil}})
	require.NoError(t, err)
	assert.Equal(t, graph.Props{graph.KeyID: int64(11), graph.KeyLabel: "Person", "name": "Ann"}, m)

	m, err = vertexProps(Node{Label: "Person", Props: graph.Props{KeyUID: "12"}})
	require.NoError(t, err)
	assert.Equal(t, int64(12), m.ID(), "identities stored as text decode to integers")

	_, err = vertexProps("nope")
	assert.Error(t, err)
}

func TestPathFromRow(t *testing.T) {
	a := Node{Label: "P", Props: graph.Props{KeyUID: int64(1)}}
	b := Node{Label: "P", Props: graph.Props{KeyUID: int64(2)}}
	c := Node{Label: "P", Props: graph.Props{KeyUID: int64(3)}}
	ab := Rel{Label: "knows", Props: graph.Props{KeyUID: int64(12), "w": int64(1)}}
	bc := Rel{Label: "knows", Props: graph.Props{KeyUID: int64(23)}}

	want := graph.Path{
		{Kind: graph.ElementVertex, ID: int64(1), Label: "P", Props: graph.Props{}},
		{Kind: graph.ElementEdge, ID: int64(12), Label: "knows", Props: graph.Props{"w": int64(1)}, OutV: int64(1), InV: int64(2)},
		{Kind: graph.ElementVertex, ID: int64(2), Label: "P", Props: graph.Props{}},
		{Kind: graph.ElementEdge, ID: int64(23), Label: "knows", Props: graph.Props{}, OutV: int64(2), InV: int64(3)},
		{Kind: graph.ElementVertex, ID: int64(3), Label: "P", Props: graph.Props{}},
	}

	t.Run("full node list", func(t *testing.T) {
		got, err := pathFromRow(Record{a, c, []any{a, b, c}, []any{ab, bc}})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("intermediate node list", func(t *testing.T) {
		got, err := pathFromRow(Record{a, c, []any{b}, []any{ab, bc}})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		_, err := pathFromRow(Record{a, c, []any{a, b, c, a}, []any{ab}})
		assert.Error(t, err)
	})
}
