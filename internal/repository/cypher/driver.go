// Package cypher implements the repository with declarative pattern-matching
// statements. Statements go through a Driver so the same repository runs on an
// embedded Kuzu database or a remote Neo4j server.
//
// Vertex and edge identity is a time-ordered int64 stored in the KeyUID
// property, so identities survive export and map onto integer or string
// identity fields.
package cypher

import (
	"context"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/txn"
)

// KeyUID is the stored identity property of every vertex and edge.
const KeyUID = "_uid"

// Node is a vertex value decoded from a result row. Props includes KeyUID.
type Node struct {
	Label string
	Props graph.Props
}

// Rel is an edge value decoded from a result row. Props includes KeyUID.
type Rel struct {
	Label string
	Props graph.Props
}

// Record is one result row in RETURN order. Drivers decode store values into
// Node, Rel, []any and normalized scalars (int64, float64, string, bool,
// time.Time).
type Record []any

// Runner executes statements within one unit of work.
type Runner interface {
	Run(ctx context.Context, stmt string, params map[string]any) ([]Record, error)
	// EnsureVertex makes label and the keys of props writable. Schema-less
	// stores do nothing.
	EnsureVertex(ctx context.Context, label string, props graph.Props) error
	// EnsureEdge makes label writable between the two vertex labels.
	EnsureEdge(ctx context.Context, label, fromLabel, toLabel string, props graph.Props) error
}

// Dialect covers the syntax and catalogue differences between stores.
type Dialect interface {
	// LabelOf returns the expression yielding the label of vertex variable v.
	LabelOf(v string) string
	// RelsOf returns the expression listing the edges of path variable p.
	RelsOf(p string) string
	// HasVertexLabel reports whether label can be matched; "" asks whether
	// any vertex can exist. Schema-less stores always report true.
	HasVertexLabel(label string) bool
	// HasEdgeLabel is HasVertexLabel for edges.
	HasEdgeLabel(label string) bool
	// HasProperty reports whether vertices of label can carry key.
	HasProperty(label, key string) bool
	// Accepts reports whether the column for key on label can hold a value
	// equal to value. Stores without typed columns always report true.
	Accepts(label, key string, value any) bool
}

// Driver is one connected Cypher store.
type Driver interface {
	txn.Source[Runner]
	Dialect
	Name() string
	Close(ctx context.Context) error
}
