// Package engine executes primitive graph operations against one connected
// traversal-step backend. Results are raw property maps carrying the element
// identity under graph.KeyID and the label under graph.KeyLabel.
//
// Shared semantics of every Engine:
//   - an empty edge label matches edges of any label;
//   - traversals return each reachable vertex once;
//   - identity arguments that are not string or integer values yield empty
//     results rather than errors;
//   - backend failures are reported as *graph.ExecError.
package engine

import (
	"context"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/txn"
)

// Engine is the primitive operation set of the query execution engine.
type Engine interface {
	// CreateVertex adds a vertex and returns its backend identity. Nil values
	// are not stored.
	CreateVertex(ctx context.Context, label string, props graph.Props) (graph.ID, error)
	// UpdateVertex sets props on an existing vertex; a nil value removes the
	// key. It reports whether the vertex exists.
	UpdateVertex(ctx context.Context, id graph.ID, props graph.Props) (bool, error)

	FindByID(ctx context.Context, id graph.ID) (graph.Props, bool, error)
	FindAll(ctx context.Context, label string) ([]graph.Props, error)
	// FindPage returns vertices offset..offset+limit in insertion order. A
	// limit <= 0 returns everything after offset.
	FindPage(ctx context.Context, label string, limit, offset int) ([]graph.Props, error)
	FindByProperty(ctx context.Context, label, key string, value any) (graph.Props, bool, error)
	FindByProperties(ctx context.Context, label string, filter graph.Props) ([]graph.Props, error)

	Exists(ctx context.Context, id graph.ID) (bool, error)
	ExistsByProperty(ctx context.Context, label, key string, value any) (bool, error)
	Count(ctx context.Context, label string) (int64, error)
	CountAll(ctx context.Context) (int64, error)

	// LinkOrCreate resolves both endpoints with first-match get-or-create and
	// adds one new edge between them. It returns the edge identity.
	LinkOrCreate(ctx context.Context, from, to graph.VertexMatch, edgeLabel string, edgeProps graph.Props) (graph.ID, error)
	// AddEdge creates from->to for DirectionOut, to->from for DirectionIn and
	// both directed edges for DirectionBoth.
	AddEdge(ctx context.Context, from, to graph.ID, edgeLabel string, dir graph.Direction, props graph.Props) error
	AddEdges(ctx context.Context, from graph.ID, to []graph.ID, edgeLabel string, dir graph.Direction) error

	// Traverse follows one hop from every vertex matching anchor.
	Traverse(ctx context.Context, anchor graph.VertexMatch, edgeLabel string, dir graph.Direction) ([]graph.Props, error)
	TraverseOutgoing(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error)
	TraverseIncoming(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error)
	TraverseBoth(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error)
	// TraverseWithDepth returns every vertex reachable over 1..depth outgoing
	// hops.
	TraverseWithDepth(ctx context.Context, id graph.ID, edgeLabel string, depth int) ([]graph.Props, error)
	// FindPath enumerates the simple outgoing paths of 1..maxDepth hops from
	// one vertex to another.
	FindPath(ctx context.Context, from, to graph.ID, edgeLabel string, maxDepth int) ([]graph.Path, error)
	// CountEdges counts distinct edges incident to the vertex in either
	// direction.
	CountEdges(ctx context.Context, id graph.ID, edgeLabel string) (int64, error)

	Delete(ctx context.Context, id graph.ID) error
	DeleteAll(ctx context.Context, label string) error
	DeleteByProperty(ctx context.Context, label, key string, value any) error
	// DeleteEdge removes every from->to edge with the label.
	DeleteEdge(ctx context.Context, from, to graph.ID, edgeLabel string) error
	DeleteEdgesIncident(ctx context.Context, id graph.ID, edgeLabel string) error
	DeleteEdgesByLabel(ctx context.Context, edgeLabel string) error
	EdgesByLabel(ctx context.Context, edgeLabel string) ([]graph.Element, error)
}

// Backend is one connected graph: an ambient engine plus transaction scopes.
type Backend interface {
	txn.Source[Engine]
	Name() string
	Close(ctx context.Context) error
}

// labelsOf turns an optional edge label into a step argument list.
func labelsOf(label string) []string {
	if label == "" {
		return nil
	}
	return []string{label}
}
