// Package repository defines the single contract callers use to persist and
// query entities, whichever backend family is configured. Typed methods take
// a reflect.Type (see the generic helpers for the ergonomic form); raw methods
// take a label and work on property maps.
//
// Not-found is never an error: single lookups return ok == false and
// collection lookups return an empty slice.
package repository

import (
	"context"
	"reflect"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/schema"
)

// Page selects a window of results. Limit <= 0 means no limit.
type Page struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Repository is implemented by the traversal-step facade and the Cypher
// facade.
type Repository interface {
	// Name identifies the active backend.
	Name() string
	Registry() *schema.Registry
	Close(ctx context.Context) error

	// --- typed ---

	Save(ctx context.Context, entity any) (graph.ID, error)
	SaveAll(ctx context.Context, entities ...any) ([]graph.ID, error)
	SaveOrUpdate(ctx context.Context, entity any) (graph.ID, error)
	FindByID(ctx context.Context, t reflect.Type, id graph.ID) (any, bool, error)
	FindAll(ctx context.Context, t reflect.Type) ([]any, error)
	FindPage(ctx context.Context, t reflect.Type, page Page) ([]any, error)
	FindByProperty(ctx context.Context, t reflect.Type, key string, value any) (any, bool, error)
	FindByProperties(ctx context.Context, t reflect.Type, filter graph.Props) ([]any, error)
	ExistsByProperty(ctx context.Context, t reflect.Type, key string, value any) (bool, error)
	CountVertices(ctx context.Context, t reflect.Type) (int64, error)
	DeleteAll(ctx context.Context, t reflect.Type) error
	DeleteByProperty(ctx context.Context, t reflect.Type, key string, value any) error
	// Link get-or-creates both entities by their properties and adds an edge.
	Link(ctx context.Context, from, to any, edgeLabel string, edgeProps graph.Props) (graph.ID, error)
	// Traverse follows one hop from the vertices matching anchor.
	Traverse(ctx context.Context, anchor any, edgeLabel string, dir graph.Direction, result reflect.Type) ([]any, error)
	TraverseOutgoing(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error)
	TraverseIncoming(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error)
	TraverseBoth(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error)
	TraverseWithDepth(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string, depth int) ([]any, error)

	// --- identity and edges ---

	Exists(ctx context.Context, id graph.ID) (bool, error)
	Delete(ctx context.Context, id graph.ID) error
	AddEdge(ctx context.Context, from, to graph.ID, edgeLabel string, dir graph.Direction, props graph.Props) error
	AddEdges(ctx context.Context, from graph.ID, to []graph.ID, edgeLabel string, dir graph.Direction) error
	DeleteEdge(ctx context.Context, from, to graph.ID, edgeLabel string) error
	GetPath(ctx context.Context, from, to graph.ID, edgeLabel string, maxDepth int) ([]graph.Path, error)
	CountEdges(ctx context.Context, id graph.ID, edgeLabel string) (int64, error)
	Edges(ctx context.Context, edgeLabel string) ([]graph.Element, error)

	// --- raw ---

	CreateVertex(ctx context.Context, label string, props graph.Props) (graph.ID, error)
	UpdateVertex(ctx context.Context, id graph.ID, props graph.Props) (bool, error)
	FindVertex(ctx context.Context, id graph.ID) (graph.Props, bool, error)
	FindVertices(ctx context.Context, label string, page Page) ([]graph.Props, error)
	FindVertexByProperty(ctx context.Context, label, key string, value any) (graph.Props, bool, error)
	FindVerticesByProperties(ctx context.Context, label string, filter graph.Props) ([]graph.Props, error)
	ExistsVertexByProperty(ctx context.Context, label, key string, value any) (bool, error)
	CountLabel(ctx context.Context, label string) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	LinkOrCreate(ctx context.Context, from, to graph.VertexMatch, edgeLabel string, edgeProps graph.Props) (graph.ID, error)
	TraverseVertices(ctx context.Context, id graph.ID, edgeLabel string, dir graph.Direction) ([]graph.Props, error)
	TraverseVerticesWithDepth(ctx context.Context, id graph.ID, edgeLabel string, depth int) ([]graph.Props, error)
	DeleteLabel(ctx context.Context, label string) error
	DeleteVerticesByProperty(ctx context.Context, label, key string, value any) error
}

// Stats counts every vertex and the vertices of each registered label.
func Stats(ctx context.Context, r Repository) (graph.Stats, error) {
	total, err := r.CountAll(ctx)
	if err != nil {
		return graph.Stats{}, err
	}
	st := graph.Stats{VertexCount: total, ByLabel: make(map[string]int64)}
	for _, d := range r.Registry().Descriptors() {
		if _, done := st.ByLabel[d.Label]; done {
			continue
		}
		n, err := r.CountLabel(ctx, d.Label)
		if err != nil {
			return graph.Stats{}, err
		}
		st.ByLabel[d.Label] = n
	}
	return st, nil
}
