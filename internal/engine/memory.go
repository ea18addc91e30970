package engine

import (
	"context"
	"fmt"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/memgraph"
	"github.com/dusk-indust/graphogm/internal/txn"
)

// Compile-time assertions.
var (
	_ Engine  = (*MemoryEngine)(nil)
	_ Backend = (*MemoryBackend)(nil)
)

// MemoryBackend serves engines over an in-process memgraph.Graph.
type MemoryBackend struct {
	g       *memgraph.Graph
	ambient *MemoryEngine
}

// NewMemoryBackend wraps g; a nil g starts an empty graph.
func NewMemoryBackend(g *memgraph.Graph) *MemoryBackend {
	if g == nil {
		g = memgraph.New()
	}
	return &MemoryBackend{g: g, ambient: &MemoryEngine{src: g.Traversal()}}
}

// Graph exposes the underlying graph.
func (b *MemoryBackend) Graph() *memgraph.Graph { return b.g }

// Name identifies the backend in logs.
func (b *MemoryBackend) Name() string { return "memory" }

// Ambient returns the auto-committing engine.
func (b *MemoryBackend) Ambient() Engine { return b.ambient }

// Begin opens an optimistic transaction.
func (b *MemoryBackend) Begin(ctx context.Context) (txn.Scope[Engine], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx := b.g.Tx()
	src, err := tx.Begin()
	if err != nil {
		return nil, graph.Exec("begin", err)
	}
	return &memoryScope{tx: tx, eng: &MemoryEngine{src: src}}, nil
}

// Close is a no-op; the graph lives as long as the process.
func (b *MemoryBackend) Close(context.Context) error { return nil }

type memoryScope struct {
	tx  *memgraph.Tx
	eng *MemoryEngine
}

func (s *memoryScope) Handle() Engine  { return s.eng }
func (s *memoryScope) Commit() error   { return graph.Exec("commit", s.tx.Commit()) }
func (s *memoryScope) Rollback() error { return graph.Exec("rollback", s.tx.Rollback()) }
func (s *memoryScope) Close() error    { return s.tx.Close() }
func (s *memoryScope) IsOpen() bool    { return s.tx.IsOpen() }

// MemoryEngine implements Engine with memgraph traversals.
type MemoryEngine struct {
	src *memgraph.Source
}

// ---------- create / update ----------

func (e *MemoryEngine) CreateVertex(ctx context.Context, label string, props graph.Props) (graph.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := e.src.AddV(label)
	for _, k := range props.Keys() {
		if graph.IsReserved(k) || props[k] == nil {
			continue
		}
		t = t.Property(k, props[k])
	}
	res, err := t.Next()
	if err != nil {
		return nil, graph.Exec("createVertex", err)
	}
	return res.(memgraph.Vertex).ID, nil
}

func (e *MemoryEngine) UpdateVertex(ctx context.Context, id graph.ID, props graph.Props) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !graph.ValidID(id) {
		return false, nil
	}
	t := e.src.V(id)
	for _, k := range props.Keys() {
		if graph.IsReserved(k) {
			continue
		}
		t = t.Property(k, props[k])
	}
	res, err := t.ToList()
	if err != nil {
		return false, graph.Exec("updateVertex", err)
	}
	return len(res) > 0, nil
}

// ---------- reads ----------

func (e *MemoryEngine) FindByID(ctx context.Context, id graph.ID) (graph.Props, bool, error) {
	if !graph.ValidID(id) {
		return nil, false, ctx.Err()
	}
	return e.first(ctx, "findById", e.src.V(id))
}

func (e *MemoryEngine) FindAll(ctx context.Context, label string) ([]graph.Props, error) {
	return e.maps(ctx, "findAll", e.src.V().HasLabel(label))
}

func (e *MemoryEngine) FindPage(ctx context.Context, label string, limit, offset int) ([]graph.Props, error) {
	offset = max(offset, 0)
	hi := -1
	if limit > 0 {
		hi = offset + limit
	}
	return e.maps(ctx, "findPage", e.src.V().HasLabel(label).Range(offset, hi))
}

func (e *MemoryEngine) FindByProperty(ctx context.Context, label, key string, value any) (graph.Props, bool, error) {
	return e.first(ctx, "findByProperty", e.src.V().HasLabel(label).Has(key, value).Limit(1))
}

func (e *MemoryEngine) FindByProperties(ctx context.Context, label string, filter graph.Props) ([]graph.Props, error) {
	return e.maps(ctx, "findByProperties", hasAll(e.src.V().HasLabel(label), filter))
}

func (e *MemoryEngine) Exists(ctx context.Context, id graph.ID) (bool, error) {
	if !graph.ValidID(id) {
		return false, ctx.Err()
	}
	return e.hasNext(ctx, "exists", e.src.V(id))
}

func (e *MemoryEngine) ExistsByProperty(ctx context.Context, label, key string, value any) (bool, error) {
	return e.hasNext(ctx, "existsByProperty", e.src.V().HasLabel(label).Has(key, value))
}

func (e *MemoryEngine) Count(ctx context.Context, label string) (int64, error) {
	return e.count(ctx, "count", e.src.V().HasLabel(label))
}

func (e *MemoryEngine) CountAll(ctx context.Context) (int64, error) {
	return e.count(ctx, "countAll", e.src.V())
}

// ---------- edges ----------

func (e *MemoryEngine) LinkOrCreate(ctx context.Context, from, to graph.VertexMatch, edgeLabel string, edgeProps graph.Props) (graph.ID, error) {
	fromID, err := e.getOrCreate(ctx, from)
	if err != nil {
		return nil, err
	}
	toID, err := e.getOrCreate(ctx, to)
	if err != nil {
		return nil, err
	}
	t := withProps(e.src.V(fromID).AddE(edgeLabel).To(memgraph.Anon().V(toID)), edgeProps)
	res, err := t.Next()
	if err != nil {
		return nil, graph.Exec("linkOrCreate", err)
	}
	return res.(memgraph.Edge).ID, nil
}

// getOrCreate returns the first vertex matching m, creating it when absent.
func (e *MemoryEngine) getOrCreate(ctx context.Context, m graph.VertexMatch) (graph.ID, error) {
	found, ok, err := e.first(ctx, "getOrCreateVertex", hasAll(e.src.V().HasLabel(m.Label), m.Props).Limit(1))
	if err != nil {
		return nil, err
	}
	if ok {
		return found.ID(), nil
	}
	return e.CreateVertex(ctx, m.Label, m.Props)
}

func (e *MemoryEngine) AddEdge(ctx context.Context, from, to graph.ID, edgeLabel string, dir graph.Direction, props graph.Props) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, b := from, to
	if dir == graph.DirectionIn {
		a, b = to, from
	}
	t := withProps(e.src.V(a).AddE(edgeLabel).To(memgraph.Anon().V(b)), props)
	if dir == graph.DirectionBoth {
		t = withProps(t.V(b).AddE(edgeLabel).To(memgraph.Anon().V(a)), props)
	}
	res, err := t.ToList()
	if err != nil {
		return graph.Exec("addEdge", err)
	}
	if len(res) == 0 {
		return graph.Exec("addEdge", fmt.Errorf("vertex %v not found", a))
	}
	return nil
}

func (e *MemoryEngine) AddEdges(ctx context.Context, from graph.ID, to []graph.ID, edgeLabel string, dir graph.Direction) error {
	for _, target := range to {
		if err := e.AddEdge(ctx, from, target, edgeLabel, dir, nil); err != nil {
			return err
		}
	}
	return nil
}

// ---------- traversal ----------

func (e *MemoryEngine) Traverse(ctx context.Context, anchor graph.VertexMatch, edgeLabel string, dir graph.Direction) ([]graph.Props, error) {
	t := hasAll(e.src.V().HasLabel(anchor.Label), anchor.Props)
	return e.maps(ctx, "traverse", hop(t, dir, edgeLabel).Dedup())
}

func (e *MemoryEngine) TraverseOutgoing(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error) {
	return e.traverseFrom(ctx, "traverseOutgoing", id, edgeLabel, graph.DirectionOut)
}

func (e *MemoryEngine) TraverseIncoming(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error) {
	return e.traverseFrom(ctx, "traverseIncoming", id, edgeLabel, graph.DirectionIn)
}

func (e *MemoryEngine) TraverseBoth(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error) {
	return e.traverseFrom(ctx, "traverseBoth", id, edgeLabel, graph.DirectionBoth)
}

func (e *MemoryEngine) traverseFrom(ctx context.Context, op string, id graph.ID, edgeLabel string, dir graph.Direction) ([]graph.Props, error) {
	if !graph.ValidID(id) {
		return []graph.Props{}, ctx.Err()
	}
	return e.maps(ctx, op, hop(e.src.V(id), dir, edgeLabel).Dedup())
}

func (e *MemoryEngine) TraverseWithDepth(ctx context.Context, id graph.ID, edgeLabel string, depth int) ([]graph.Props, error) {
	if !graph.ValidID(id) || depth <= 0 {
		return []graph.Props{}, ctx.Err()
	}
	t := e.src.V(id).Repeat(memgraph.Anon().Out(labelsOf(edgeLabel)...)).Emit().Times(depth).Dedup()
	return e.maps(ctx, "traverseWithDepth", t)
}

func (e *MemoryEngine) FindPath(ctx context.Context, from, to graph.ID, edgeLabel string, maxDepth int) ([]graph.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !graph.ValidID(from) || !graph.ValidID(to) || maxDepth <= 0 {
		return []graph.Path{}, nil
	}
	res, err := e.src.V(from).
		Repeat(memgraph.Anon().OutE(labelsOf(edgeLabel)...).InV().SimplePath()).
		Emit(memgraph.Anon().HasID(to)).
		Times(maxDepth).
		HasID(to).
		Path().
		ToList()
	if err != nil {
		return nil, graph.Exec("findPath", err)
	}
	out := make([]graph.Path, 0, len(res))
	for _, r := range res {
		out = append(out, convertPath(r.(memgraph.Path)))
	}
	return out, nil
}

func (e *MemoryEngine) CountEdges(ctx context.Context, id graph.ID, edgeLabel string) (int64, error) {
	if !graph.ValidID(id) {
		return 0, ctx.Err()
	}
	return e.count(ctx, "countEdges", e.src.V(id).BothE(labelsOf(edgeLabel)...).Dedup())
}

// ---------- deletes ----------

func (e *MemoryEngine) Delete(ctx context.Context, id graph.ID) error {
	if !graph.ValidID(id) {
		return ctx.Err()
	}
	return e.iterate(ctx, "delete", e.src.V(id).Drop())
}

func (e *MemoryEngine) DeleteAll(ctx context.Context, label string) error {
	return e.iterate(ctx, "deleteAll", e.src.V().HasLabel(label).Drop())
}

func (e *MemoryEngine) DeleteByProperty(ctx context.Context, label, key string, value any) error {
	return e.iterate(ctx, "deleteByProperty", e.src.V().HasLabel(label).Has(key, value).Drop())
}

func (e *MemoryEngine) DeleteEdge(ctx context.Context, from, to graph.ID, edgeLabel string) error {
	if !graph.ValidID(from) || !graph.ValidID(to) {
		return ctx.Err()
	}
	t := e.src.V(from).OutE(labelsOf(edgeLabel)...).As("e").InV().HasID(to).Select("e").Drop()
	return e.iterate(ctx, "deleteEdge", t)
}

func (e *MemoryEngine) DeleteEdgesIncident(ctx context.Context, id graph.ID, edgeLabel string) error {
	if !graph.ValidID(id) {
		return ctx.Err()
	}
	return e.iterate(ctx, "deleteEdgesIncident", e.src.V(id).BothE(labelsOf(edgeLabel)...).Drop())
}

func (e *MemoryEngine) DeleteEdgesByLabel(ctx context.Context, edgeLabel string) error {
	return e.iterate(ctx, "deleteEdgesByLabel", e.src.E().HasLabel(edgeLabel).Drop())
}

func (e *MemoryEngine) EdgesByLabel(ctx context.Context, edgeLabel string) ([]graph.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := e.src.E()
	if edgeLabel != "" {
		t = t.HasLabel(edgeLabel)
	}
	res, err := t.ToList()
	if err != nil {
		return nil, graph.Exec("edgesByLabel", err)
	}
	out := make([]graph.Element, 0, len(res))
	for _, r := range res {
		out = append(out, edgeElement(r.(memgraph.Edge)))
	}
	return out, nil
}

// ---------- helpers ----------

func (e *MemoryEngine) maps(ctx context.Context, op string, t *memgraph.Traversal) ([]graph.Props, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := t.ElementMap().ToList()
	if err != nil {
		return nil, graph.Exec(op, err)
	}
	out := make([]graph.Props, 0, len(res))
	for _, r := range res {
		out = append(out, r.(graph.Props))
	}
	return out, nil
}

func (e *MemoryEngine) first(ctx context.Context, op string, t *memgraph.Traversal) (graph.Props, bool, error) {
	res, err := e.maps(ctx, op, t)
	if err != nil || len(res) == 0 {
		return nil, false, err
	}
	return res[0], true, nil
}

func (e *MemoryEngine) hasNext(ctx context.Context, op string, t *memgraph.Traversal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := t.HasNext()
	if err != nil {
		return false, graph.Exec(op, err)
	}
	return ok, nil
}

func (e *MemoryEngine) count(ctx context.Context, op string, t *memgraph.Traversal) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := t.Count().Next()
	if err != nil {
		return 0, graph.Exec(op, err)
	}
	return n.(int64), nil
}

func (e *MemoryEngine) iterate(ctx context.Context, op string, t *memgraph.Traversal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return graph.Exec(op, t.Iterate())
}

func hasAll(t *memgraph.Traversal, filter graph.Props) *memgraph.Traversal {
	for _, k := range filter.Keys() {
		t = t.Has(k, filter[k])
	}
	return t
}

func withProps(t *memgraph.Traversal, props graph.Props) *memgraph.Traversal {
	for _, k := range props.Keys() {
		if graph.IsReserved(k) || props[k] == nil {
			continue
		}
		t = t.Property(k, props[k])
	}
	return t
}

func hop(t *memgraph.Traversal, dir graph.Direction, edgeLabel string) *memgraph.Traversal {
	labels := labelsOf(edgeLabel)
	switch dir {
	case graph.DirectionIn:
		return t.In(labels...)
	case graph.DirectionBoth:
		return t.Both(labels...)
	default:
		return t.Out(labels...)
	}
}

func convertPath(p memgraph.Path) graph.Path {
	out := make(graph.Path, 0, len(p))
	for _, obj := range p {
		switch el := obj.(type) {
		case memgraph.Vertex:
			out = append(out, graph.Element{Kind: graph.ElementVertex, ID: el.ID, Label: el.Label, Props: el.Props})
		case memgraph.Edge:
			out = append(out, edgeElement(el))
		}
	}
	return out
}

func edgeElement(e memgraph.Edge) graph.Element {
	return graph.Element{Kind: graph.ElementEdge, ID: e.ID, Label: e.Label, Props: e.Props, OutV: e.Out, InV: e.In}
}
