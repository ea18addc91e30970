package cypher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/repository"
	"github.com/dusk-indust/graphogm/internal/schema"
	"github.com/dusk-indust/graphogm/internal/txn"
)

// Compile-time interface check.
var _ repository.Repository = (*Repository)(nil)

// Repository is the Cypher repository facade. Reads run on the driver's
// ambient runner; every write that needs more than one statement runs in its
// own transaction.
type Repository struct {
	drv    Driver
	tx     *txn.Manager[Runner]
	reg    *schema.Registry
	logger *zap.Logger
}

// New returns a repository over drv. A nil logger discards output.
func New(drv Driver, reg *schema.Registry, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", drv.Name()))
	return &Repository{
		drv:    drv,
		tx:     txn.NewManager(drv, logger),
		reg:    reg,
		logger: logger,
	}
}

func (r *Repository) Name() string               { return r.drv.Name() }
func (r *Repository) Registry() *schema.Registry { return r.reg }

// Close releases the driver.
func (r *Repository) Close(ctx context.Context) error { return r.drv.Close(ctx) }

func (r *Repository) read(ctx context.Context, fn func(Runner) error) error {
	return r.tx.Execute(ctx, fn)
}

func (r *Repository) write(ctx context.Context, fn func(Runner) error) error {
	return r.tx.ExecuteInNewTransaction(ctx, fn)
}

// exec runs one statement and wraps failures as execution errors.
func (r *Repository) exec(ctx context.Context, run Runner, op, stmt string, p params) ([]Record, error) {
	r.logger.Debug("cypher", zap.String("op", op), zap.String("stmt", stmt))
	rows, err := run.Run(ctx, stmt, p)
	if err != nil {
		return nil, graph.Exec(op, err)
	}
	return rows, nil
}

// ---------- primitives ----------

func (r *Repository) createVertex(ctx context.Context, run Runner, label string, props graph.Props) (int64, error) {
	q, err := quote(label)
	if err != nil {
		return 0, err
	}
	clean := storable(props)
	if err := run.EnsureVertex(ctx, label, clean); err != nil {
		return 0, graph.Exec("createVertex", err)
	}
	p := params{}
	uid := newUID()
	lit, err := mapLiteral(p, uid, clean)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("CREATE (n:%s %s)", q, lit)
	if _, err := r.exec(ctx, run, "createVertex", stmt, p); err != nil {
		return 0, err
	}
	return uid, nil
}

func (r *Repository) updateVertex(ctx context.Context, run Runner, id graph.ID, props graph.Props) (bool, error) {
	uid, ok := uidOf(id)
	if !ok {
		return false, nil
	}
	label, ok, err := r.labelOf(ctx, run, uid)
	if err != nil || !ok {
		return false, err
	}
	if err := run.EnsureVertex(ctx, label, storable(props)); err != nil {
		return false, graph.Exec("updateVertex", err)
	}
	pattern, err := nodePattern("n", label)
	if err != nil {
		return false, err
	}
	p := params{"id": uid}
	var sets []string
	for _, k := range props.Keys() {
		if graph.IsReserved(k) || k == KeyUID {
			continue
		}
		q, err := quote(k)
		if err != nil {
			return false, err
		}
		if props[k] == nil {
			if r.drv.HasProperty(label, k) {
				sets = append(sets, "n."+q+" = NULL")
			}
			continue
		}
		sets = append(sets, "n."+q+" = "+p.add(props[k]))
	}
	if len(sets) == 0 {
		return true, nil
	}
	stmt := fmt.Sprintf("MATCH %s WHERE n.`%s` = $id SET %s", pattern, KeyUID, strings.Join(sets, ", "))
	if _, err := r.exec(ctx, run, "updateVertex", stmt, p); err != nil {
		return false, err
	}
	return true, nil
}

// labelOf returns the label of the vertex with the identity.
func (r *Repository) labelOf(ctx context.Context, run Runner, id graph.ID) (string, bool, error) {
	uid, ok := uidOf(id)
	if !ok || !r.drv.HasVertexLabel("") {
		return "", false, nil
	}
	stmt := fmt.Sprintf("MATCH (n) WHERE n.`%s` = $id RETURN %s", KeyUID, r.drv.LabelOf("n"))
	rows, err := r.exec(ctx, run, "labelOf", stmt, params{"id": uid})
	if err != nil || len(rows) == 0 {
		return "", false, err
	}
	return graph.ToString(rows[0][0]), true, nil
}

func (r *Repository) findVertex(ctx context.Context, run Runner, id graph.ID) (graph.Props, bool, error) {
	uid, ok := uidOf(id)
	if !ok || !r.drv.HasVertexLabel("") {
		return nil, false, nil
	}
	stmt := fmt.Sprintf("MATCH (n) WHERE n.`%s` = $id RETURN n", KeyUID)
	rows, err := r.exec(ctx, run, "findById", stmt, params{"id": uid})
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	m, err := vertexProps(rows[0][0])
	if err != nil {
		return nil, false, graph.Exec("findById", err)
	}
	return m, true, nil
}

// matchable reports whether a label/filter combination can match anything in
// the store's current catalogue.
func (r *Repository) matchable(label string, filter graph.Props) bool {
	if !r.drv.HasVertexLabel(label) {
		return false
	}
	for k, v := range filter {
		if !r.drv.HasProperty(label, k) || !r.drv.Accepts(label, k, v) {
			return false
		}
	}
	return true
}

// findVertices matches vertices of label equal to filter, ordered by
// insertion. Every vertex carries a label, so "" matches nothing.
func (r *Repository) findVertices(ctx context.Context, run Runner, op, label string, filter graph.Props, limit, offset int) ([]graph.Props, error) {
	if label == "" || !r.matchable(label, filter) {
		return []graph.Props{}, nil
	}
	pattern, err := nodePattern("n", label)
	if err != nil {
		return nil, err
	}
	p := params{}
	conds, err := conditions(p, "n", filter)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("MATCH %s%s RETURN n ORDER BY n.`%s`%s", pattern, whereClause(conds), KeyUID, pageClause(limit, offset))
	rows, err := r.exec(ctx, run, op, stmt, p)
	if err != nil {
		return nil, err
	}
	return r.vertexRows(op, rows)
}

func (r *Repository) countVertices(ctx context.Context, run Runner, label string, filter graph.Props) (int64, error) {
	if !r.matchable(label, filter) {
		return 0, nil
	}
	pattern, err := nodePattern("n", label)
	if err != nil {
		return 0, err
	}
	p := params{}
	conds, err := conditions(p, "n", filter)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("MATCH %s%s RETURN count(n)", pattern, whereClause(conds))
	rows, err := r.exec(ctx, run, "count", stmt, p)
	if err != nil {
		return 0, err
	}
	return firstInt(rows), nil
}

func (r *Repository) deleteVertices(ctx context.Context, run Runner, op, label string, filter graph.Props) error {
	if label == "" || !r.matchable(label, filter) {
		return nil
	}
	pattern, err := nodePattern("n", label)
	if err != nil {
		return err
	}
	p := params{}
	conds, err := conditions(p, "n", filter)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx, run, op, fmt.Sprintf("MATCH %s%s DETACH DELETE n", pattern, whereClause(conds)), p)
	return err
}

func (r *Repository) getOrCreate(ctx context.Context, run Runner, m graph.VertexMatch) (int64, error) {
	found, err := r.findVertices(ctx, run, "linkOrCreate", m.Label, storable(m.Props), 1, 0)
	if err != nil {
		return 0, err
	}
	if len(found) > 0 {
		if uid, ok := uidOf(found[0].ID()); ok {
			return uid, nil
		}
		return 0, graph.Exec("linkOrCreate", fmt.Errorf("vertex identity %v is not an integer", found[0].ID()))
	}
	return r.createVertex(ctx, run, m.Label, m.Props)
}

// addEdge creates the directed edges for dir and returns their identities.
func (r *Repository) addEdge(ctx context.Context, run Runner, from, to graph.ID, label string, dir graph.Direction, props graph.Props) ([]int64, error) {
	if label == "" {
		return nil, graph.Exec("addEdge", errors.New("edge label required"))
	}
	fromLabel, ok, err := r.labelOf(ctx, run, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, graph.Exec("addEdge", fmt.Errorf("vertex %v not found", from))
	}
	toLabel, ok, err := r.labelOf(ctx, run, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, graph.Exec("addEdge", fmt.Errorf("vertex %v not found", to))
	}

	type end struct {
		id    int64
		label string
	}
	fromUID, _ := uidOf(from)
	toUID, _ := uidOf(to)
	a, b := end{fromUID, fromLabel}, end{toUID, toLabel}
	pairs := [][2]end{{a, b}}
	switch dir {
	case graph.DirectionIn:
		pairs = [][2]end{{b, a}}
	case graph.DirectionBoth:
		pairs = [][2]end{{a, b}, {b, a}}
	}

	clean := storable(props)
	rel, err := quote(label)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(pairs))
	for _, pair := range pairs {
		src, dst := pair[0], pair[1]
		if err := run.EnsureEdge(ctx, label, src.label, dst.label, clean); err != nil {
			return nil, graph.Exec("addEdge", err)
		}
		srcPattern, err := nodePattern("a", src.label)
		if err != nil {
			return nil, err
		}
		dstPattern, err := nodePattern("b", dst.label)
		if err != nil {
			return nil, err
		}
		p := params{"from": src.id, "to": dst.id}
		uid := newUID()
		lit, err := mapLiteral(p, uid, clean)
		if err != nil {
			return nil, err
		}
		stmt := fmt.Sprintf("MATCH %s, %s WHERE a.`%s` = $from AND b.`%s` = $to CREATE (a)-[:%s %s]->(b)",
			srcPattern, dstPattern, KeyUID, KeyUID, rel, lit)
		if _, err := r.exec(ctx, run, "addEdge", stmt, p); err != nil {
			return nil, err
		}
		ids = append(ids, uid)
	}
	return ids, nil
}

func (r *Repository) linkOrCreate(ctx context.Context, run Runner, from, to graph.VertexMatch, label string, edgeProps graph.Props) (graph.ID, error) {
	fromID, err := r.getOrCreate(ctx, run, from)
	if err != nil {
		return nil, err
	}
	toID, err := r.getOrCreate(ctx, run, to)
	if err != nil {
		return nil, err
	}
	ids, err := r.addEdge(ctx, run, fromID, toID, label, graph.DirectionOut, edgeProps)
	if err != nil {
		return nil, err
	}
	return ids[0], nil
}

// neighbours follows one hop, or 1..depth outgoing hops when depth > 0, from
// the start pattern bound to variable a.
func (r *Repository) neighbours(ctx context.Context, run Runner, op, start string, conds []string, p params, label string, dir graph.Direction, depth int) ([]graph.Props, error) {
	if !r.drv.HasEdgeLabel(label) {
		return []graph.Props{}, nil
	}
	hops := ""
	if depth > 0 {
		hops = fmt.Sprintf("*1..%d", depth)
	}
	rel, err := relPattern("", label, hops, dir)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("MATCH %s%s(b)%s RETURN DISTINCT b", start, rel, whereClause(conds))
	rows, err := r.exec(ctx, run, op, stmt, p)
	if err != nil {
		return nil, err
	}
	return r.vertexRows(op, rows)
}

func (r *Repository) traverseFrom(ctx context.Context, run Runner, op string, id graph.ID, label string, dir graph.Direction, depth int) ([]graph.Props, error) {
	uid, ok := uidOf(id)
	if !ok || !r.drv.HasVertexLabel("") {
		return []graph.Props{}, nil
	}
	conds := []string{fmt.Sprintf("a.`%s` = $id", KeyUID)}
	return r.neighbours(ctx, run, op, "(a)", conds, params{"id": uid}, label, dir, depth)
}

func (r *Repository) traverseMatch(ctx context.Context, run Runner, anchor graph.VertexMatch, label string, dir graph.Direction) ([]graph.Props, error) {
	filter := storable(anchor.Props)
	if anchor.Label == "" || !r.matchable(anchor.Label, filter) {
		return []graph.Props{}, nil
	}
	start, err := nodePattern("a", anchor.Label)
	if err != nil {
		return nil, err
	}
	p := params{}
	conds, err := conditions(p, "a", filter)
	if err != nil {
		return nil, err
	}
	return r.neighbours(ctx, run, "traverse", start, conds, p, label, dir, 0)
}

func (r *Repository) vertexRows(op string, rows []Record) ([]graph.Props, error) {
	out := make([]graph.Props, 0, len(rows))
	for _, row := range rows {
		m, err := vertexProps(row[0])
		if err != nil {
			return nil, graph.Exec(op, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// ---------- entity mapping ----------

func (r *Repository) save(ctx context.Context, run Runner, entity any, visited map[any]int64, staged *schema.Identities) (int64, error) {
	d, err := r.reg.Describe(entity)
	if err != nil {
		return 0, err
	}
	props, err := r.reg.ExtractProperties(entity)
	if err != nil {
		return 0, err
	}
	id, err := r.createVertex(ctx, run, d.Label, props)
	if err != nil {
		return 0, fmt.Errorf("cypher: save %s: %w", d.Label, err)
	}
	if isPointer(entity) {
		visited[entity] = id
		if err := staged.Add(entity, id); err != nil {
			return 0, fmt.Errorf("cypher: save %s: %w", d.Label, err)
		}
	}

	rels, err := r.reg.ExtractRelations(entity)
	if err != nil {
		return 0, err
	}
	for _, rel := range rels {
		var target int64
		seen := false
		if isPointer(rel.Target) {
			target, seen = visited[rel.Target]
		}
		if !seen {
			if target, err = r.save(ctx, run, rel.Target, visited, staged); err != nil {
				return 0, err
			}
		}
		if _, err := r.addEdge(ctx, run, id, target, rel.Label, rel.Direction, nil); err != nil {
			return 0, fmt.Errorf("cypher: link %s -%s->: %w", d.Label, rel.Label, err)
		}
	}
	return id, nil
}

func (r *Repository) entityMatch(entity any) (graph.VertexMatch, error) {
	d, err := r.reg.Describe(entity)
	if err != nil {
		return graph.VertexMatch{}, err
	}
	props, err := r.reg.ExtractProperties(entity)
	if err != nil {
		return graph.VertexMatch{}, err
	}
	return graph.VertexMatch{Label: d.Label, Props: props}, nil
}

func (r *Repository) populate(d *schema.Descriptor, maps []graph.Props, err error) ([]any, error) {
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(maps))
	for _, m := range maps {
		v, err := r.reg.Populate(d, m)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// typed runs fn with t's descriptor on the ambient runner and maps the
// resulting vertices into entities.
func (r *Repository) typed(ctx context.Context, t reflect.Type, fn func(Runner, *schema.Descriptor) ([]graph.Props, error)) ([]any, error) {
	d, err := r.reg.Get(t)
	if err != nil {
		return nil, err
	}
	return txn.Do(ctx, r.tx, func(run Runner) ([]any, error) {
		maps, err := fn(run, d)
		return r.populate(d, maps, err)
	})
}

// ---------- typed writes ----------

// Save creates the entity graph in one transaction. Identities are written
// back into the entities only after the commit.
func (r *Repository) Save(ctx context.Context, entity any) (graph.ID, error) {
	staged := r.reg.NewIdentities()
	id, err := txn.DoInNewTransaction(ctx, r.tx, func(run Runner) (graph.ID, error) {
		return r.save(ctx, run, entity, make(map[any]int64), staged)
	})
	if err != nil {
		return nil, err
	}
	return id, staged.Apply()
}

func (r *Repository) SaveAll(ctx context.Context, entities ...any) ([]graph.ID, error) {
	staged := r.reg.NewIdentities()
	ids, err := txn.DoInNewTransaction(ctx, r.tx, func(run Runner) ([]graph.ID, error) {
		ids := make([]graph.ID, 0, len(entities))
		for _, entity := range entities {
			id, err := r.save(ctx, run, entity, make(map[any]int64), staged)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return ids, staged.Apply()
}

func (r *Repository) SaveOrUpdate(ctx context.Context, entity any) (graph.ID, error) {
	d, err := r.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	staged := r.reg.NewIdentities()
	id, err := txn.DoInNewTransaction(ctx, r.tx, func(run Runner) (graph.ID, error) {
		id, ok := r.reg.IdentityOf(entity)
		if ok {
			found, exists, err := r.findVertex(ctx, run, id)
			if err != nil {
				return nil, err
			}
			if exists && found.Label() == d.Label {
				props, err := r.reg.ExtractProperties(entity)
				if err != nil {
					return nil, err
				}
				if _, err := r.updateVertex(ctx, run, id, props); err != nil {
					return nil, fmt.Errorf("cypher: update %s: %w", d.Label, err)
				}
				return found.ID(), nil
			}
		}
		return r.save(ctx, run, entity, make(map[any]int64), staged)
	})
	if err != nil {
		return nil, err
	}
	return id, staged.Apply()
}

func (r *Repository) Link(ctx context.Context, from, to any, edgeLabel string, edgeProps graph.Props) (graph.ID, error) {
	fromMatch, err := r.entityMatch(from)
	if err != nil {
		return nil, err
	}
	toMatch, err := r.entityMatch(to)
	if err != nil {
		return nil, err
	}
	return r.LinkOrCreate(ctx, fromMatch, toMatch, edgeLabel, edgeProps)
}

func (r *Repository) DeleteAll(ctx context.Context, t reflect.Type) error {
	d, err := r.reg.Get(t)
	if err != nil {
		return err
	}
	return r.DeleteLabel(ctx, d.Label)
}

func (r *Repository) DeleteByProperty(ctx context.Context, t reflect.Type, key string, value any) error {
	d, err := r.reg.Get(t)
	if err != nil {
		return err
	}
	return r.DeleteVerticesByProperty(ctx, d.Label, key, value)
}

// ---------- typed reads ----------

func (r *Repository) FindByID(ctx context.Context, t reflect.Type, id graph.ID) (any, bool, error) {
	d, err := r.reg.Get(t)
	if err != nil {
		return nil, false, err
	}
	m, ok, err := r.FindVertex(ctx, id)
	if err != nil || !ok || m.Label() != d.Label {
		return nil, false, err
	}
	v, err := r.reg.Populate(d, m)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Repository) FindAll(ctx context.Context, t reflect.Type) ([]any, error) {
	return r.FindPage(ctx, t, repository.Page{})
}

func (r *Repository) FindPage(ctx context.Context, t reflect.Type, page repository.Page) ([]any, error) {
	return r.typed(ctx, t, func(run Runner, d *schema.Descriptor) ([]graph.Props, error) {
		return r.findVertices(ctx, run, "findPage", d.Label, nil, page.Limit, page.Offset)
	})
}

func (r *Repository) FindByProperty(ctx context.Context, t reflect.Type, key string, value any) (any, bool, error) {
	found, err := r.typed(ctx, t, func(run Runner, d *schema.Descriptor) ([]graph.Props, error) {
		return r.findVertices(ctx, run, "findByProperty", d.Label, graph.Props{key: value}, 1, 0)
	})
	if err != nil || len(found) == 0 {
		return nil, false, err
	}
	return found[0], true, nil
}

func (r *Repository) FindByProperties(ctx context.Context, t reflect.Type, filter graph.Props) ([]any, error) {
	return r.typed(ctx, t, func(run Runner, d *schema.Descriptor) ([]graph.Props, error) {
		return r.findVertices(ctx, run, "findByProperties", d.Label, filter, 0, 0)
	})
}

func (r *Repository) ExistsByProperty(ctx context.Context, t reflect.Type, key string, value any) (bool, error) {
	d, err := r.reg.Get(t)
	if err != nil {
		return false, err
	}
	return r.ExistsVertexByProperty(ctx, d.Label, key, value)
}

func (r *Repository) CountVertices(ctx context.Context, t reflect.Type) (int64, error) {
	d, err := r.reg.Get(t)
	if err != nil {
		return 0, err
	}
	return r.CountLabel(ctx, d.Label)
}

func (r *Repository) Traverse(ctx context.Context, anchor any, edgeLabel string, dir graph.Direction, result reflect.Type) ([]any, error) {
	m, err := r.entityMatch(anchor)
	if err != nil {
		return nil, err
	}
	return r.typed(ctx, result, func(run Runner, _ *schema.Descriptor) ([]graph.Props, error) {
		return r.traverseMatch(ctx, run, m, edgeLabel, dir)
	})
}

func (r *Repository) TraverseOutgoing(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	return r.typed(ctx, t, func(run Runner, _ *schema.Descriptor) ([]graph.Props, error) {
		return r.traverseFrom(ctx, run, "traverseOutgoing", id, edgeLabel, graph.DirectionOut, 0)
	})
}

func (r *Repository) TraverseIncoming(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	return r.typed(ctx, t, func(run Runner, _ *schema.Descriptor) ([]graph.Props, error) {
		return r.traverseFrom(ctx, run, "traverseIncoming", id, edgeLabel, graph.DirectionIn, 0)
	})
}

func (r *Repository) TraverseBoth(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	return r.typed(ctx, t, func(run Runner, _ *schema.Descriptor) ([]graph.Props, error) {
		return r.traverseFrom(ctx, run, "traverseBoth", id, edgeLabel, graph.DirectionBoth, 0)
	})
}

func (r *Repository) TraverseWithDepth(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string, depth int) ([]any, error) {
	if depth <= 0 {
		if _, err := r.reg.Get(t); err != nil {
			return nil, err
		}
		return []any{}, nil
	}
	return r.typed(ctx, t, func(run Runner, _ *schema.Descriptor) ([]graph.Props, error) {
		return r.traverseFrom(ctx, run, "traverseWithDepth", id, edgeLabel, graph.DirectionOut, depth)
	})
}

// ---------- identity and edges ----------

func (r *Repository) Exists(ctx context.Context, id graph.ID) (bool, error) {
	_, ok, err := r.FindVertex(ctx, id)
	return ok, err
}

func (r *Repository) Delete(ctx context.Context, id graph.ID) error {
	uid, ok := uidOf(id)
	if !ok || !r.drv.HasVertexLabel("") {
		return ctx.Err()
	}
	return r.read(ctx, func(run Runner) error {
		_, err := r.exec(ctx, run, "delete", fmt.Sprintf("MATCH (n) WHERE n.`%s` = $id DETACH DELETE n", KeyUID), params{"id": uid})
		return err
	})
}

func (r *Repository) AddEdge(ctx context.Context, from, to graph.ID, edgeLabel string, dir graph.Direction, props graph.Props) error {
	return r.write(ctx, func(run Runner) error {
		_, err := r.addEdge(ctx, run, from, to, edgeLabel, dir, props)
		return err
	})
}

func (r *Repository) AddEdges(ctx context.Context, from graph.ID, to []graph.ID, edgeLabel string, dir graph.Direction) error {
	return r.write(ctx, func(run Runner) error {
		for _, target := range to {
			if _, err := r.addEdge(ctx, run, from, target, edgeLabel, dir, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) DeleteEdge(ctx context.Context, from, to graph.ID, edgeLabel string) error {
	a, okA := uidOf(from)
	b, okB := uidOf(to)
	if !okA || !okB || !r.drv.HasEdgeLabel(edgeLabel) {
		return ctx.Err()
	}
	rel, err := relPattern("r", edgeLabel, "", graph.DirectionOut)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("MATCH (a)%s(b) WHERE a.`%s` = $from AND b.`%s` = $to DELETE r", rel, KeyUID, KeyUID)
	return r.read(ctx, func(run Runner) error {
		_, err := r.exec(ctx, run, "deleteEdge", stmt, params{"from": a, "to": b})
		return err
	})
}

// GetPath enumerates the simple outgoing paths of 1..maxDepth hops.
func (r *Repository) GetPath(ctx context.Context, from, to graph.ID, edgeLabel string, maxDepth int) ([]graph.Path, error) {
	a, okA := uidOf(from)
	b, okB := uidOf(to)
	if !okA || !okB || maxDepth <= 0 || !r.drv.HasEdgeLabel(edgeLabel) {
		return []graph.Path{}, ctx.Err()
	}
	rel, err := relPattern("", edgeLabel, fmt.Sprintf("*1..%d", maxDepth), graph.DirectionOut)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("MATCH p = (a)%s(b) WHERE a.`%s` = $from AND b.`%s` = $to RETURN a, b, nodes(p), %s",
		rel, KeyUID, KeyUID, r.drv.RelsOf("p"))
	return txn.Do(ctx, r.tx, func(run Runner) ([]graph.Path, error) {
		rows, err := r.exec(ctx, run, "findPath", stmt, params{"from": a, "to": b})
		if err != nil {
			return nil, err
		}
		out := make([]graph.Path, 0, len(rows))
		for _, row := range rows {
			path, err := pathFromRow(row)
			if err != nil {
				return nil, graph.Exec("findPath", err)
			}
			if path.Simple() {
				out = append(out, path)
			}
		}
		return out, nil
	})
}

func (r *Repository) CountEdges(ctx context.Context, id graph.ID, edgeLabel string) (int64, error) {
	uid, ok := uidOf(id)
	if !ok || !r.drv.HasEdgeLabel(edgeLabel) {
		return 0, ctx.Err()
	}
	rel, err := relPattern("r", edgeLabel, "", graph.DirectionBoth)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("MATCH (a)%s() WHERE a.`%s` = $id RETURN count(DISTINCT r.`%s`)", rel, KeyUID, KeyUID)
	return txn.Do(ctx, r.tx, func(run Runner) (int64, error) {
		rows, err := r.exec(ctx, run, "countEdges", stmt, params{"id": uid})
		return firstInt(rows), err
	})
}

func (r *Repository) Edges(ctx context.Context, edgeLabel string) ([]graph.Element, error) {
	if !r.drv.HasEdgeLabel(edgeLabel) {
		return []graph.Element{}, ctx.Err()
	}
	rel, err := relPattern("r", edgeLabel, "", graph.DirectionOut)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("MATCH (a)%s(b) RETURN r, a.`%s`, b.`%s` ORDER BY r.`%s`", rel, KeyUID, KeyUID, KeyUID)
	return txn.Do(ctx, r.tx, func(run Runner) ([]graph.Element, error) {
		rows, err := r.exec(ctx, run, "edgesByLabel", stmt, nil)
		if err != nil {
			return nil, err
		}
		out := make([]graph.Element, 0, len(rows))
		for _, row := range rows {
			el, err := edgeElement(row[0], storedUID(row[1]), storedUID(row[2]))
			if err != nil {
				return nil, graph.Exec("edgesByLabel", err)
			}
			out = append(out, el)
		}
		return out, nil
	})
}

// ---------- raw ----------

func (r *Repository) CreateVertex(ctx context.Context, label string, props graph.Props) (graph.ID, error) {
	return txn.DoInNewTransaction(ctx, r.tx, func(run Runner) (graph.ID, error) {
		return r.createVertex(ctx, run, label, props)
	})
}

func (r *Repository) UpdateVertex(ctx context.Context, id graph.ID, props graph.Props) (bool, error) {
	return txn.DoInNewTransaction(ctx, r.tx, func(run Runner) (bool, error) {
		return r.updateVertex(ctx, run, id, props)
	})
}

func (r *Repository) FindVertex(ctx context.Context, id graph.ID) (graph.Props, bool, error) {
	var (
		m  graph.Props
		ok bool
	)
	err := r.read(ctx, func(run Runner) (err error) {
		m, ok, err = r.findVertex(ctx, run, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return m, ok, nil
}

func (r *Repository) FindVertices(ctx context.Context, label string, page repository.Page) ([]graph.Props, error) {
	return txn.Do(ctx, r.tx, func(run Runner) ([]graph.Props, error) {
		return r.findVertices(ctx, run, "findPage", label, nil, page.Limit, page.Offset)
	})
}

func (r *Repository) FindVertexByProperty(ctx context.Context, label, key string, value any) (graph.Props, bool, error) {
	found, err := txn.Do(ctx, r.tx, func(run Runner) ([]graph.Props, error) {
		return r.findVertices(ctx, run, "findByProperty", label, graph.Props{key: value}, 1, 0)
	})
	if err != nil || len(found) == 0 {
		return nil, false, err
	}
	return found[0], true, nil
}

func (r *Repository) FindVerticesByProperties(ctx context.Context, label string, filter graph.Props) ([]graph.Props, error) {
	return txn.Do(ctx, r.tx, func(run Runner) ([]graph.Props, error) {
		return r.findVertices(ctx, run, "findByProperties", label, filter, 0, 0)
	})
}

func (r *Repository) ExistsVertexByProperty(ctx context.Context, label, key string, value any) (bool, error) {
	if label == "" {
		return false, ctx.Err()
	}
	n, err := txn.Do(ctx, r.tx, func(run Runner) (int64, error) {
		return r.countVertices(ctx, run, label, graph.Props{key: value})
	})
	return n > 0, err
}

func (r *Repository) CountLabel(ctx context.Context, label string) (int64, error) {
	if label == "" {
		return 0, ctx.Err()
	}
	return txn.Do(ctx, r.tx, func(run Runner) (int64, error) {
		return r.countVertices(ctx, run, label, nil)
	})
}

func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	return txn.Do(ctx, r.tx, func(run Runner) (int64, error) {
		return r.countVertices(ctx, run, "", nil)
	})
}

func (r *Repository) LinkOrCreate(ctx context.Context, from, to graph.VertexMatch, edgeLabel string, edgeProps graph.Props) (graph.ID, error) {
	return txn.DoInNewTransaction(ctx, r.tx, func(run Runner) (graph.ID, error) {
		return r.linkOrCreate(ctx, run, from, to, edgeLabel, edgeProps)
	})
}

func (r *Repository) TraverseVertices(ctx context.Context, id graph.ID, edgeLabel string, dir graph.Direction) ([]graph.Props, error) {
	return txn.Do(ctx, r.tx, func(run Runner) ([]graph.Props, error) {
		return r.traverseFrom(ctx, run, "traverse", id, edgeLabel, dir, 0)
	})
}

func (r *Repository) TraverseVerticesWithDepth(ctx context.Context, id graph.ID, edgeLabel string, depth int) ([]graph.Props, error) {
	if depth <= 0 {
		return []graph.Props{}, ctx.Err()
	}
	return txn.Do(ctx, r.tx, func(run Runner) ([]graph.Props, error) {
		return r.traverseFrom(ctx, run, "traverseWithDepth", id, edgeLabel, graph.DirectionOut, depth)
	})
}

func (r *Repository) DeleteLabel(ctx context.Context, label string) error {
	if label == "" {
		return ctx.Err()
	}
	return r.read(ctx, func(run Runner) error {
		return r.deleteVertices(ctx, run, "deleteAll", label, nil)
	})
}

func (r *Repository) DeleteVerticesByProperty(ctx context.Context, label, key string, value any) error {
	return r.read(ctx, func(run Runner) error {
		return r.deleteVertices(ctx, run, "deleteByProperty", label, graph.Props{key: value})
	})
}

// ---------- helpers ----------

func isPointer(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Pointer
}
