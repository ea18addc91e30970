// Package ogm turns entity-level operations into engine primitives: it saves
// entity graphs recursively and maps raw vertex maps back into typed values.
package ogm

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/engine"
	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/schema"
)

// Processor composes the schema registry with an engine. It holds no
// per-call state; the engine is passed to every call so the same processor
// serves ambient and transactional handles.
type Processor struct {
	reg    *schema.Registry
	logger *zap.Logger
}

// New returns a processor over reg. A nil logger discards output.
func New(reg *schema.Registry, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{reg: reg, logger: logger}
}

// Registry returns the schema registry the processor maps with.
func (p *Processor) Registry() *schema.Registry { return p.reg }

// ---------- writes ----------

// Save creates a vertex for entity, then saves every related entity and links
// it with the relation's edge label and direction. Within one call a pointer
// that was already saved reuses its vertex, so cyclic object graphs
// terminate; separate calls always create new vertices. The new identities
// are written back into pointer entities once the whole graph is saved.
func (p *Processor) Save(ctx context.Context, e engine.Engine, entity any) (graph.ID, error) {
	staged := p.reg.NewIdentities()
	id, err := p.SaveStaged(ctx, e, staged, entity)
	if err != nil {
		return nil, err
	}
	return id, staged.Apply()
}

// SaveStaged is Save without the write-back: identities are collected in
// staged for the caller to apply once its transaction commits.
func (p *Processor) SaveStaged(ctx context.Context, e engine.Engine, staged *schema.Identities, entity any) (graph.ID, error) {
	return p.save(ctx, e, entity, make(map[any]graph.ID), staged)
}

// SaveAll saves each entity in its own Save pass.
func (p *Processor) SaveAll(ctx context.Context, e engine.Engine, entities ...any) ([]graph.ID, error) {
	staged := p.reg.NewIdentities()
	ids, err := p.SaveAllStaged(ctx, e, staged, entities...)
	if err != nil {
		return ids, err
	}
	return ids, staged.Apply()
}

// SaveAllStaged is SaveAll collecting identities in staged.
func (p *Processor) SaveAllStaged(ctx context.Context, e engine.Engine, staged *schema.Identities, entities ...any) ([]graph.ID, error) {
	ids := make([]graph.ID, 0, len(entities))
	for _, entity := range entities {
		id, err := p.SaveStaged(ctx, e, staged, entity)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *Processor) save(ctx context.Context, e engine.Engine, entity any, visited map[any]graph.ID, staged *schema.Identities) (graph.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := p.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	props, err := p.reg.ExtractProperties(entity)
	if err != nil {
		return nil, err
	}

	id, err := e.CreateVertex(ctx, d.Label, props)
	if err != nil {
		return nil, fmt.Errorf("ogm: save %s: %w", d.Label, err)
	}
	if isPointer(entity) {
		visited[entity] = id
		if err := staged.Add(entity, id); err != nil {
			return nil, fmt.Errorf("ogm: save %s: %w", d.Label, err)
		}
	}
	p.logger.Debug("vertex saved", zap.String("label", d.Label), zap.Any("id", id))

	rels, err := p.reg.ExtractRelations(entity)
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		var targetID graph.ID
		seen := false
		if isPointer(rel.Target) {
			targetID, seen = visited[rel.Target]
		}
		if !seen {
			targetID, err = p.save(ctx, e, rel.Target, visited, staged)
			if err != nil {
				return nil, err
			}
		}
		if err := e.AddEdge(ctx, id, targetID, rel.Label, rel.Direction, nil); err != nil {
			return nil, fmt.Errorf("ogm: link %s -%s-> : %w", d.Label, rel.Label, err)
		}
	}
	return id, nil
}

// SaveOrUpdate updates the properties of the entity's vertex when its
// identity is set and the vertex exists, and saves it otherwise. Relations
// are only written on the save path.
func (p *Processor) SaveOrUpdate(ctx context.Context, e engine.Engine, entity any) (graph.ID, error) {
	staged := p.reg.NewIdentities()
	id, err := p.SaveOrUpdateStaged(ctx, e, staged, entity)
	if err != nil {
		return nil, err
	}
	return id, staged.Apply()
}

// SaveOrUpdateStaged is SaveOrUpdate collecting identities in staged.
func (p *Processor) SaveOrUpdateStaged(ctx context.Context, e engine.Engine, staged *schema.Identities, entity any) (graph.ID, error) {
	id, ok := p.reg.IdentityOf(entity)
	if !ok {
		return p.SaveStaged(ctx, e, staged, entity)
	}
	d, err := p.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	found, exists, err := e.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists || found.Label() != d.Label {
		return p.SaveStaged(ctx, e, staged, entity)
	}
	props, err := p.reg.ExtractProperties(entity)
	if err != nil {
		return nil, err
	}
	if _, err := e.UpdateVertex(ctx, id, props); err != nil {
		return nil, fmt.Errorf("ogm: update %s: %w", d.Label, err)
	}
	return found.ID(), nil
}

// Link resolves both entities by label and property equality, creating the
// vertices that are missing, and adds one edge between them.
func (p *Processor) Link(ctx context.Context, e engine.Engine, from, to any, edgeLabel string, edgeProps graph.Props) (graph.ID, error) {
	fromMatch, err := p.match(from)
	if err != nil {
		return nil, err
	}
	toMatch, err := p.match(to)
	if err != nil {
		return nil, err
	}
	return e.LinkOrCreate(ctx, fromMatch, toMatch, edgeLabel, edgeProps)
}

// DeleteAll removes every vertex of t's label.
func (p *Processor) DeleteAll(ctx context.Context, e engine.Engine, t reflect.Type) error {
	d, err := p.reg.Get(t)
	if err != nil {
		return err
	}
	return e.DeleteAll(ctx, d.Label)
}

// DeleteByProperty removes the vertices of t's label whose key equals value.
func (p *Processor) DeleteByProperty(ctx context.Context, e engine.Engine, t reflect.Type, key string, value any) error {
	d, err := p.reg.Get(t)
	if err != nil {
		return err
	}
	return e.DeleteByProperty(ctx, d.Label, key, value)
}

// ---------- reads ----------

// FindByID returns the vertex as a *T when it exists and carries t's label.
func (p *Processor) FindByID(ctx context.Context, e engine.Engine, t reflect.Type, id graph.ID) (any, bool, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, false, err
	}
	m, ok, err := e.FindByID(ctx, id)
	if err != nil || !ok || m.Label() != d.Label {
		return nil, false, err
	}
	return p.one(d, m)
}

func (p *Processor) FindAll(ctx context.Context, e engine.Engine, t reflect.Type) ([]any, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, err
	}
	return p.many(d)(e.FindAll(ctx, d.Label))
}

func (p *Processor) FindPage(ctx context.Context, e engine.Engine, t reflect.Type, limit, offset int) ([]any, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, err
	}
	return p.many(d)(e.FindPage(ctx, d.Label, limit, offset))
}

func (p *Processor) FindByProperty(ctx context.Context, e engine.Engine, t reflect.Type, key string, value any) (any, bool, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, false, err
	}
	m, ok, err := e.FindByProperty(ctx, d.Label, key, value)
	if err != nil || !ok {
		return nil, false, err
	}
	return p.one(d, m)
}

func (p *Processor) FindByProperties(ctx context.Context, e engine.Engine, t reflect.Type, filter graph.Props) ([]any, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, err
	}
	return p.many(d)(e.FindByProperties(ctx, d.Label, filter))
}

func (p *Processor) ExistsByProperty(ctx context.Context, e engine.Engine, t reflect.Type, key string, value any) (bool, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return false, err
	}
	return e.ExistsByProperty(ctx, d.Label, key, value)
}

func (p *Processor) Count(ctx context.Context, e engine.Engine, t reflect.Type) (int64, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return 0, err
	}
	return e.Count(ctx, d.Label)
}

// Traverse follows one hop from the vertices matching anchor's properties and
// maps the neighbours into result.
func (p *Processor) Traverse(ctx context.Context, e engine.Engine, anchor any, edgeLabel string, dir graph.Direction, result reflect.Type) ([]any, error) {
	m, err := p.match(anchor)
	if err != nil {
		return nil, err
	}
	d, err := p.reg.Get(result)
	if err != nil {
		return nil, err
	}
	return p.many(d)(e.Traverse(ctx, m, edgeLabel, dir))
}

func (p *Processor) TraverseOutgoing(ctx context.Context, e engine.Engine, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, err
	}
	return p.many(d)(e.TraverseOutgoing(ctx, id, edgeLabel))
}

func (p *Processor) TraverseIncoming(ctx context.Context, e engine.Engine, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, err
	}
	return p.many(d)(e.TraverseIncoming(ctx, id, edgeLabel))
}

func (p *Processor) TraverseBoth(ctx context.Context, e engine.Engine, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, err
	}
	return p.many(d)(e.TraverseBoth(ctx, id, edgeLabel))
}

func (p *Processor) TraverseWithDepth(ctx context.Context, e engine.Engine, t reflect.Type, id graph.ID, edgeLabel string, depth int) ([]any, error) {
	d, err := p.reg.Get(t)
	if err != nil {
		return nil, err
	}
	return p.many(d)(e.TraverseWithDepth(ctx, id, edgeLabel, depth))
}

// ---------- helpers ----------

func (p *Processor) match(entity any) (graph.VertexMatch, error) {
	d, err := p.reg.Describe(entity)
	if err != nil {
		return graph.VertexMatch{}, err
	}
	props, err := p.reg.ExtractProperties(entity)
	if err != nil {
		return graph.VertexMatch{}, err
	}
	return graph.VertexMatch{Label: d.Label, Props: props}, nil
}

func (p *Processor) one(d *schema.Descriptor, m graph.Props) (any, bool, error) {
	v, err := p.reg.Populate(d, m)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// many adapts an engine result list into populated entities.
func (p *Processor) many(d *schema.Descriptor) func([]graph.Props, error) ([]any, error) {
	return func(maps []graph.Props, err error) ([]any, error) {
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(maps))
		for _, m := range maps {
			v, err := p.reg.Populate(d, m)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
}

func isPointer(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Pointer
}
