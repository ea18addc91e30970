// Package traversal implements the repository over a traversal-step backend
// (an in-process graph or a Gremlin server). Entity work goes through the OGM
// processor; raw work goes straight to the engine.
package traversal

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/engine"
	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/ogm"
	"github.com/dusk-indust/graphogm/internal/repository"
	"github.com/dusk-indust/graphogm/internal/schema"
	"github.com/dusk-indust/graphogm/internal/txn"
)

// Compile-time interface check.
var _ repository.Repository = (*Repository)(nil)

// Options tunes the repository.
type Options struct {
	// TransactionalWrites runs multi-step writes (entity saves, bidirectional
	// and batched edges) inside one transaction scope. Backends without
	// transaction support must leave it off.
	TransactionalWrites bool
}

// Repository is the traversal-step repository facade.
type Repository struct {
	backend engine.Backend
	tx      *txn.Manager[engine.Engine]
	ogm     *ogm.Processor
	opts    Options
	logger  *zap.Logger
}

// New returns a repository over backend using reg for entity mapping. A nil
// logger discards output.
func New(backend engine.Backend, reg *schema.Registry, opts Options, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", backend.Name()))
	return &Repository{
		backend: backend,
		tx:      txn.NewManager(backend, logger),
		ogm:     ogm.New(reg, logger),
		opts:    opts,
		logger:  logger,
	}
}

func (r *Repository) Name() string               { return r.backend.Name() }
func (r *Repository) Registry() *schema.Registry { return r.ogm.Registry() }

// Close releases the backend connection.
func (r *Repository) Close(ctx context.Context) error { return r.backend.Close(ctx) }

// read runs fn on the ambient engine.
func (r *Repository) read(ctx context.Context, fn func(engine.Engine) error) error {
	return r.tx.Execute(ctx, fn)
}

// write runs a multi-step write, transactionally when configured.
func (r *Repository) write(ctx context.Context, fn func(engine.Engine) error) error {
	if r.opts.TransactionalWrites {
		return r.tx.ExecuteInNewTransaction(ctx, fn)
	}
	return r.tx.Execute(ctx, fn)
}

// ---------- typed writes ----------

func (r *Repository) Save(ctx context.Context, entity any) (graph.ID, error) {
	staged := r.ogm.Registry().NewIdentities()
	var id graph.ID
	err := r.write(ctx, func(e engine.Engine) (err error) {
		id, err = r.ogm.SaveStaged(ctx, e, staged, entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, staged.Apply()
}

func (r *Repository) SaveAll(ctx context.Context, entities ...any) ([]graph.ID, error) {
	staged := r.ogm.Registry().NewIdentities()
	var ids []graph.ID
	err := r.write(ctx, func(e engine.Engine) (err error) {
		ids, err = r.ogm.SaveAllStaged(ctx, e, staged, entities...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, staged.Apply()
}

func (r *Repository) SaveOrUpdate(ctx context.Context, entity any) (graph.ID, error) {
	staged := r.ogm.Registry().NewIdentities()
	var id graph.ID
	err := r.write(ctx, func(e engine.Engine) (err error) {
		id, err = r.ogm.SaveOrUpdateStaged(ctx, e, staged, entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, staged.Apply()
}

func (r *Repository) Link(ctx context.Context, from, to any, edgeLabel string, edgeProps graph.Props) (graph.ID, error) {
	var id graph.ID
	err := r.write(ctx, func(e engine.Engine) (err error) {
		id, err = r.ogm.Link(ctx, e, from, to, edgeLabel, edgeProps)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (r *Repository) DeleteAll(ctx context.Context, t reflect.Type) error {
	return r.read(ctx, func(e engine.Engine) error {
		return r.ogm.DeleteAll(ctx, e, t)
	})
}

func (r *Repository) DeleteByProperty(ctx context.Context, t reflect.Type, key string, value any) error {
	return r.read(ctx, func(e engine.Engine) error {
		return r.ogm.DeleteByProperty(ctx, e, t, key, value)
	})
}

// ---------- typed reads ----------

func (r *Repository) FindByID(ctx context.Context, t reflect.Type, id graph.ID) (any, bool, error) {
	var (
		v  any
		ok bool
	)
	err := r.read(ctx, func(e engine.Engine) (err error) {
		v, ok, err = r.ogm.FindByID(ctx, e, t, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return v, ok, nil
}

func (r *Repository) FindAll(ctx context.Context, t reflect.Type) ([]any, error) {
	return r.entities(ctx, func(e engine.Engine) ([]any, error) {
		return r.ogm.FindAll(ctx, e, t)
	})
}

func (r *Repository) FindPage(ctx context.Context, t reflect.Type, page repository.Page) ([]any, error) {
	return r.entities(ctx, func(e engine.Engine) ([]any, error) {
		return r.ogm.FindPage(ctx, e, t, page.Limit, page.Offset)
	})
}

func (r *Repository) FindByProperty(ctx context.Context, t reflect.Type, key string, value any) (any, bool, error) {
	var (
		v  any
		ok bool
	)
	err := r.read(ctx, func(e engine.Engine) (err error) {
		v, ok, err = r.ogm.FindByProperty(ctx, e, t, key, value)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return v, ok, nil
}

func (r *Repository) FindByProperties(ctx context.Context, t reflect.Type, filter graph.Props) ([]any, error) {
	return r.entities(ctx, func(e engine.Engine) ([]any, error) {
		return r.ogm.FindByProperties(ctx, e, t, filter)
	})
}

func (r *Repository) ExistsByProperty(ctx context.Context, t reflect.Type, key string, value any) (bool, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (bool, error) {
		return r.ogm.ExistsByProperty(ctx, e, t, key, value)
	})
}

func (r *Repository) CountVertices(ctx context.Context, t reflect.Type) (int64, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (int64, error) {
		return r.ogm.Count(ctx, e, t)
	})
}

func (r *Repository) Traverse(ctx context.Context, anchor any, edgeLabel string, dir graph.Direction, result reflect.Type) ([]any, error) {
	return r.entities(ctx, func(e engine.Engine) ([]any, error) {
		return r.ogm.Traverse(ctx, e, anchor, edgeLabel, dir, result)
	})
}

func (r *Repository) TraverseOutgoing(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	return r.entities(ctx, func(e engine.Engine) ([]any, error) {
		return r.ogm.TraverseOutgoing(ctx, e, t, id, edgeLabel)
	})
}

func (r *Repository) TraverseIncoming(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	return r.entities(ctx, func(e engine.Engine) ([]any, error) {
		return r.ogm.TraverseIncoming(ctx, e, t, id, edgeLabel)
	})
}

func (r *Repository) TraverseBoth(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string) ([]any, error) {
	return r.entities(ctx, func(e engine.Engine) ([]any, error) {
		return r.ogm.TraverseBoth(ctx, e, t, id, edgeLabel)
	})
}

func (r *Repository) TraverseWithDepth(ctx context.Context, t reflect.Type, id graph.ID, edgeLabel string, depth int) ([]any, error) {
	return r.entities(ctx, func(e engine.Engine) ([]any, error) {
		return r.ogm.TraverseWithDepth(ctx, e, t, id, edgeLabel, depth)
	})
}

// ---------- identity and edges ----------

func (r *Repository) Exists(ctx context.Context, id graph.ID) (bool, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (bool, error) {
		return e.Exists(ctx, id)
	})
}

func (r *Repository) Delete(ctx context.Context, id graph.ID) error {
	return r.read(ctx, func(e engine.Engine) error {
		return e.Delete(ctx, id)
	})
}

func (r *Repository) AddEdge(ctx context.Context, from, to graph.ID, edgeLabel string, dir graph.Direction, props graph.Props) error {
	run := r.read
	if dir == graph.DirectionBoth {
		run = r.write
	}
	return run(ctx, func(e engine.Engine) error {
		return e.AddEdge(ctx, from, to, edgeLabel, dir, props)
	})
}

func (r *Repository) AddEdges(ctx context.Context, from graph.ID, to []graph.ID, edgeLabel string, dir graph.Direction) error {
	return r.write(ctx, func(e engine.Engine) error {
		return e.AddEdges(ctx, from, to, edgeLabel, dir)
	})
}

func (r *Repository) DeleteEdge(ctx context.Context, from, to graph.ID, edgeLabel string) error {
	return r.read(ctx, func(e engine.Engine) error {
		return e.DeleteEdge(ctx, from, to, edgeLabel)
	})
}

func (r *Repository) GetPath(ctx context.Context, from, to graph.ID, edgeLabel string, maxDepth int) ([]graph.Path, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) ([]graph.Path, error) {
		return e.FindPath(ctx, from, to, edgeLabel, maxDepth)
	})
}

func (r *Repository) CountEdges(ctx context.Context, id graph.ID, edgeLabel string) (int64, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (int64, error) {
		return e.CountEdges(ctx, id, edgeLabel)
	})
}

func (r *Repository) Edges(ctx context.Context, edgeLabel string) ([]graph.Element, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) ([]graph.Element, error) {
		return e.EdgesByLabel(ctx, edgeLabel)
	})
}

// ---------- raw ----------

func (r *Repository) CreateVertex(ctx context.Context, label string, props graph.Props) (graph.ID, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (graph.ID, error) {
		return e.CreateVertex(ctx, label, props)
	})
}

func (r *Repository) UpdateVertex(ctx context.Context, id graph.ID, props graph.Props) (bool, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (bool, error) {
		return e.UpdateVertex(ctx, id, props)
	})
}

func (r *Repository) FindVertex(ctx context.Context, id graph.ID) (graph.Props, bool, error) {
	var (
		m  graph.Props
		ok bool
	)
	err := r.read(ctx, func(e engine.Engine) (err error) {
		m, ok, err = e.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return m, ok, nil
}

func (r *Repository) FindVertices(ctx context.Context, label string, page repository.Page) ([]graph.Props, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) ([]graph.Props, error) {
		return e.FindPage(ctx, label, page.Limit, page.Offset)
	})
}

func (r *Repository) FindVertexByProperty(ctx context.Context, label, key string, value any) (graph.Props, bool, error) {
	var (
		m  graph.Props
		ok bool
	)
	err := r.read(ctx, func(e engine.Engine) (err error) {
		m, ok, err = e.FindByProperty(ctx, label, key, value)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return m, ok, nil
}

func (r *Repository) FindVerticesByProperties(ctx context.Context, label string, filter graph.Props) ([]graph.Props, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) ([]graph.Props, error) {
		return e.FindByProperties(ctx, label, filter)
	})
}

func (r *Repository) ExistsVertexByProperty(ctx context.Context, label, key string, value any) (bool, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (bool, error) {
		return e.ExistsByProperty(ctx, label, key, value)
	})
}

func (r *Repository) CountLabel(ctx context.Context, label string) (int64, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (int64, error) {
		return e.Count(ctx, label)
	})
}

func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) (int64, error) {
		return e.CountAll(ctx)
	})
}

func (r *Repository) LinkOrCreate(ctx context.Context, from, to graph.VertexMatch, edgeLabel string, edgeProps graph.Props) (graph.ID, error) {
	var id graph.ID
	err := r.write(ctx, func(e engine.Engine) (err error) {
		id, err = e.LinkOrCreate(ctx, from, to, edgeLabel, edgeProps)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (r *Repository) TraverseVertices(ctx context.Context, id graph.ID, edgeLabel string, dir graph.Direction) ([]graph.Props, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) ([]graph.Props, error) {
		switch dir {
		case graph.DirectionIn:
			return e.TraverseIncoming(ctx, id, edgeLabel)
		case graph.DirectionBoth:
			return e.TraverseBoth(ctx, id, edgeLabel)
		default:
			return e.TraverseOutgoing(ctx, id, edgeLabel)
		}
	})
}

func (r *Repository) TraverseVerticesWithDepth(ctx context.Context, id graph.ID, edgeLabel string, depth int) ([]graph.Props, error) {
	return txn.Do(ctx, r.tx, func(e engine.Engine) ([]graph.Props, error) {
		return e.TraverseWithDepth(ctx, id, edgeLabel, depth)
	})
}

func (r *Repository) DeleteLabel(ctx context.Context, label string) error {
	return r.read(ctx, func(e engine.Engine) error {
		return e.DeleteAll(ctx, label)
	})
}

func (r *Repository) DeleteVerticesByProperty(ctx context.Context, label, key string, value any) error {
	return r.read(ctx, func(e engine.Engine) error {
		return e.DeleteByProperty(ctx, label, key, value)
	})
}

// ---------- helpers ----------

func (r *Repository) entities(ctx context.Context, fn func(engine.Engine) ([]any, error)) ([]any, error) {
	return txn.Do(ctx, r.tx, fn)
}
