//go:build cgo

package cypher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kuzu "github.com/kuzudb/go-kuzu"
	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/txn"
)

// Compile-time interface check.
var _ Driver = (*KuzuDriver)(nil)

// KuzuDriver runs statements on an embedded KuzuDB database. It requires CGO
// because the go-kuzu driver wraps KuzuDB's C library.
//
// Kuzu admits one write transaction at a time, so the driver serializes units
// of work: a transaction holds the driver until it is closed and ambient
// statements wait for it.
type KuzuDriver struct {
	db     *kuzu.Database
	conn   *kuzu.Connection
	serial sync.Mutex
	cat    *catalog
	logger *zap.Logger
}

// OpenKuzu opens the database at path, or an in-memory database when path is
// empty or ":memory:". For file databases the parent directory is created;
// Kuzu creates the leaf directory itself.
func OpenKuzu(path string, logger *zap.Logger) (*KuzuDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
		}
	}
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, graph.Exec("connect", fmt.Errorf("kuzu: open database: %w", err))
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, graph.Exec("connect", fmt.Errorf("kuzu: open connection: %w", err))
	}
	d := &KuzuDriver{db: db, conn: conn, cat: newCatalog(), logger: logger}
	if err := d.cat.load(func(stmt string) ([]Record, error) { return query(conn, stmt, nil) }); err != nil {
		d.close()
		return nil, graph.Exec("connect", err)
	}
	logger.Info("kuzu database opened", zap.String("path", path))
	return d, nil
}

// OpenEmbedded opens the embedded Kuzu database at path as a Driver.
func OpenEmbedded(path string, logger *zap.Logger) (Driver, error) {
	d, err := OpenKuzu(path, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *KuzuDriver) Name() string { return "kuzu" }

func (d *KuzuDriver) LabelOf(v string) string { return "label(" + v + ")" }
func (d *KuzuDriver) RelsOf(p string) string  { return "rels(" + p + ")" }

func (d *KuzuDriver) HasVertexLabel(label string) bool { return d.cat.hasVertexLabel(label) }
func (d *KuzuDriver) HasEdgeLabel(label string) bool   { return d.cat.hasEdgeLabel(label) }
func (d *KuzuDriver) HasProperty(label, key string) bool {
	return d.cat.hasProperty(label, key)
}
func (d *KuzuDriver) Accepts(label, key string, value any) bool {
	return d.cat.accepts(label, key, value)
}

// Ambient returns a runner that auto-commits each statement.
func (d *KuzuDriver) Ambient() Runner {
	return &kuzuRunner{d: d, conn: d.conn, lock: true}
}

// Begin opens a dedicated connection and starts a manual transaction on it.
func (d *KuzuDriver) Begin(ctx context.Context) (txn.Scope[Runner], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.serial.Lock()
	conn, err := kuzu.OpenConnection(d.db)
	if err != nil {
		d.serial.Unlock()
		return nil, graph.Exec("begin", fmt.Errorf("kuzu: open connection: %w", err))
	}
	if _, err := query(conn, "BEGIN TRANSACTION", nil); err != nil {
		conn.Close()
		d.serial.Unlock()
		return nil, graph.Exec("begin", err)
	}
	return &kuzuScope{d: d, conn: conn, open: true, run: &kuzuRunner{d: d, conn: conn}}, nil
}

// Close releases the connection and the database.
func (d *KuzuDriver) Close(context.Context) error {
	d.serial.Lock()
	defer d.serial.Unlock()
	d.close()
	return nil
}

func (d *KuzuDriver) close() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	if d.db != nil {
		d.db.Close()
		d.db = nil
	}
}

// ---------- runner ----------

type kuzuRunner struct {
	d    *KuzuDriver
	conn *kuzu.Connection
	// lock is set on the ambient runner, which shares the driver connection.
	lock bool
}

func (r *kuzuRunner) Run(ctx context.Context, stmt string, params map[string]any) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.lock {
		r.d.serial.Lock()
		defer r.d.serial.Unlock()
	}
	return query(r.conn, stmt, params)
}

func (r *kuzuRunner) EnsureVertex(ctx context.Context, label string, props graph.Props) error {
	stmts, commit, err := r.d.cat.planVertex(label, props)
	if err != nil {
		return err
	}
	return r.ddl(ctx, stmts, commit)
}

func (r *kuzuRunner) EnsureEdge(ctx context.Context, label, fromLabel, toLabel string, props graph.Props) error {
	stmts, commit, err := r.d.cat.planEdge(label, fromLabel, toLabel, props)
	if err != nil {
		return err
	}
	return r.ddl(ctx, stmts, commit)
}

func (r *kuzuRunner) ddl(ctx context.Context, stmts []string, commit func()) error {
	if len(stmts) == 0 {
		return nil
	}
	for _, stmt := range stmts {
		r.d.logger.Debug("kuzu ddl", zap.String("stmt", stmt))
		if _, err := r.Run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	commit()
	return nil
}

// ---------- scope ----------

type kuzuScope struct {
	d      *KuzuDriver
	conn   *kuzu.Connection
	run    *kuzuRunner
	mu     sync.Mutex
	open   bool
	closed bool
}

func (s *kuzuScope) Handle() Runner { return s.run }

func (s *kuzuScope) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *kuzuScope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return graph.Exec("commit", errors.New("kuzu: transaction not open"))
	}
	s.open = false
	if _, err := query(s.conn, "COMMIT", nil); err != nil {
		s.reload()
		return graph.Exec("commit", err)
	}
	return nil
}

func (s *kuzuScope) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	if _, err := query(s.conn, "ROLLBACK", nil); err != nil {
		return graph.Exec("rollback", err)
	}
	s.reload()
	return nil
}

// Close releases the connection and the driver. It is idempotent.
func (s *kuzuScope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.Close()
	s.d.serial.Unlock()
	return nil
}

// reload resynchronizes the catalogue after DDL was rolled back.
func (s *kuzuScope) reload() {
	err := s.d.cat.load(func(stmt string) ([]Record, error) { return query(s.conn, stmt, nil) })
	if err != nil {
		s.d.logger.Error("kuzu catalog reload failed", zap.Error(err))
	}
}

// ---------- helpers ----------

// query runs a statement, prepared when it has parameters, and collects all
// rows with values decoded.
func query(conn *kuzu.Connection, stmt string, params map[string]any) ([]Record, error) {
	var (
		res *kuzu.QueryResult
		err error
	)
	if len(params) == 0 {
		res, err = conn.Query(stmt)
	} else {
		var prepared *kuzu.PreparedStatement
		prepared, err = conn.Prepare(stmt)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer prepared.Close()
		res, err = conn.Execute(prepared, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows []Record
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		row := make(Record, len(vals))
		for i, v := range vals {
			row[i] = decodeKuzu(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeKuzu(v any) any {
	switch x := v.(type) {
	case kuzu.Node:
		return Node{Label: x.Label, Props: decodeKuzuProps(x.Properties)}
	case kuzu.Relationship:
		return Rel{Label: x.Label, Props: decodeKuzuProps(x.Properties)}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = decodeKuzu(e)
		}
		return out
	default:
		return graph.NormalizeValue(v)
	}
}

func decodeKuzuProps(m map[string]any) graph.Props {
	out := make(graph.Props, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = decodeKuzu(v)
	}
	return out
}
