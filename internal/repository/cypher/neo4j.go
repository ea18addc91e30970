package cypher

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/txn"
)

// Compile-time interface check.
var _ Driver = (*Neo4jDriver)(nil)

// Neo4jOptions configures the remote connection.
type Neo4jOptions struct {
	URI      string
	Username string
	Password string
	// Database selects the database; empty uses the server default.
	Database string
	// MaxPoolSize caps the driver's connection pool; 0 keeps the default.
	MaxPoolSize int
}

// Neo4jDriver runs statements on a Neo4j server. Ambient statements use
// auto-commit sessions; each transaction scope owns a session and an
// explicit transaction.
type Neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// DialNeo4j connects to the server and verifies connectivity.
func DialNeo4j(ctx context.Context, opts Neo4jOptions, logger *zap.Logger) (*Neo4jDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}
	drv, err := neo4j.NewDriverWithContext(opts.URI, auth, func(cfg *neo4j.Config) {
		if opts.MaxPoolSize > 0 {
			cfg.MaxConnectionPoolSize = opts.MaxPoolSize
		}
	})
	if err != nil {
		return nil, graph.Exec("connect", fmt.Errorf("neo4j: new driver: %w", err))
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		_ = drv.Close(ctx)
		return nil, graph.Exec("connect", fmt.Errorf("neo4j: verify connectivity: %w", err))
	}
	logger.Info("neo4j backend connected", zap.String("uri", opts.URI), zap.String("database", opts.Database))
	return &Neo4jDriver{driver: drv, database: opts.Database, logger: logger}, nil
}

func (d *Neo4jDriver) Name() string { return "neo4j" }

func (d *Neo4jDriver) LabelOf(v string) string { return "labels(" + v + ")[0]" }
func (d *Neo4jDriver) RelsOf(p string) string  { return "relationships(" + p + ")" }

// Neo4j is schema-less: every label and key can be matched.
func (d *Neo4jDriver) HasVertexLabel(string) bool      { return true }
func (d *Neo4jDriver) HasEdgeLabel(string) bool        { return true }
func (d *Neo4jDriver) HasProperty(string, string) bool { return true }
func (d *Neo4jDriver) Accepts(string, string, any) bool  { return true }

// Ambient returns a runner that opens an auto-commit session per statement.
func (d *Neo4jDriver) Ambient() Runner { return &neo4jAmbient{d: d} }

// Begin opens a session and an explicit transaction on it.
func (d *Neo4jDriver) Begin(ctx context.Context) (txn.Scope[Runner], error) {
	session := d.session(ctx, neo4j.AccessModeWrite)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, graph.Exec("begin", err)
	}
	return &neo4jScope{ctx: ctx, session: session, tx: tx, open: true}, nil
}

// Close shuts the driver's connection pool.
func (d *Neo4jDriver) Close(ctx context.Context) error {
	if err := d.driver.Close(ctx); err != nil {
		return graph.Exec("close", err)
	}
	return nil
}

func (d *Neo4jDriver) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: d.database})
}

// ---------- runners ----------

type neo4jAmbient struct {
	d *Neo4jDriver
}

func (r *neo4jAmbient) Run(ctx context.Context, stmt string, params map[string]any) ([]Record, error) {
	session := r.d.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	res, err := session.Run(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	return collect(ctx, res)
}

func (r *neo4jAmbient) EnsureVertex(context.Context, string, graph.Props) error { return nil }
func (r *neo4jAmbient) EnsureEdge(context.Context, string, string, string, graph.Props) error {
	return nil
}

type neo4jTxRunner struct {
	tx neo4j.ExplicitTransaction
}

func (r *neo4jTxRunner) Run(ctx context.Context, stmt string, params map[string]any) ([]Record, error) {
	res, err := r.tx.Run(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	return collect(ctx, res)
}

func (r *neo4jTxRunner) EnsureVertex(context.Context, string, graph.Props) error { return nil }
func (r *neo4jTxRunner) EnsureEdge(context.Context, string, string, string, graph.Props) error {
	return nil
}

// ---------- scope ----------

type neo4jScope struct {
	// ctx is the context the scope was opened with; Scope methods take none.
	ctx     context.Context
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
	mu      sync.Mutex
	open    bool
	closed  bool
}

func (s *neo4jScope) Handle() Runner { return &neo4jTxRunner{tx: s.tx} }

func (s *neo4jScope) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *neo4jScope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return graph.Exec("commit", s.tx.Commit(s.ctx))
}

func (s *neo4jScope) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	return graph.Exec("rollback", s.tx.Rollback(s.ctx))
}

func (s *neo4jScope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.tx.Close(s.ctx); err != nil {
		_ = s.session.Close(s.ctx)
		return graph.Exec("close", err)
	}
	return graph.Exec("close", s.session.Close(s.ctx))
}

// ---------- decoding ----------

func collect(ctx context.Context, res neo4j.ResultWithContext) ([]Record, error) {
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Record, 0, len(records))
	for _, rec := range records {
		row := make(Record, len(rec.Values))
		for i, v := range rec.Values {
			row[i] = decodeNeo4j(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeNeo4j(v any) any {
	switch x := v.(type) {
	case neo4j.Node:
		label := ""
		if len(x.Labels) > 0 {
			label = x.Labels[0]
		}
		return Node{Label: label, Props: decodeNeo4jProps(x.Props)}
	case neo4j.Relationship:
		return Rel{Label: x.Type, Props: decodeNeo4jProps(x.Props)}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = decodeNeo4j(e)
		}
		return out
	default:
		return graph.NormalizeValue(v)
	}
}

func decodeNeo4jProps(m map[string]any) graph.Props {
	out := make(graph.Props, len(m))
	for k, v := range m {
		out[k] = decodeNeo4j(v)
	}
	return out
}
