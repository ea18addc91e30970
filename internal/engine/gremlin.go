package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/txn"
)

// Compile-time assertions.
var (
	_ Engine  = (*GremlinEngine)(nil)
	_ Backend = (*GremlinBackend)(nil)
)

// GremlinOptions configures the remote connection.
type GremlinOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	// PoolSize caps concurrent connections to the server.
	PoolSize int
	// MaxInProcessPerConnection is the in-flight request count at which the
	// driver opens another connection.
	MaxInProcessPerConnection int
	// BatchSize is the server-side result batch size.
	BatchSize int
}

// URL returns the websocket endpoint for the options.
func (o GremlinOptions) URL() string {
	scheme := "ws"
	if o.SSL {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/gremlin", scheme, o.Host, o.Port)
}

// ParseGremlinURL reads host, port and TLS from a ws:// or wss:// endpoint.
func ParseGremlinURL(raw string) (GremlinOptions, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return GremlinOptions{}, fmt.Errorf("engine: parse gremlin url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return GremlinOptions{}, fmt.Errorf("engine: parse gremlin url: unsupported scheme %q", u.Scheme)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return GremlinOptions{}, fmt.Errorf("engine: parse gremlin url: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return GremlinOptions{}, fmt.Errorf("engine: parse gremlin url: port: %w", err)
	}
	return GremlinOptions{Host: host, Port: port, SSL: u.Scheme == "wss"}, nil
}

// GremlinBackend is a sessionless connection to a Gremlin server.
type GremlinBackend struct {
	conn    *gremlingo.DriverRemoteConnection
	g       *gremlingo.GraphTraversalSource
	ambient *GremlinEngine
	logger  *zap.Logger
}

// DialGremlin connects to the server described by opts.
func DialGremlin(opts GremlinOptions, logger *zap.Logger) (*GremlinBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := gremlingo.NewDriverRemoteConnection(opts.URL(), func(settings *gremlingo.DriverRemoteConnectionSettings) {
		if opts.Username != "" {
			settings.AuthInfo = gremlingo.BasicAuthInfo(opts.Username, opts.Password)
		}
		if opts.SSL {
			settings.TlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if opts.PoolSize > 0 {
			settings.MaximumConcurrentConnections = opts.PoolSize
		}
		if opts.MaxInProcessPerConnection > 0 {
			settings.NewConnectionThreshold = opts.MaxInProcessPerConnection
		}
	})
	if err != nil {
		return nil, graph.Exec("connect", err)
	}

	g := gremlingo.Traversal_().WithRemote(conn)
	if opts.BatchSize > 0 {
		g = g.With("batchSize", opts.BatchSize)
	}
	logger.Info("gremlin backend connected",
		zap.String("url", opts.URL()),
		zap.Int("pool_size", opts.PoolSize),
		zap.Int("batch_size", opts.BatchSize),
	)
	return &GremlinBackend{conn: conn, g: g, ambient: &GremlinEngine{g: g}, logger: logger}, nil
}

// Name identifies the backend in logs.
func (b *GremlinBackend) Name() string { return "gremlin" }

// Ambient returns the sessionless engine.
func (b *GremlinBackend) Ambient() Engine { return b.ambient }

// Begin opens a server-side transaction. Servers without transaction support
// fail here.
func (b *GremlinBackend) Begin(ctx context.Context) (txn.Scope[Engine], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx := b.g.Tx()
	gtx, err := tx.Begin()
	if err != nil {
		return nil, graph.Exec("begin", err)
	}
	return &gremlinScope{tx: tx, eng: &GremlinEngine{g: gtx}}, nil
}

// Close releases the connection pool.
func (b *GremlinBackend) Close(context.Context) error {
	b.conn.Close()
	return nil
}

type gremlinScope struct {
	tx  *gremlingo.Transaction
	eng *GremlinEngine
}

func (s *gremlinScope) Handle() Engine  { return s.eng }
func (s *gremlinScope) Commit() error   { return graph.Exec("commit", s.tx.Commit()) }
func (s *gremlinScope) Rollback() error { return graph.Exec("rollback", s.tx.Rollback()) }
func (s *gremlinScope) IsOpen() bool    { return s.tx.IsOpen() }

func (s *gremlinScope) Close() error {
	if !s.tx.IsOpen() {
		return nil
	}
	return graph.Exec("close", s.tx.Close())
}

// GremlinEngine implements Engine with gremlin-go traversals.
type GremlinEngine struct {
	g *gremlingo.GraphTraversalSource
}

var __ = gremlingo.T__

// ---------- create / update ----------

func (e *GremlinEngine) CreateVertex(ctx context.Context, label string, props graph.Props) (graph.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := gSetProps(e.g.AddV(label), props)
	res, err := t.Id().Next()
	if err != nil {
		return nil, graph.Exec("createVertex", err)
	}
	return res.GetInterface(), nil
}

func (e *GremlinEngine) UpdateVertex(ctx context.Context, id graph.ID, props graph.Props) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !graph.ValidID(id) {
		return false, nil
	}
	t := e.g.V(id)
	for _, k := range props.Keys() {
		if graph.IsReserved(k) {
			continue
		}
		if props[k] == nil {
			t = t.SideEffect(__.Properties(k).Drop())
			continue
		}
		t = t.Property(gremlingo.Cardinality.Single, k, props[k])
	}
	res, err := t.ToList()
	if err != nil {
		return false, graph.Exec("updateVertex", err)
	}
	return len(res) > 0, nil
}

// ---------- reads ----------

func (e *GremlinEngine) FindByID(ctx context.Context, id graph.ID) (graph.Props, bool, error) {
	if !graph.ValidID(id) {
		return nil, false, ctx.Err()
	}
	return e.first(ctx, "findById", e.g.V(id))
}

func (e *GremlinEngine) FindAll(ctx context.Context, label string) ([]graph.Props, error) {
	return e.maps(ctx, "findAll", e.g.V().HasLabel(label))
}

func (e *GremlinEngine) FindPage(ctx context.Context, label string, limit, offset int) ([]graph.Props, error) {
	offset = max(offset, 0)
	hi := int64(-1)
	if limit > 0 {
		hi = int64(offset + limit)
	}
	return e.maps(ctx, "findPage", e.g.V().HasLabel(label).Range(int64(offset), hi))
}

func (e *GremlinEngine) FindByProperty(ctx context.Context, label, key string, value any) (graph.Props, bool, error) {
	return e.first(ctx, "findByProperty", e.g.V().HasLabel(label).Has(key, value).Limit(1))
}

func (e *GremlinEngine) FindByProperties(ctx context.Context, label string, filter graph.Props) ([]graph.Props, error) {
	return e.maps(ctx, "findByProperties", gHasAll(e.g.V().HasLabel(label), filter))
}

func (e *GremlinEngine) Exists(ctx context.Context, id graph.ID) (bool, error) {
	if !graph.ValidID(id) {
		return false, ctx.Err()
	}
	return e.hasNext(ctx, "exists", e.g.V(id))
}

func (e *GremlinEngine) ExistsByProperty(ctx context.Context, label, key string, value any) (bool, error) {
	return e.hasNext(ctx, "existsByProperty", e.g.V().HasLabel(label).Has(key, value))
}

func (e *GremlinEngine) Count(ctx context.Context, label string) (int64, error) {
	return e.count(ctx, "count", e.g.V().HasLabel(label))
}

func (e *GremlinEngine) CountAll(ctx context.Context) (int64, error) {
	return e.count(ctx, "countAll", e.g.V())
}

// ---------- edges ----------

func (e *GremlinEngine) LinkOrCreate(ctx context.Context, from, to graph.VertexMatch, edgeLabel string, edgeProps graph.Props) (graph.ID, error) {
	fromID, err := e.getOrCreate(ctx, from)
	if err != nil {
		return nil, err
	}
	toID, err := e.getOrCreate(ctx, to)
	if err != nil {
		return nil, err
	}
	t := gSetProps(e.g.V(fromID).AddE(edgeLabel).To(__.V(toID)), edgeProps)
	res, err := t.Id().Next()
	if err != nil {
		return nil, graph.Exec("linkOrCreate", err)
	}
	return res.GetInterface(), nil
}

// getOrCreate runs the fold/coalesce idiom: the first match, or a new vertex.
func (e *GremlinEngine) getOrCreate(ctx context.Context, m graph.VertexMatch) (graph.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	create := gSetProps(__.AddV(m.Label), m.Props)
	t := gHasAll(e.g.V().HasLabel(m.Label), m.Props).Limit(1).Fold().Coalesce(__.Unfold(), create).Id()
	res, err := t.Next()
	if err != nil {
		return nil, graph.Exec("getOrCreateVertex", err)
	}
	return res.GetInterface(), nil
}

func (e *GremlinEngine) AddEdge(ctx context.Context, from, to graph.ID, edgeLabel string, dir graph.Direction, props graph.Props) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, b := from, to
	if dir == graph.DirectionIn {
		a, b = to, from
	}
	t := gSetProps(e.g.V(a).AddE(edgeLabel).To(__.V(b)), props)
	if dir == graph.DirectionBoth {
		t = gSetProps(t.V(b).AddE(edgeLabel).To(__.V(a)), props)
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

func (e *GremlinEngine) AddEdges(ctx context.Context, from graph.ID, to []graph.ID, edgeLabel string, dir graph.Direction) error {
	for _, target := range to {
		if err := e.AddEdge(ctx, from, target, edgeLabel, dir, nil); err != nil {
			return err
		}
	}
	return nil
}

// ---------- traversal ----------

func (e *GremlinEngine) Traverse(ctx context.Context, anchor graph.VertexMatch, edgeLabel string, dir graph.Direction) ([]graph.Props, error) {
	t := gHasAll(e.g.V().HasLabel(anchor.Label), anchor.Props)
	return e.maps(ctx, "traverse", gHop(t, dir, edgeLabel).Dedup())
}

func (e *GremlinEngine) TraverseOutgoing(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error) {
	return e.traverseFrom(ctx, "traverseOutgoing", id, edgeLabel, graph.DirectionOut)
}

func (e *GremlinEngine) TraverseIncoming(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error) {
	return e.traverseFrom(ctx, "traverseIncoming", id, edgeLabel, graph.DirectionIn)
}

func (e *GremlinEngine) TraverseBoth(ctx context.Context, id graph.ID, edgeLabel string) ([]graph.Props, error) {
	return e.traverseFrom(ctx, "traverseBoth", id, edgeLabel, graph.DirectionBoth)
}

func (e *GremlinEngine) traverseFrom(ctx context.Context, op string, id graph.ID, edgeLabel string, dir graph.Direction) ([]graph.Props, error) {
	if !graph.ValidID(id) {
		return []graph.Props{}, ctx.Err()
	}
	return e.maps(ctx, op, gHop(e.g.V(id), dir, edgeLabel).Dedup())
}

func (e *GremlinEngine) TraverseWithDepth(ctx context.Context, id graph.ID, edgeLabel string, depth int) ([]graph.Props, error) {
	if !graph.ValidID(id) || depth <= 0 {
		return []graph.Props{}, ctx.Err()
	}
	t := e.g.V(id).Repeat(__.Out(gLabels(edgeLabel)...)).Emit().Times(int32(depth)).Dedup()
	return e.maps(ctx, "traverseWithDepth", t)
}

func (e *GremlinEngine) FindPath(ctx context.Context, from, to graph.ID, edgeLabel string, maxDepth int) ([]graph.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !graph.ValidID(from) || !graph.ValidID(to) || maxDepth <= 0 {
		return []graph.Path{}, nil
	}
	res, err := pathTraversal(e.g, from, to, edgeLabel, maxDepth).ToList()
	if err != nil {
		return nil, graph.Exec("findPath", err)
	}
	out := make([]graph.Path, 0, len(res))
	for _, r := range res {
		p, err := r.GetPath()
		if err != nil {
			return nil, graph.Exec("findPath", err)
		}
		out = append(out, pathFromObjects(p.Objects))
	}
	return out, nil
}

// pathTraversal walks simple outgoing paths of 1..maxDepth hops. Servers
// reject until() combined with times(), so the bound is times() and the
// target is collected with emit().
func pathTraversal(g *gremlingo.GraphTraversalSource, from, to graph.ID, edgeLabel string, maxDepth int) *gremlingo.GraphTraversal {
	return g.V(from).
		Repeat(__.OutE(gLabels(edgeLabel)...).InV().SimplePath()).
		Emit(__.HasId(to)).
		Times(int32(maxDepth)).
		HasId(to).
		Path().By(__.ElementMap())
}

func (e *GremlinEngine) CountEdges(ctx context.Context, id graph.ID, edgeLabel string) (int64, error) {
	if !graph.ValidID(id) {
		return 0, ctx.Err()
	}
	return e.count(ctx, "countEdges", e.g.V(id).BothE(gLabels(edgeLabel)...).Dedup())
}

// ---------- deletes ----------

func (e *GremlinEngine) Delete(ctx context.Context, id graph.ID) error {
	if !graph.ValidID(id) {
		return ctx.Err()
	}
	return e.iterate(ctx, "delete", e.g.V(id).Drop())
}

func (e *GremlinEngine) DeleteAll(ctx context.Context, label string) error {
	return e.iterate(ctx, "deleteAll", e.g.V().HasLabel(label).Drop())
}

func (e *GremlinEngine) DeleteByProperty(ctx context.Context, label, key string, value any) error {
	return e.iterate(ctx, "deleteByProperty", e.g.V().HasLabel(label).Has(key, value).Drop())
}

func (e *GremlinEngine) DeleteEdge(ctx context.Context, from, to graph.ID, edgeLabel string) error {
	if !graph.ValidID(from) || !graph.ValidID(to) {
		return ctx.Err()
	}
	t := e.g.V(from).OutE(gLabels(edgeLabel)...).As("e").InV().HasId(to).Select("e").Drop()
	return e.iterate(ctx, "deleteEdge", t)
}

func (e *GremlinEngine) DeleteEdgesIncident(ctx context.Context, id graph.ID, edgeLabel string) error {
	if !graph.ValidID(id) {
		return ctx.Err()
	}
	return e.iterate(ctx, "deleteEdgesIncident", e.g.V(id).BothE(gLabels(edgeLabel)...).Drop())
}

func (e *GremlinEngine) DeleteEdgesByLabel(ctx context.Context, edgeLabel string) error {
	return e.iterate(ctx, "deleteEdgesByLabel", e.g.E().HasLabel(edgeLabel).Drop())
}

func (e *GremlinEngine) EdgesByLabel(ctx context.Context, edgeLabel string) ([]graph.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := e.g.E()
	if edgeLabel != "" {
		t = t.HasLabel(edgeLabel)
	}
	res, err := t.ElementMap().ToList()
	if err != nil {
		return nil, graph.Exec("edgesByLabel", err)
	}
	out := make([]graph.Element, 0, len(res))
	for _, r := range res {
		out = append(out, elementFromMap(r.GetInterface()))
	}
	return out, nil
}

// ---------- helpers ----------

func (e *GremlinEngine) maps(ctx context.Context, op string, t *gremlingo.GraphTraversal) ([]graph.Props, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := t.ElementMap().ToList()
	if err != nil {
		return nil, graph.Exec(op, err)
	}
	out := make([]graph.Props, 0, len(res))
	for _, r := range res {
		out = append(out, propsFromMap(r.GetInterface()))
	}
	return out, nil
}

func (e *GremlinEngine) first(ctx context.Context, op string, t *gremlingo.GraphTraversal) (graph.Props, bool, error) {
	res, err := e.maps(ctx, op, t)
	if err != nil || len(res) == 0 {
		return nil, false, err
	}
	return res[0], true, nil
}

func (e *GremlinEngine) hasNext(ctx context.Context, op string, t *gremlingo.GraphTraversal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := t.HasNext()
	if err != nil {
		return false, graph.Exec(op, err)
	}
	return ok, nil
}

func (e *GremlinEngine) count(ctx context.Context, op string, t *gremlingo.GraphTraversal) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := t.Count().Next()
	if err != nil {
		return 0, graph.Exec(op, err)
	}
	n, err := res.GetInt64()
	if err != nil {
		return 0, graph.Exec(op, err)
	}
	return n, nil
}

func (e *GremlinEngine) iterate(ctx context.Context, op string, t *gremlingo.GraphTraversal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return graph.Exec(op, <-t.Iterate())
}

func gLabels(label string) []interface{} {
	labels := labelsOf(label)
	out := make([]interface{}, len(labels))
	for i, l := range labels {
		out[i] = l
	}
	return out
}

func gHasAll(t *gremlingo.GraphTraversal, filter graph.Props) *gremlingo.GraphTraversal {
	for _, k := range filter.Keys() {
		t = t.Has(k, filter[k])
	}
	return t
}

func gSetProps(t *gremlingo.GraphTraversal, props graph.Props) *gremlingo.GraphTraversal {
	for _, k := range props.Keys() {
		if graph.IsReserved(k) || props[k] == nil {
			continue
		}
		t = t.Property(k, props[k])
	}
	return t
}

func gHop(t *gremlingo.GraphTraversal, dir graph.Direction, edgeLabel string) *gremlingo.GraphTraversal {
	labels := gLabels(edgeLabel)
	switch dir {
	case graph.DirectionIn:
		return t.In(labels...)
	case graph.DirectionBoth:
		return t.Both(labels...)
	default:
		return t.Out(labels...)
	}
}

// propsFromMap converts an elementMap result. Keys arrive as strings or as
// the T.id / T.label tokens; both render to the reserved key names. Direction
// tokens decode to plain "IN"/"OUT" strings, so only the nested endpoint maps
// are dropped and scalar properties of those names survive.
func propsFromMap(v any) graph.Props {
	out := graph.Props{}
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return out
	}
	for k, val := range m {
		key := fmt.Sprint(k)
		if _, end := endpointOf(key, val); end {
			continue
		}
		out[key] = graph.NormalizeValue(val)
	}
	return out
}

// endpointOf reports whether key/val is an edge endpoint entry of an
// elementMap and returns the endpoint map.
func endpointOf(key string, val any) (map[interface{}]interface{}, bool) {
	if key != "IN" && key != "OUT" {
		return nil, false
	}
	end, ok := val.(map[interface{}]interface{})
	return end, ok
}

// elementFromMap classifies an elementMap as an edge when it carries the
// IN/OUT endpoint maps.
func elementFromMap(v any) graph.Element {
	m, _ := v.(map[interface{}]interface{})
	props := propsFromMap(v)
	el := graph.Element{Kind: graph.ElementVertex, ID: props.ID(), Label: props.Label(), Props: props.WithoutReserved()}
	for k, val := range m {
		key := fmt.Sprint(k)
		end, ok := endpointOf(key, val)
		if !ok {
			continue
		}
		switch key {
		case "OUT":
			el.Kind = graph.ElementEdge
			el.OutV = propsFromMap(end).ID()
		case "IN":
			el.Kind = graph.ElementEdge
			el.InV = propsFromMap(end).ID()
		}
	}
	return el
}

func pathFromObjects(objs []interface{}) graph.Path {
	out := make(graph.Path, 0, len(objs))
	for _, obj := range objs {
		out = append(out, elementFromMap(obj))
	}
	return out
}
