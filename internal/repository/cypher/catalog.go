package cypher

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// catalog mirrors the node and rel tables of a schema-ful store. It plans
// the DDL that makes a write possible and answers the Dialect catalogue
// questions without a round trip.
type catalog struct {
	mu    sync.RWMutex
	nodes map[string]map[string]string // label -> key -> column type
	rels  map[string]*relTable
}

type relTable struct {
	props map[string]string
	pairs map[[2]string]bool
}

func newCatalog() *catalog {
	return &catalog{
		nodes: make(map[string]map[string]string),
		rels:  make(map[string]*relTable),
	}
}

// columnType maps a normalized property value to a column type.
func columnType(v any) (string, error) {
	switch v.(type) {
	case string:
		return "STRING", nil
	case bool:
		return "BOOLEAN", nil
	case int64:
		return "INT64", nil
	case float64:
		return "DOUBLE", nil
	case time.Time:
		return "TIMESTAMP", nil
	case []byte:
		return "BLOB", nil
	default:
		return "", fmt.Errorf("cypher: unsupported property type %T", v)
	}
}

// planVertex returns the statements that make label and the keys of props
// writable, and a func recording their effect once they succeeded.
func (c *catalog) planVertex(label string, props graph.Props) ([]string, func(), error) {
	table, err := quote(label)
	if err != nil {
		return nil, nil, err
	}
	cols, err := columns(props)
	if err != nil {
		return nil, nil, err
	}

	c.mu.RLock()
	existing, ok := c.nodes[label]
	var missing []string
	for _, k := range sortedKeys(cols) {
		if _, have := existing[k]; !have {
			missing = append(missing, k)
		}
	}
	c.mu.RUnlock()

	var stmts []string
	if !ok {
		defs := []string{"`" + KeyUID + "` INT64"}
		for _, k := range missing {
			defs = append(defs, cols[k].quoted+" "+cols[k].typ)
		}
		defs = append(defs, "PRIMARY KEY(`"+KeyUID+"`)")
		stmts = append(stmts, fmt.Sprintf("CREATE NODE TABLE IF NOT EXISTS %s(%s)", table, strings.Join(defs, ", ")))
	} else {
		for _, k := range missing {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s %s", table, cols[k].quoted, cols[k].typ))
		}
	}
	commit := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.nodes[label] == nil {
			c.nodes[label] = map[string]string{KeyUID: "INT64"}
		}
		for _, k := range missing {
			c.nodes[label][k] = cols[k].typ
		}
	}
	return stmts, commit, nil
}

// planEdge is planVertex for a rel table connecting from to to.
func (c *catalog) planEdge(label, from, to string, props graph.Props) ([]string, func(), error) {
	table, err := quote(label)
	if err != nil {
		return nil, nil, err
	}
	src, err := quote(from)
	if err != nil {
		return nil, nil, err
	}
	dst, err := quote(to)
	if err != nil {
		return nil, nil, err
	}
	cols, err := columns(props)
	if err != nil {
		return nil, nil, err
	}
	pair := [2]string{from, to}

	c.mu.RLock()
	existing, ok := c.rels[label]
	var missing []string
	hasPair := false
	if ok {
		hasPair = existing.pairs[pair]
	}
	for _, k := range sortedKeys(cols) {
		if !ok || existing.props[k] == "" {
			missing = append(missing, k)
		}
	}
	c.mu.RUnlock()

	var stmts []string
	if !ok {
		defs := []string{fmt.Sprintf("FROM %s TO %s", src, dst), "`" + KeyUID + "` INT64"}
		for _, k := range missing {
			defs = append(defs, cols[k].quoted+" "+cols[k].typ)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE REL TABLE IF NOT EXISTS %s(%s)", table, strings.Join(defs, ", ")))
	} else {
		if !hasPair {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD FROM %s TO %s", table, src, dst))
		}
		for _, k := range missing {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s %s", table, cols[k].quoted, cols[k].typ))
		}
	}
	commit := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		rt := c.rels[label]
		if rt == nil {
			rt = &relTable{props: map[string]string{KeyUID: "INT64"}, pairs: make(map[[2]string]bool)}
			c.rels[label] = rt
		}
		rt.pairs[pair] = true
		for _, k := range missing {
			rt.props[k] = cols[k].typ
		}
	}
	return stmts, commit, nil
}

func (c *catalog) hasVertexLabel(label string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if label == "" {
		return len(c.nodes) > 0
	}
	_, ok := c.nodes[label]
	return ok
}

func (c *catalog) hasEdgeLabel(label string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if label == "" {
		return len(c.rels) > 0
	}
	_, ok := c.rels[label]
	return ok
}

func (c *catalog) hasProperty(label, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if label != "" {
		_, ok := c.nodes[label][key]
		return ok
	}
	for _, cols := range c.nodes {
		if _, ok := cols[key]; ok {
			return true
		}
	}
	return false
}

// accepts reports whether the column for key can hold value. Equality never
// crosses column types, so a filter value of another kind cannot match.
// Columns of a type this package does not create accept anything.
func (c *catalog) accepts(label, key string, value any) bool {
	if value == nil {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if label != "" {
		return columnAccepts(c.nodes[label][key], value)
	}
	for _, cols := range c.nodes {
		if columnAccepts(cols[key], value) {
			return true
		}
	}
	return false
}

func columnAccepts(typ string, value any) bool {
	have := canonicalType(typ)
	if have == "" {
		return true
	}
	want, err := columnType(graph.NormalizeValue(value))
	return err == nil && want == have
}

// canonicalType maps the column types reported by the store onto those
// columnType produces, or "" for types outside that set.
func canonicalType(typ string) string {
	switch t := strings.ToUpper(typ); t {
	case "BOOL", "BOOLEAN":
		return "BOOLEAN"
	case "STRING", "INT64", "DOUBLE", "TIMESTAMP", "BLOB":
		return t
	default:
		return ""
	}
}

// ---------- loading ----------

// queryFunc runs a catalogue statement and returns its rows.
type queryFunc func(stmt string) ([]Record, error)

// load replaces the catalogue with the tables the store reports.
func (c *catalog) load(q queryFunc) error {
	tables, err := q("CALL SHOW_TABLES() RETURN name, type")
	if err != nil {
		return fmt.Errorf("cypher: load catalog: %w", err)
	}
	nodes := make(map[string]map[string]string)
	rels := make(map[string]*relTable)
	for _, row := range tables {
		name, kind := graph.ToString(row[0]), strings.ToUpper(graph.ToString(row[1]))
		info, err := q(fmt.Sprintf("CALL TABLE_INFO('%s') RETURN name, type", literal(name)))
		if err != nil {
			return fmt.Errorf("cypher: load catalog: %s: %w", name, err)
		}
		cols := make(map[string]string, len(info))
		for _, col := range info {
			cols[graph.ToString(col[0])] = graph.ToString(col[1])
		}
		switch kind {
		case "NODE":
			nodes[name] = cols
		case "REL":
			conns, err := q(fmt.Sprintf("CALL SHOW_CONNECTION('%s') RETURN *", literal(name)))
			if err != nil {
				return fmt.Errorf("cypher: load catalog: %s: %w", name, err)
			}
			rt := &relTable{props: cols, pairs: make(map[[2]string]bool, len(conns))}
			for _, conn := range conns {
				if len(conn) >= 2 {
					rt.pairs[[2]string{graph.ToString(conn[0]), graph.ToString(conn[1])}] = true
				}
			}
			rels[name] = rt
		}
	}

	c.mu.Lock()
	c.nodes, c.rels = nodes, rels
	c.mu.Unlock()
	return nil
}

// ---------- helpers ----------

type column struct {
	quoted string
	typ    string
}

func columns(props graph.Props) (map[string]column, error) {
	out := make(map[string]column, len(props))
	for k, v := range storable(props) {
		q, err := quote(k)
		if err != nil {
			return nil, err
		}
		typ, err := columnType(v)
		if err != nil {
			return nil, fmt.Errorf("%w (key %q)", err, k)
		}
		out[k] = column{quoted: q, typ: typ}
	}
	return out, nil
}

func sortedKeys(m map[string]column) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// literal escapes a string for a single-quoted statement literal.
func literal(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}
