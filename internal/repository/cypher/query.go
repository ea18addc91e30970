package cypher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// ErrInvalidName is returned for labels and keys that cannot be quoted.
var ErrInvalidName = errors.New("cypher: invalid identifier")

// quote backtick-quotes a label or property key. Labels and keys are
// interpolated into statements, so anything that could escape the quoting is
// rejected.
func quote(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "`\x00\n\r") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return "`" + name + "`", nil
}

// params collects statement parameters as $p0, $p1, ...
type params map[string]any

func (p params) add(v any) string {
	name := fmt.Sprintf("p%d", len(p))
	p[name] = graph.NormalizeValue(v)
	return "$" + name
}

// storable returns the writable subset of props: no reserved or identity
// keys and no nil values.
func storable(props graph.Props) graph.Props {
	out := make(graph.Props, len(props))
	for k, v := range props {
		if graph.IsReserved(k) || k == KeyUID || v == nil {
			continue
		}
		out[k] = graph.NormalizeValue(v)
	}
	return out
}

// nodePattern renders (v) or (v:`label`).
func nodePattern(v, label string) (string, error) {
	if label == "" {
		return "(" + v + ")", nil
	}
	q, err := quote(label)
	if err != nil {
		return "", err
	}
	return "(" + v + ":" + q + ")", nil
}

// relPattern renders an edge pattern such as -[r:`knows`*1..3]-> for the
// direction. An empty label matches any edge; an empty hops string means a
// single hop.
func relPattern(v, label, hops string, dir graph.Direction) (string, error) {
	inner := v
	if label != "" {
		q, err := quote(label)
		if err != nil {
			return "", err
		}
		inner += ":" + q
	}
	inner += hops
	switch dir {
	case graph.DirectionIn:
		return "<-[" + inner + "]-", nil
	case graph.DirectionBoth:
		return "-[" + inner + "]-", nil
	default:
		return "-[" + inner + "]->", nil
	}
}

// conditions renders v.`k` = $pN for every filter entry in key order. A nil
// value matches an absent property.
func conditions(p params, v string, filter graph.Props) ([]string, error) {
	out := make([]string, 0, len(filter))
	for _, k := range filter.Keys() {
		q, err := quote(k)
		if err != nil {
			return nil, err
		}
		if filter[k] == nil {
			out = append(out, v+"."+q+" IS NULL")
			continue
		}
		out = append(out, v+"."+q+" = "+p.add(filter[k]))
	}
	return out, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// mapLiteral renders {`_uid`: $pN, `k`: $pM, ...} for a create statement.
func mapLiteral(p params, uid int64, props graph.Props) (string, error) {
	fields := []string{"`" + KeyUID + "`: " + p.add(uid)}
	for _, k := range props.Keys() {
		q, err := quote(k)
		if err != nil {
			return "", err
		}
		fields = append(fields, q+": "+p.add(props[k]))
	}
	return "{" + strings.Join(fields, ", ") + "}", nil
}

// pageClause renders SKIP/LIMIT literals. A limit <= 0 is unbounded.
func pageClause(limit, offset int) string {
	var b strings.Builder
	if offset > 0 {
		fmt.Fprintf(&b, " SKIP %d", offset)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}

// uidOf converts an identity argument into a stored identity. Integers and
// numeric strings are accepted; anything else cannot name a stored element
// and reports false.
func uidOf(id graph.ID) (int64, bool) {
	if !graph.ValidID(id) {
		return 0, false
	}
	return graph.ToInt64(id)
}

// storedUID decodes a KeyUID value read back from the store.
func storedUID(v any) graph.ID {
	if n, ok := graph.ToInt64(v); ok {
		return n
	}
	return v
}

// ---------- decoding ----------

// vertexProps turns a decoded Node into a raw vertex map carrying the
// identity and label under the reserved keys.
func vertexProps(v any) (graph.Props, error) {
	n, ok := v.(Node)
	if !ok {
		return nil, fmt.Errorf("cypher: expected node, got %T", v)
	}
	out := make(graph.Props, len(n.Props)+1)
	for k, val := range n.Props {
		if val == nil || k == KeyUID {
			continue
		}
		out[k] = val
	}
	out[graph.KeyID] = storedUID(n.Props[KeyUID])
	out[graph.KeyLabel] = n.Label
	return out, nil
}

func vertexElement(v any) (graph.Element, error) {
	m, err := vertexProps(v)
	if err != nil {
		return graph.Element{}, err
	}
	return graph.Element{
		Kind:  graph.ElementVertex,
		ID:    m.ID(),
		Label: m.Label(),
		Props: m.WithoutReserved(),
	}, nil
}

func edgeElement(v any, out, in graph.ID) (graph.Element, error) {
	r, ok := v.(Rel)
	if !ok {
		return graph.Element{}, fmt.Errorf("cypher: expected relationship, got %T", v)
	}
	props := make(graph.Props, len(r.Props))
	for k, val := range r.Props {
		if val == nil || k == KeyUID {
			continue
		}
		props[k] = val
	}
	return graph.Element{
		Kind:  graph.ElementEdge,
		ID:    storedUID(r.Props[KeyUID]),
		Label: r.Label,
		Props: props,
		OutV:  out,
		InV:   in,
	}, nil
}

// pathFromRow builds a path from a row of (start, end, nodes, rels). Stores
// differ on whether the node list of a variable-length match includes the
// endpoints; both forms are accepted.
func pathFromRow(row Record) (graph.Path, error) {
	if len(row) < 4 {
		return nil, fmt.Errorf("cypher: path row has %d columns", len(row))
	}
	nodes, _ := row[2].([]any)
	rels, _ := row[3].([]any)
	switch len(nodes) {
	case len(rels) + 1:
	case len(rels) - 1:
		nodes = append(append([]any{row[0]}, nodes...), row[1])
	default:
		return nil, fmt.Errorf("cypher: path with %d nodes and %d edges", len(nodes), len(rels))
	}

	vertices := make([]graph.Element, 0, len(nodes))
	for _, n := range nodes {
		el, err := vertexElement(n)
		if err != nil {
			return nil, err
		}
		vertices = append(vertices, el)
	}
	path := make(graph.Path, 0, len(nodes)+len(rels))
	for i, v := range vertices {
		path = append(path, v)
		if i == len(rels) {
			break
		}
		e, err := edgeElement(rels[i], v.ID, vertices[i+1].ID)
		if err != nil {
			return nil, err
		}
		path = append(path, e)
	}
	return path, nil
}

func firstInt(rows []Record) int64 {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0
	}
	n, _ := graph.ToInt64(rows[0][0])
	return n
}
