package graph

import (
	"fmt"
	"sort"
	"strings"
)

// --- Reserved keys ---

// Raw vertex maps carry the element identity and label under these keys, the
// way a Gremlin element map does. Entity property extraction never emits them.
const (
	KeyID    = "id"
	KeyLabel = "label"
)

// IsReserved reports whether key is one of the reserved element-map keys.
func IsReserved(key string) bool {
	return key == KeyID || key == KeyLabel
}

// --- Enums ---

// Direction selects which edges a relation or traversal follows.
type Direction string

const (
	DirectionOut  Direction = "OUT"
	DirectionIn   Direction = "IN"
	DirectionBoth Direction = "BOTH"
)

// ParseDirection converts a case-insensitive name into a Direction.
// An empty string yields DirectionOut.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "OUT", "OUTGOING":
		return DirectionOut, nil
	case "IN", "INCOMING":
		return DirectionIn, nil
	case "BOTH":
		return DirectionBoth, nil
	default:
		return "", fmt.Errorf("graph: unknown direction %q", s)
	}
}

// ElementKind distinguishes vertices from edges inside a Path.
type ElementKind string

const (
	ElementVertex ElementKind = "vertex"
	ElementEdge   ElementKind = "edge"
)

// --- Models ---

// ID is a backend-assigned element identity. Memory graphs use int64, Gremlin
// servers use whatever the provider assigns, Cypher backends use uuid strings.
type ID = any

// ValidID reports whether id has a type usable as an element identity.
func ValidID(id ID) bool {
	switch id.(type) {
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// SameID compares two identities across numeric/string representations.
func SameID(a, b ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return ToString(a) == ToString(b)
}

// Props is a property bag. Keys are unique; iteration order is not semantic,
// so callers that need determinism use Keys.
type Props map[string]any

// Keys returns the property keys in sorted order.
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (p Props) Clone() Props {
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// WithoutReserved returns a copy without the id and label keys.
func (p Props) WithoutReserved() Props {
	out := make(Props, len(p))
	for k, v := range p {
		if IsReserved(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// ID returns the identity stored under KeyID, or nil.
func (p Props) ID() ID {
	return p[KeyID]
}

// Label returns the label stored under KeyLabel, or "".
func (p Props) Label() string {
	if l, ok := p[KeyLabel].(string); ok {
		return l
	}
	return ""
}

// VertexMatch identifies a vertex by label and exact property equality.
// It is the endpoint description used by get-or-create linking.
type VertexMatch struct {
	Label string `json:"label"`
	Props Props  `json:"props,omitempty"`
}

// Element is one vertex or edge as it appears in a path or edge listing.
// OutV and InV are set for edges only.
type Element struct {
	Kind  ElementKind `json:"kind"`
	ID    ID          `json:"id"`
	Label string      `json:"label"`
	Props Props       `json:"props,omitempty"`
	OutV  ID          `json:"outV,omitempty"`
	InV   ID          `json:"inV,omitempty"`
}

// Path is a flat sequence alternating vertex, edge, vertex, ...
type Path []Element

// Hops returns the number of edges in the path.
func (p Path) Hops() int {
	n := 0
	for _, e := range p {
		if e.Kind == ElementEdge {
			n++
		}
	}
	return n
}

// Vertices returns the vertex elements of the path in order.
func (p Path) Vertices() []Element {
	out := make([]Element, 0, len(p)/2+1)
	for _, e := range p {
		if e.Kind == ElementVertex {
			out = append(out, e)
		}
	}
	return out
}

// Simple reports whether no vertex appears twice in the path.
func (p Path) Simple() bool {
	seen := make(map[string]bool, len(p))
	for _, v := range p.Vertices() {
		key := ToString(v.ID)
		if seen[key] {
			return false
		}
		seen[key] = true
	}
	return true
}

// Stats summarizes a graph.
type Stats struct {
	VertexCount int64            `json:"vertexCount"`
	ByLabel     map[string]int64 `json:"byLabel,omitempty"`
}
