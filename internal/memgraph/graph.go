// Package memgraph is an in-process property graph driven by traversal
// steps. It backs the traversal engine in tests and single-process
// deployments, and mirrors the step vocabulary of a Gremlin server closely
// enough that the same query shapes run against both.
package memgraph

import (
	"errors"
	"sync"

	"github.com/dusk-indust/graphogm/internal/graph"
)

var (
	// ErrConflict is returned by Commit when the graph changed after Begin.
	ErrConflict = errors.New("memgraph: transaction conflict")

	// ErrTxClosed is returned when a closed transaction is used.
	ErrTxClosed = errors.New("memgraph: transaction closed")

	// ErrNoResult is returned by Next on an empty traversal.
	ErrNoResult = errors.New("memgraph: traversal produced no result")

	// ErrLoopLimit stops repeat steps that never terminate.
	ErrLoopLimit = errors.New("memgraph: repeat loop limit exceeded")
)

// Vertex is a snapshot of a stored vertex.
type Vertex struct {
	ID    int64
	Label string
	Props graph.Props
}

// Edge is a snapshot of a stored edge. Out is the tail, In the head.
type Edge struct {
	ID    int64
	Label string
	Out   int64
	In    int64
	Props graph.Props
}

// Path is the sequence of vertices and edges a traverser walked.
type Path []any

// store is the mutable graph state. All access goes through a storeRef that
// holds the appropriate lock.
type store struct {
	nextID   int64
	version  uint64
	vertices map[int64]*Vertex
	edges    map[int64]*Edge
	vorder   []int64
	eorder   []int64
	outE     map[int64][]int64
	inE      map[int64][]int64

	// undo holds the inverse of every mutation of the write in flight.
	undo []func()
}

func newStore() *store {
	return &store{
		vertices: make(map[int64]*Vertex),
		edges:    make(map[int64]*Edge),
		outE:     make(map[int64][]int64),
		inE:      make(map[int64][]int64),
	}
}

// clone deep-copies the store for a transaction working copy. The undo
// journal is not copied.
func (s *store) clone() *store {
	c := &store{
		nextID:   s.nextID,
		version:  s.version,
		vertices: make(map[int64]*Vertex, len(s.vertices)),
		edges:    make(map[int64]*Edge, len(s.edges)),
		vorder:   append([]int64(nil), s.vorder...),
		eorder:   append([]int64(nil), s.eorder...),
		outE:     make(map[int64][]int64, len(s.outE)),
		inE:      make(map[int64][]int64, len(s.inE)),
	}
	for id, v := range s.vertices {
		c.vertices[id] = &Vertex{ID: v.ID, Label: v.Label, Props: v.Props.Clone()}
	}
	for id, e := range s.edges {
		c.edges[id] = &Edge{ID: e.ID, Label: e.Label, Out: e.Out, In: e.In, Props: e.Props.Clone()}
	}
	for id, ids := range s.outE {
		c.outE[id] = append([]int64(nil), ids...)
	}
	for id, ids := range s.inE {
		c.inE[id] = append([]int64(nil), ids...)
	}
	return c
}

// Mutations change the store in place and journal their inverse. Slices are
// never written below their length, so a saved slice header restores the
// previous contents.

func (s *store) journal(fn func()) { s.undo = append(s.undo, fn) }

// revert undoes the write in flight, newest mutation first.
func (s *store) revert() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.settle()
}

// settle keeps the write in flight.
func (s *store) settle() {
	clear(s.undo)
	s.undo = s.undo[:0]
}

func (s *store) addVertex(label string) *Vertex {
	prevID, prevOrder := s.nextID, s.vorder
	s.nextID++
	v := &Vertex{ID: s.nextID, Label: label, Props: graph.Props{}}
	s.vertices[v.ID] = v
	s.vorder = append(s.vorder, v.ID)
	s.journal(func() {
		delete(s.vertices, v.ID)
		s.vorder = prevOrder
		s.nextID = prevID
	})
	return v
}

func (s *store) addEdge(label string, out, in int64) *Edge {
	prevID, prevOrder := s.nextID, s.eorder
	prevOut, prevIn := s.outE[out], s.inE[in]
	s.nextID++
	e := &Edge{ID: s.nextID, Label: label, Out: out, In: in, Props: graph.Props{}}
	s.edges[e.ID] = e
	s.eorder = append(s.eorder, e.ID)
	s.outE[out] = append(s.outE[out], e.ID)
	s.inE[in] = append(s.inE[in], e.ID)
	s.journal(func() {
		delete(s.edges, e.ID)
		s.eorder = prevOrder
		restoreAdjacency(s.outE, out, prevOut)
		restoreAdjacency(s.inE, in, prevIn)
		s.nextID = prevID
	})
	return e
}

func (s *store) dropEdge(id int64) {
	e, ok := s.edges[id]
	if !ok {
		return
	}
	prevOrder, prevOut, prevIn := s.eorder, s.outE[e.Out], s.inE[e.In]
	delete(s.edges, id)
	s.eorder = without(s.eorder, id)
	s.outE[e.Out] = without(s.outE[e.Out], id)
	s.inE[e.In] = without(s.inE[e.In], id)
	s.journal(func() {
		s.edges[id] = e
		s.eorder = prevOrder
		restoreAdjacency(s.outE, e.Out, prevOut)
		restoreAdjacency(s.inE, e.In, prevIn)
	})
}

// dropVertex removes the vertex and every incident edge.
func (s *store) dropVertex(id int64) {
	v, ok := s.vertices[id]
	if !ok {
		return
	}
	incident := append(append([]int64(nil), s.outE[id]...), s.inE[id]...)
	for _, eid := range incident {
		s.dropEdge(eid)
	}
	prevOrder, prevOut, prevIn := s.vorder, s.outE[id], s.inE[id]
	delete(s.vertices, id)
	delete(s.outE, id)
	delete(s.inE, id)
	s.vorder = without(s.vorder, id)
	s.journal(func() {
		s.vertices[id] = v
		s.vorder = prevOrder
		restoreAdjacency(s.outE, id, prevOut)
		restoreAdjacency(s.inE, id, prevIn)
	})
}

// setProperty sets key on props. A nil value removes the key.
func (s *store) setProperty(props graph.Props, key string, value any) {
	old, had := props[key]
	if value == nil {
		delete(props, key)
	} else {
		props[key] = graph.NormalizeValue(value)
	}
	s.journal(func() {
		if had {
			props[key] = old
		} else {
			delete(props, key)
		}
	})
}

func restoreAdjacency(adj map[int64][]int64, id int64, ids []int64) {
	if ids == nil {
		delete(adj, id)
		return
	}
	adj[id] = ids
}

func without(ids []int64, id int64) []int64 {
	for i, x := range ids {
		if x == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// storeRef gives a traversal locked access to some store: the live graph or a
// transaction's working copy.
type storeRef interface {
	read(fn func(*store) error) error
	write(fn func(*store) error) error
}

// Graph is a thread-safe in-memory graph. Traversals obtained from
// Traversal() auto-commit; Tx() opens an isolated working copy.
type Graph struct {
	mu sync.RWMutex
	s  *store
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{s: newStore()}
}

// Traversal returns an auto-committing traversal source over the live graph.
func (g *Graph) Traversal() *Source {
	return &Source{ref: g}
}

// Tx returns a new, not yet begun, transaction.
func (g *Graph) Tx() *Tx {
	return &Tx{g: g}
}

// Version increments on every committed mutation.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.version
}

func (g *Graph) read(fn func(*store) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.s)
}

// write mutates the live store in place. A failing traversal is reverted
// from the journal and leaves no trace.
func (g *Graph) write(fn func(*store) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := fn(g.s); err != nil {
		g.s.revert()
		return err
	}
	g.s.settle()
	g.s.version++
	return nil
}
