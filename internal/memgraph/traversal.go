package memgraph

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// maxLoops bounds repeat steps that have neither Times nor a reachable Until.
const maxLoops = 1 << 12

// Source starts traversals against the live graph or a transaction.
type Source struct {
	ref storeRef
}

// V starts at the vertices with the given ids, or all vertices.
func (s *Source) V(ids ...any) *Traversal { return (&Traversal{ref: s.ref}).V(ids...) }

// E starts at the edges with the given ids, or all edges.
func (s *Source) E(ids ...any) *Traversal { return (&Traversal{ref: s.ref}).E(ids...) }

// AddV starts by creating a vertex.
func (s *Source) AddV(label string) *Traversal { return (&Traversal{ref: s.ref}).AddV(label) }

// AddE starts by creating an edge; From and To select the endpoints.
func (s *Source) AddE(label string) *Traversal { return (&Traversal{ref: s.ref}).AddE(label) }

// Anon returns an anonymous traversal for use inside Repeat, Until, From and
// To. It cannot be iterated on its own.
func Anon() *Traversal { return &Traversal{} }

type traverser struct {
	obj    any
	path   []any
	labels map[string]any
}

// move advances to an element and records it in the path.
func (t *traverser) move(obj any) *traverser {
	p := make([]any, len(t.path), len(t.path)+1)
	copy(p, t.path)
	p = append(p, obj)
	return &traverser{obj: obj, path: p, labels: t.labels}
}

// with replaces the current object without extending the path.
func (t *traverser) with(obj any) *traverser {
	return &traverser{obj: obj, path: t.path, labels: t.labels}
}

type step func(s *store, in []*traverser) ([]*traverser, error)

// Traversal is a chain of steps executed eagerly at a terminal step.
type Traversal struct {
	ref     storeRef
	steps   []step
	mutates bool
	err     error

	repeat *repeatConfig
	addE   *addEConfig
}

func (t *Traversal) add(fn step) *Traversal {
	t.steps = append(t.steps, fn)
	return t
}

func (t *Traversal) fail(format string, args ...any) *Traversal {
	if t.err == nil {
		t.err = fmt.Errorf("memgraph: "+format, args...)
	}
	return t
}

func (t *Traversal) run(s *store, in []*traverser) ([]*traverser, error) {
	if t.err != nil {
		return nil, t.err
	}
	cur := in
	for _, st := range t.steps {
		next, err := st(s, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// ---------- start and mutation steps ----------

// V emits the vertices with the given ids, in the order asked, or every
// vertex in insertion order. Ids without an integer form match nothing.
func (t *Traversal) V(ids ...any) *Traversal {
	wanted, filtered := idList(ids)
	return t.add(func(s *store, in []*traverser) ([]*traverser, error) {
		var out []*traverser
		for _, tr := range in {
			if filtered {
				for _, id := range wanted {
					if v, ok := s.vertices[id]; ok {
						out = append(out, tr.move(v))
					}
				}
				continue
			}
			for _, id := range s.vorder {
				out = append(out, tr.move(s.vertices[id]))
			}
		}
		return out, nil
	})
}

// E emits edges the same way V emits vertices.
func (t *Traversal) E(ids ...any) *Traversal {
	wanted, filtered := idList(ids)
	return t.add(func(s *store, in []*traverser) ([]*traverser, error) {
		var out []*traverser
		for _, tr := range in {
			if filtered {
				for _, id := range wanted {
					if e, ok := s.edges[id]; ok {
						out = append(out, tr.move(e))
					}
				}
				continue
			}
			for _, id := range s.eorder {
				out = append(out, tr.move(s.edges[id]))
			}
		}
		return out, nil
	})
}

// AddV creates one vertex per incoming traverser.
func (t *Traversal) AddV(label string) *Traversal {
	t.mutates = true
	return t.add(func(s *store, in []*traverser) ([]*traverser, error) {
		out := make([]*traverser, 0, len(in))
		for _, tr := range in {
			out = append(out, tr.move(s.addVertex(label)))
		}
		return out, nil
	})
}

type addEConfig struct {
	from *Traversal
	to   *Traversal
}

// AddE creates one edge per incoming traverser. Without From the current
// vertex is the tail; without To it is the head.
func (t *Traversal) AddE(label string) *Traversal {
	t.mutates = true
	cfg := &addEConfig{}
	t.addE = cfg
	return t.add(func(s *store, in []*traverser) ([]*traverser, error) {
		if cfg.from == nil && cfg.to == nil {
			return nil, errors.New("memgraph: addE requires from() or to()")
		}
		out := make([]*traverser, 0, len(in))
		for _, tr := range in {
			cur, _ := tr.obj.(*Vertex)
			outV, inV := cur, cur
			if cfg.from != nil {
				v, err := firstVertex(s, cfg.from, tr)
				if err != nil {
					return nil, err
				}
				outV = v
			}
			if cfg.to != nil {
				v, err := firstVertex(s, cfg.to, tr)
				if err != nil {
					return nil, err
				}
				inV = v
			}
			if outV == nil || inV == nil {
				return nil, fmt.Errorf("memgraph: addE(%s): endpoint vertex not found", label)
			}
			out = append(out, tr.move(s.addEdge(label, outV.ID, inV.ID)))
		}
		return out, nil
	})
}

// From sets the tail of the preceding AddE.
func (t *Traversal) From(sub *Traversal) *Traversal {
	if t.addE == nil {
		return t.fail("from() without addE()")
	}
	t.addE.from = sub
	return t
}

// To sets the head of the preceding AddE.
func (t *Traversal) To(sub *Traversal) *Traversal {
	if t.addE == nil {
		return t.fail("to() without addE()")
	}
	t.addE.to = sub
	return t
}

func firstVertex(s *store, sub *Traversal, tr *traverser) (*Vertex, error) {
	res, err := sub.run(s, []*traverser{tr})
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		if v, ok := r.obj.(*Vertex); ok {
			return v, nil
		}
	}
	return nil, nil
}

// Property sets key on the current element. A nil value removes the key.
func (t *Traversal) Property(key string, value any) *Traversal {
	t.mutates = true
	return t.add(func(s *store, in []*traverser) ([]*traverser, error) {
		for _, tr := range in {
			props, ok := propsOf(tr.obj)
			if !ok {
				return nil, fmt.Errorf("memgraph: property(%s) on %T", key, tr.obj)
			}
			s.setProperty(props, key, value)
		}
		return in, nil
	})
}

// Drop removes the current elements. Dropping a vertex drops its edges.
func (t *Traversal) Drop() *Traversal {
	t.mutates = true
	return t.add(func(s *store, in []*traverser) ([]*traverser, error) {
		for _, tr := range in {
			switch el := tr.obj.(type) {
			case *Vertex:
				s.dropVertex(el.ID)
			case *Edge:
				s.dropEdge(el.ID)
			default:
				return nil, fmt.Errorf("memgraph: drop() on %T", tr.obj)
			}
		}
		return nil, nil
	})
}

// ---------- filters ----------

func (t *Traversal) filter(keep func(tr *traverser) bool) *Traversal {
	return t.add(func(_ *store, in []*traverser) ([]*traverser, error) {
		out := in[:0:0]
		for _, tr := range in {
			if keep(tr) {
				out = append(out, tr)
			}
		}
		return out, nil
	})
}

// HasLabel keeps elements whose label is one of labels.
func (t *Traversal) HasLabel(labels ...string) *Traversal {
	return t.filter(func(tr *traverser) bool {
		l, ok := labelOf(tr.obj)
		return ok && contains(labels, l)
	})
}

// Has keeps elements whose property key equals value.
func (t *Traversal) Has(key string, value any) *Traversal {
	return t.filter(func(tr *traverser) bool {
		props, ok := propsOf(tr.obj)
		if !ok {
			return false
		}
		got, present := props[key]
		return present && valuesEqual(got, value)
	})
}

// HasID keeps elements whose id is one of ids.
func (t *Traversal) HasID(ids ...any) *Traversal {
	wanted, _ := idList(ids)
	return t.filter(func(tr *traverser) bool {
		id, ok := idOf(tr.obj)
		if !ok {
			return false
		}
		for _, w := range wanted {
			if w == id {
				return true
			}
		}
		return false
	})
}

// Dedup drops traversers whose current object was already seen.
func (t *Traversal) Dedup() *Traversal {
	return t.add(func(_ *store, in []*traverser) ([]*traverser, error) {
		seen := make(map[string]bool, len(in))
		out := in[:0:0]
		for _, tr := range in {
			k := objKey(tr.obj)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, tr)
		}
		return out, nil
	})
}

// SimplePath drops traversers whose path revisits an element.
func (t *Traversal) SimplePath() *Traversal {
	return t.filter(func(tr *traverser) bool {
		seen := make(map[string]bool, len(tr.path))
		for _, el := range tr.path {
			k := objKey(el)
			if seen[k] {
				return false
			}
			seen[k] = true
		}
		return true
	})
}

// Range keeps traversers lo (inclusive) through hi (exclusive). A negative hi
// means no upper bound.
func (t *Traversal) Range(lo, hi int) *Traversal {
	return t.add(func(_ *store, in []*traverser) ([]*traverser, error) {
		start := max(lo, 0)
		if start >= len(in) {
			return nil, nil
		}
		end := len(in)
		if hi >= 0 && hi < end {
			end = hi
		}
		if end <= start {
			return nil, nil
		}
		return in[start:end], nil
	})
}

// Limit keeps the first n traversers.
func (t *Traversal) Limit(n int) *Traversal { return t.Range(0, n) }

// ---------- navigation ----------

func (t *Traversal) walk(fn func(s *store, tr *traverser) []any) *Traversal {
	return t.add(func(s *store, in []*traverser) ([]*traverser, error) {
		var out []*traverser
		for _, tr := range in {
			for _, obj := range fn(s, tr) {
				out = append(out, tr.move(obj))
			}
		}
		return out, nil
	})
}

func (t *Traversal) adjacent(outgoing, incoming bool, labels []string, vertices bool) *Traversal {
	return t.walk(func(s *store, tr *traverser) []any {
		v, ok := tr.obj.(*Vertex)
		if !ok {
			return nil
		}
		var res []any
		if outgoing {
			for _, eid := range s.outE[v.ID] {
				e := s.edges[eid]
				if len(labels) > 0 && !contains(labels, e.Label) {
					continue
				}
				if vertices {
					res = append(res, s.vertices[e.In])
				} else {
					res = append(res, e)
				}
			}
		}
		if incoming {
			for _, eid := range s.inE[v.ID] {
				e := s.edges[eid]
				if len(labels) > 0 && !contains(labels, e.Label) {
					continue
				}
				if vertices {
					res = append(res, s.vertices[e.Out])
				} else {
					res = append(res, e)
				}
			}
		}
		return res
	})
}

// Out moves to adjacent vertices along outgoing edges.
func (t *Traversal) Out(labels ...string) *Traversal { return t.adjacent(true, false, labels, true) }

// In moves to adjacent vertices along incoming edges.
func (t *Traversal) In(labels ...string) *Traversal { return t.adjacent(false, true, labels, true) }

// Both moves to adjacent vertices in either direction.
func (t *Traversal) Both(labels ...string) *Traversal { return t.adjacent(true, true, labels, true) }

// OutE moves to outgoing edges.
func (t *Traversal) OutE(labels ...string) *Traversal { return t.adjacent(true, false, labels, false) }

// InE moves to incoming edges.
func (t *Traversal) InE(labels ...string) *Traversal { return t.adjacent(false, true, labels, false) }

// BothE moves to incident edges. A self-loop appears once per end.
func (t *Traversal) BothE(labels ...string) *Traversal {
	return t.adjacent(true, true, labels, false)
}

// OutV moves from an edge to its tail.
func (t *Traversal) OutV() *Traversal {
	return t.walk(func(s *store, tr *traverser) []any {
		if e, ok := tr.obj.(*Edge); ok {
			return []any{s.vertices[e.Out]}
		}
		return nil
	})
}

// InV moves from an edge to its head.
func (t *Traversal) InV() *Traversal {
	return t.walk(func(s *store, tr *traverser) []any {
		if e, ok := tr.obj.(*Edge); ok {
			return []any{s.vertices[e.In]}
		}
		return nil
	})
}

// OtherV moves from an edge to the endpoint the traverser did not come from.
func (t *Traversal) OtherV() *Traversal {
	return t.walk(func(s *store, tr *traverser) []any {
		e, ok := tr.obj.(*Edge)
		if !ok {
			return nil
		}
		var prev *Vertex
		for i := len(tr.path) - 2; i >= 0; i-- {
			if v, ok := tr.path[i].(*Vertex); ok {
				prev = v
				break
			}
		}
		if prev != nil && prev.ID == e.In {
			return []any{s.vertices[e.Out]}
		}
		return []any{s.vertices[e.In]}
	})
}

// As labels the current object for a later Select.
func (t *Traversal) As(label string) *Traversal {
	return t.add(func(_ *store, in []*traverser) ([]*traverser, error) {
		out := make([]*traverser, 0, len(in))
		for _, tr := range in {
			labels := make(map[string]any, len(tr.labels)+1)
			for k, v := range tr.labels {
				labels[k] = v
			}
			labels[label] = tr.obj
			out = append(out, &traverser{obj: tr.obj, path: tr.path, labels: labels})
		}
		return out, nil
	})
}

// Select replaces the current object with the one labeled by As.
func (t *Traversal) Select(label string) *Traversal {
	return t.add(func(_ *store, in []*traverser) ([]*traverser, error) {
		var out []*traverser
		for _, tr := range in {
			if obj, ok := tr.labels[label]; ok {
				out = append(out, tr.with(obj))
			}
		}
		return out, nil
	})
}

// ---------- repeat ----------

type repeatConfig struct {
	body   *Traversal
	times  int
	emit   bool
	emitIf *Traversal
	until  *Traversal
}

// Repeat runs body in a loop. Times, Emit and Until modulate the loop the way
// they do in Gremlin when written after repeat().
func (t *Traversal) Repeat(body *Traversal) *Traversal {
	cfg := &repeatConfig{body: body}
	t.repeat = cfg
	return t.add(func(s *store, in []*traverser) ([]*traverser, error) {
		var out []*traverser
		cur := in
		for iter := 1; len(cur) > 0; iter++ {
			if cfg.times <= 0 && iter > maxLoops {
				return nil, ErrLoopLimit
			}
			next, err := cfg.body.run(s, cur)
			if err != nil {
				return nil, err
			}
			var cont []*traverser
			for _, tr := range next {
				if cfg.times > 0 && iter >= cfg.times {
					out = append(out, tr)
					continue
				}
				if cfg.until != nil {
					hit, err := cfg.until.run(s, []*traverser{tr})
					if err != nil {
						return nil, err
					}
					if len(hit) > 0 {
						out = append(out, tr)
						continue
					}
				}
				if cfg.emit {
					emit := true
					if cfg.emitIf != nil {
						hit, err := cfg.emitIf.run(s, []*traverser{tr})
						if err != nil {
							return nil, err
						}
						emit = len(hit) > 0
					}
					if emit {
						out = append(out, tr)
					}
				}
				cont = append(cont, tr)
			}
			cur = cont
		}
		return out, nil
	})
}

// Times caps the preceding Repeat at n iterations. It cannot be combined
// with Until; bound an Until loop with Emit and Times instead.
func (t *Traversal) Times(n int) *Traversal {
	if t.repeat == nil {
		return t.fail("times() without repeat()")
	}
	if t.repeat.until != nil {
		return t.fail("times() after until()")
	}
	t.repeat.times = n
	return t
}

// Emit makes the preceding Repeat output every intermediate traverser, or
// only those on which cond produces a result.
func (t *Traversal) Emit(cond ...*Traversal) *Traversal {
	if t.repeat == nil {
		return t.fail("emit() without repeat()")
	}
	if len(cond) > 1 {
		return t.fail("emit() takes at most one condition")
	}
	t.repeat.emit = true
	if len(cond) == 1 {
		t.repeat.emitIf = cond[0]
	}
	return t
}

// Until ends the loop for traversers on which cond produces a result.
func (t *Traversal) Until(cond *Traversal) *Traversal {
	if t.repeat == nil {
		return t.fail("until() without repeat()")
	}
	if t.repeat.times > 0 {
		return t.fail("until() after times()")
	}
	t.repeat.until = cond
	return t
}

// ---------- projections ----------

// Path replaces the current object with a snapshot of the walked path.
func (t *Traversal) Path() *Traversal {
	return t.add(func(_ *store, in []*traverser) ([]*traverser, error) {
		out := make([]*traverser, 0, len(in))
		for _, tr := range in {
			p := make(Path, 0, len(tr.path))
			for _, el := range tr.path {
				p = append(p, snapshot(el))
			}
			out = append(out, tr.with(p))
		}
		return out, nil
	})
}

// ElementMap replaces elements with their property map plus id and label.
func (t *Traversal) ElementMap() *Traversal {
	return t.add(func(_ *store, in []*traverser) ([]*traverser, error) {
		out := make([]*traverser, 0, len(in))
		for _, tr := range in {
			props, ok := propsOf(tr.obj)
			if !ok {
				return nil, fmt.Errorf("memgraph: elementMap() on %T", tr.obj)
			}
			m := props.Clone()
			id, _ := idOf(tr.obj)
			label, _ := labelOf(tr.obj)
			m[graph.KeyID] = id
			m[graph.KeyLabel] = label
			out = append(out, tr.with(m))
		}
		return out, nil
	})
}

// Count reduces the stream to its length.
func (t *Traversal) Count() *Traversal {
	return t.add(func(_ *store, in []*traverser) ([]*traverser, error) {
		return []*traverser{{obj: int64(len(in))}}, nil
	})
}

// ---------- terminals ----------

// ToList runs the traversal and returns snapshots of every result.
func (t *Traversal) ToList() ([]any, error) {
	if t.err != nil {
		return nil, t.err
	}
	if t.ref == nil {
		return nil, errors.New("memgraph: anonymous traversal cannot be iterated")
	}
	var out []any
	fn := func(s *store) error {
		res, err := t.run(s, []*traverser{{}})
		if err != nil {
			return err
		}
		out = make([]any, 0, len(res))
		for _, tr := range res {
			out = append(out, snapshot(tr.obj))
		}
		return nil
	}
	var err error
	if t.mutates {
		err = t.ref.write(fn)
	} else {
		err = t.ref.read(fn)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Next returns the first result, or ErrNoResult.
func (t *Traversal) Next() (any, error) {
	res, err := t.ToList()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNoResult
	}
	return res[0], nil
}

// HasNext reports whether the traversal produces any result.
func (t *Traversal) HasNext() (bool, error) {
	res, err := t.ToList()
	if err != nil {
		return false, err
	}
	return len(res) > 0, nil
}

// Iterate runs the traversal for its side effects.
func (t *Traversal) Iterate() error {
	_, err := t.ToList()
	return err
}

// ---------- helpers ----------

func idList(ids []any) ([]int64, bool) {
	if len(ids) == 0 {
		return nil, false
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !graph.ValidID(id) {
			continue
		}
		if n, ok := graph.ToInt64(id); ok {
			out = append(out, n)
		}
	}
	return out, true
}

func propsOf(obj any) (graph.Props, bool) {
	switch el := obj.(type) {
	case *Vertex:
		return el.Props, true
	case *Edge:
		return el.Props, true
	default:
		return nil, false
	}
}

func labelOf(obj any) (string, bool) {
	switch el := obj.(type) {
	case *Vertex:
		return el.Label, true
	case *Edge:
		return el.Label, true
	default:
		return "", false
	}
}

func idOf(obj any) (int64, bool) {
	switch el := obj.(type) {
	case *Vertex:
		return el.ID, true
	case *Edge:
		return el.ID, true
	default:
		return 0, false
	}
}

func objKey(obj any) string {
	switch el := obj.(type) {
	case *Vertex:
		return fmt.Sprintf("v%d", el.ID)
	case *Edge:
		return fmt.Sprintf("e%d", el.ID)
	default:
		return fmt.Sprintf("%T:%v", obj, obj)
	}
}

func snapshot(obj any) any {
	switch el := obj.(type) {
	case *Vertex:
		return Vertex{ID: el.ID, Label: el.Label, Props: el.Props.Clone()}
	case *Edge:
		return Edge{ID: el.ID, Label: el.Label, Out: el.Out, In: el.In, Props: el.Props.Clone()}
	default:
		return obj
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	a, b = graph.NormalizeValue(a), graph.NormalizeValue(b)
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}
