package schema

import (
	"encoding"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// TagName is the struct tag key read at registration.
//
//	type User struct {
//	    ID      int64     `graph:",id"`
//	    UserID  uuid.UUID `graph:"userId"`
//	    Name    string
//	    Secret  string    `graph:"-"`
//	    Friends []*User   `graph:"friends,edge=following,dir=out"`
//	}
const TagName = "graph"

// Labeler lets an entity type choose its own vertex label.
type Labeler interface {
	GraphLabel() string
}

var (
	timeType            = reflect.TypeOf(time.Time{})
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	labelerType         = reflect.TypeOf((*Labeler)(nil)).Elem()
)

// Field is one property-bearing struct field.
type Field struct {
	Name  string       // Go field name
	Key   string       // property key in the graph
	Index []int        // reflect index path, including promoted fields
	Type  reflect.Type // declared field type
}

// Relation is a struct field that becomes edges when the entity is saved.
type Relation struct {
	Field
	EdgeLabel string
	Direction graph.Direction
	Many      bool         // slice of targets
	Pointer   bool         // targets held by pointer
	Target    reflect.Type // target struct type
}

// Descriptor is the resolved mapping metadata of one entity type. It is
// immutable once registered.
type Descriptor struct {
	Type       reflect.Type
	Label      string
	ID         *Field
	Properties []Field
	Relations  []Relation
}

// Property returns the property field stored under key.
func (d *Descriptor) Property(key string) (Field, bool) {
	for _, f := range d.Properties {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Option customizes registration.
type Option func(*options)

type options struct {
	label string
}

// WithLabel overrides the vertex label of the registered type.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// Registry holds the descriptors of every entity type known to the process.
// One Registry is built at startup and shared by reference; it is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byType  map[reflect.Type]*Descriptor
	byLabel map[string]*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:  make(map[reflect.Type]*Descriptor),
		byLabel: make(map[string]*Descriptor),
	}
}

// Register resolves the descriptor of T (a struct type) and every entity type
// reachable through its relation fields.
func Register[T any](r *Registry, opts ...Option) (*Descriptor, error) {
	return r.register(reflect.TypeFor[T](), opts...)
}

// MustRegister is Register for startup code; it panics on error.
func MustRegister[T any](r *Registry, opts ...Option) *Descriptor {
	d, err := Register[T](r, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Register resolves the descriptor for the type of sample.
func (r *Registry) Register(sample any, opts ...Option) (*Descriptor, error) {
	return r.register(reflect.TypeOf(sample), opts...)
}

func (r *Registry) register(t reflect.Type, opts ...Option) (*Descriptor, error) {
	t = indirectType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, mappingErr(t, "", "entity must be a struct type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []reflect.Type
	d, err := r.describeLocked(t, opts, &pending)
	if err != nil {
		return nil, err
	}
	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]
		if _, err := r.describeLocked(next, nil, &pending); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// describeLocked builds and stores the descriptor of t unless it exists.
// Relation targets not yet known are appended to pending.
func (r *Registry) describeLocked(t reflect.Type, opts []Option, pending *[]reflect.Type) (*Descriptor, error) {
	if d, ok := r.byType[t]; ok {
		return d, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := &Descriptor{Type: t, Label: resolveLabel(t, o.label)}
	seenKeys := make(map[string]string)

	fields := reflect.VisibleFields(t)

	// Identity: an explicit `id` option wins over a field named ID.
	idIndex := -1
	for i, f := range fields {
		if !eligible(f) {
			continue
		}
		if _, opts := parseTag(f.Tag.Get(TagName)); opts.id {
			idIndex = i
			break
		}
	}
	if idIndex < 0 {
		for i, f := range fields {
			if eligible(f) && f.Name == "ID" && f.Tag.Get(TagName) != "-" {
				idIndex = i
				break
			}
		}
	}

	for i, f := range fields {
		if !eligible(f) {
			continue
		}
		tag := f.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		name, topts := parseTag(tag)
		key := name
		if key == "" {
			key = lowerFirst(f.Name)
		}
		base := Field{Name: f.Name, Key: key, Index: f.Index, Type: f.Type}

		if i == idIndex {
			if !isIdentityType(f.Type) {
				return nil, mappingErr(t, f.Name, "identity field must be a string, integer or interface type, got %s", f.Type)
			}
			idField := base
			idField.Key = graph.KeyID
			d.ID = &idField
			continue
		}

		if topts.edge != "" {
			rel, err := buildRelation(t, base, topts)
			if err != nil {
				return nil, err
			}
			d.Relations = append(d.Relations, rel)
			continue
		}
		if topts.dir != "" {
			return nil, mappingErr(t, f.Name, "dir option requires edge=<label>")
		}

		if !isScalarType(f.Type) {
			continue
		}
		if graph.IsReserved(key) {
			return nil, mappingErr(t, f.Name, "property key %q is reserved", key)
		}
		if other, dup := seenKeys[key]; dup {
			return nil, mappingErr(t, f.Name, "property key %q already used by field %s", key, other)
		}
		seenKeys[key] = f.Name
		d.Properties = append(d.Properties, base)
	}

	r.byType[t] = d
	if _, taken := r.byLabel[d.Label]; !taken {
		r.byLabel[d.Label] = d
	}

	for _, rel := range d.Relations {
		if _, known := r.byType[rel.Target]; !known {
			*pending = append(*pending, rel.Target)
		}
	}
	return d, nil
}

func buildRelation(owner reflect.Type, base Field, o tagOptions) (Relation, error) {
	dir, err := graph.ParseDirection(o.dir)
	if err != nil {
		return Relation{}, mappingErr(owner, base.Name, "%v", err)
	}
	rel := Relation{Field: base, EdgeLabel: o.edge, Direction: dir}

	ft := base.Type
	if ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array {
		rel.Many = true
		ft = ft.Elem()
	}
	if ft.Kind() == reflect.Pointer {
		rel.Pointer = true
		ft = ft.Elem()
	}
	if ft.Kind() != reflect.Struct || ft == timeType {
		return Relation{}, mappingErr(owner, base.Name, "relation target must be a struct entity, got %s", base.Type)
	}
	rel.Target = ft
	return rel, nil
}

// Lookup returns the descriptor registered for t (pointer types are followed).
func (r *Registry) Lookup(t reflect.Type) (*Descriptor, bool) {
	t = indirectType(t)
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byType[t]
	return d, ok
}

// LookupLabel returns the first descriptor registered under label.
func (r *Registry) LookupLabel(label string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byLabel[label]
	return d, ok
}

// Describe returns the descriptor for the dynamic type of entity.
func (r *Registry) Describe(entity any) (*Descriptor, error) {
	if entity == nil {
		return nil, mappingErr(nil, "", "nil entity")
	}
	return r.Get(reflect.TypeOf(entity))
}

// Get is Lookup returning ErrUnregistered as a MappingError.
func (r *Registry) Get(t reflect.Type) (*Descriptor, error) {
	d, ok := r.Lookup(t)
	if !ok {
		return nil, &MappingError{Type: indirectType(t), Err: ErrUnregistered}
	}
	return d, nil
}

// ResolveLabel returns the label of a registered type.
func (r *Registry) ResolveLabel(t reflect.Type) (string, error) {
	d, err := r.Get(t)
	if err != nil {
		return "", err
	}
	return d.Label, nil
}

// Descriptors returns every registered descriptor sorted by label.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	out := make([]*Descriptor, 0, len(r.byType))
	for _, d := range r.byType {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Type.String() < out[j].Type.String()
	})
	return out
}

// ---------- helpers ----------

type tagOptions struct {
	id   bool
	edge string
	dir  string
}

func parseTag(tag string) (string, tagOptions) {
	var o tagOptions
	if tag == "" {
		return "", o
	}
	parts := strings.Split(tag, ",")
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		switch {
		case p == "id":
			o.id = true
		case strings.HasPrefix(p, "edge="):
			o.edge = strings.TrimPrefix(p, "edge=")
		case strings.HasPrefix(p, "dir="):
			o.dir = strings.TrimPrefix(p, "dir=")
		}
	}
	return strings.TrimSpace(parts[0]), o
}

func resolveLabel(t reflect.Type, override string) string {
	if override != "" {
		return override
	}
	if t.Implements(labelerType) {
		if l := reflect.Zero(t).Interface().(Labeler).GraphLabel(); l != "" {
			return l
		}
	}
	if reflect.PointerTo(t).Implements(labelerType) {
		if l := reflect.New(t).Interface().(Labeler).GraphLabel(); l != "" {
			return l
		}
	}
	return t.Name()
}

// eligible filters out unexported fields and the embedded struct fields
// themselves (their promoted fields are visited separately).
func eligible(f reflect.StructField) bool {
	if !f.IsExported() {
		return false
	}
	if f.Anonymous {
		ft := indirectType(f.Type)
		if ft.Kind() == reflect.Struct && ft != timeType {
			return false
		}
	}
	return true
}

func isIdentityType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Interface,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func isScalarType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return true
	}
	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	// Leading acronyms: "ID" -> "id", "URLPath" -> "urlPath".
	upper := 0
	for _, c := range s {
		if !unicode.IsUpper(c) {
			break
		}
		upper++
	}
	if upper > 1 {
		if upper == utf8.RuneCountInString(s) {
			return strings.ToLower(s)
		}
		prefix := []rune(s)[:upper-1]
		return strings.ToLower(string(prefix)) + string([]rune(s)[upper-1:])
	}
	return string(unicode.ToLower(r)) + s[size:]
}
