package schema

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// EdgeRelation is one related entity found on a relation field.
type EdgeRelation struct {
	Label     string
	Direction graph.Direction
	Target    any // pointer to the related entity whenever it is addressable
}

// ExtractProperties returns the scalar properties of entity. Nil pointers are
// omitted; the identity and relation fields never appear. A nil entity yields
// an empty map.
func (r *Registry) ExtractProperties(entity any) (graph.Props, error) {
	v, ok := entityValue(entity)
	if !ok {
		return graph.Props{}, nil
	}
	d, err := r.Get(v.Type())
	if err != nil {
		return nil, err
	}

	props := make(graph.Props, len(d.Properties))
	for _, f := range d.Properties {
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			continue // nil embedded pointer
		}
		val, present, err := scalarValue(fv)
		if err != nil {
			return nil, &MappingError{Type: d.Type, Field: f.Name, Err: err}
		}
		if present {
			props[f.Key] = val
		}
	}
	return props, nil
}

// ExtractRelations lists the related entities held by relation fields, in
// field order. Nil and zero-length fields contribute nothing.
func (r *Registry) ExtractRelations(entity any) ([]EdgeRelation, error) {
	v, ok := entityValue(entity)
	if !ok {
		return nil, nil
	}
	d, err := r.Get(v.Type())
	if err != nil {
		return nil, err
	}

	var out []EdgeRelation
	for _, rel := range d.Relations {
		fv, err := v.FieldByIndexErr(rel.Index)
		if err != nil {
			continue
		}
		add := func(target reflect.Value) {
			if rel.Pointer {
				if target.IsNil() {
					return
				}
				out = append(out, EdgeRelation{Label: rel.EdgeLabel, Direction: rel.Direction, Target: target.Interface()})
				return
			}
			if target.CanAddr() {
				target = target.Addr()
			}
			out = append(out, EdgeRelation{Label: rel.EdgeLabel, Direction: rel.Direction, Target: target.Interface()})
		}
		if rel.Many {
			if fv.Kind() == reflect.Slice && fv.IsNil() {
				continue
			}
			for i := 0; i < fv.Len(); i++ {
				add(fv.Index(i))
			}
			continue
		}
		add(fv)
	}
	return out, nil
}

// Populate builds a new *T-equivalent (as any) for d from a raw vertex map.
// The identity is coerced to the identity field's type; relation fields are
// left empty.
func (r *Registry) Populate(d *Descriptor, props graph.Props) (any, error) {
	ptr := reflect.New(d.Type)
	v := ptr.Elem()

	if d.ID != nil {
		if raw, ok := props[graph.KeyID]; ok && raw != nil {
			fv, err := fieldForWrite(v, d.ID.Index)
			if err == nil {
				err = assign(fv, raw)
			}
			if err != nil {
				return nil, &MappingError{Type: d.Type, Field: d.ID.Name, Err: err}
			}
		}
	}
	for _, f := range d.Properties {
		raw, ok := props[f.Key]
		if !ok || raw == nil {
			continue
		}
		fv, err := fieldForWrite(v, f.Index)
		if err != nil {
			return nil, &MappingError{Type: d.Type, Field: f.Name, Err: err}
		}
		if err := assign(fv, raw); err != nil {
			return nil, &MappingError{Type: d.Type, Field: f.Name, Err: err}
		}
	}
	return ptr.Interface(), nil
}

// PopulateInto fills dst (a pointer to a registered struct) from props.
func (r *Registry) PopulateInto(dst any, props graph.Props) error {
	pv := reflect.ValueOf(dst)
	if pv.Kind() != reflect.Pointer || pv.IsNil() {
		return mappingErr(reflect.TypeOf(dst), "", "destination must be a non-nil pointer")
	}
	d, err := r.Get(pv.Type())
	if err != nil {
		return err
	}
	out, err := r.Populate(d, props)
	if err != nil {
		return err
	}
	pv.Elem().Set(reflect.ValueOf(out).Elem())
	return nil
}

// IdentityOf returns the identity of entity and whether it is set (non-zero).
func (r *Registry) IdentityOf(entity any) (graph.ID, bool) {
	v, ok := entityValue(entity)
	if !ok {
		return nil, false
	}
	d, found := r.Lookup(v.Type())
	if !found || d.ID == nil {
		return nil, false
	}
	fv, err := v.FieldByIndexErr(d.ID.Index)
	if err != nil || fv.IsZero() {
		return nil, false
	}
	if fv.Kind() == reflect.Interface {
		return fv.Elem().Interface(), true
	}
	return graph.NormalizeValue(fv.Interface()), true
}

// SetIdentity writes id into the identity field of entity, which must be a
// pointer. Types without an identity field are left untouched.
func (r *Registry) SetIdentity(entity any, id graph.ID) error {
	pv := reflect.ValueOf(entity)
	if pv.Kind() != reflect.Pointer || pv.IsNil() {
		return mappingErr(reflect.TypeOf(entity), "", "entity must be a non-nil pointer to receive an identity")
	}
	d, err := r.Get(pv.Type())
	if err != nil {
		return err
	}
	if d.ID == nil || id == nil {
		return nil
	}
	fv, err := fieldForWrite(pv.Elem(), d.ID.Index)
	if err == nil {
		err = assign(fv, id)
	}
	if err != nil {
		return &MappingError{Type: d.Type, Field: d.ID.Name, Err: err}
	}
	return nil
}

// ---------- value conversion ----------

// entityValue dereferences entity to an addressable struct value.
func entityValue(entity any) (reflect.Value, bool) {
	if entity == nil {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if !v.CanAddr() {
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		v = cp
	}
	return v, true
}

// fieldForWrite walks index, allocating nil embedded pointers on the way.
func fieldForWrite(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("cannot allocate embedded %s", v.Type())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

func scalarValue(fv reflect.Value) (any, bool, error) {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, false, nil
		}
		fv = fv.Elem()
	}
	if fv.Type() == timeType {
		return fv.Interface().(time.Time), true, nil
	}
	if fv.Type().Implements(textMarshalerType) {
		return marshalText(fv.Interface().(encoding.TextMarshaler))
	}
	if fv.CanAddr() && fv.Addr().Type().Implements(textMarshalerType) {
		return marshalText(fv.Addr().Interface().(encoding.TextMarshaler))
	}
	switch fv.Kind() {
	case reflect.Bool:
		return fv.Bool(), true, nil
	case reflect.String:
		return fv.String(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := fv.Uint()
		if u > math.MaxInt64 {
			return nil, false, fmt.Errorf("value %d overflows int64", u)
		}
		return int64(u), true, nil
	case reflect.Float32, reflect.Float64:
		return fv.Float(), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported property kind %s", fv.Kind())
	}
}

func marshalText(m encoding.TextMarshaler) (any, bool, error) {
	b, err := m.MarshalText()
	if err != nil {
		return nil, false, err
	}
	return string(b), true, nil
}

// assign stores raw into dst, converting between the loose value types
// backends return and the declared field type.
func assign(dst reflect.Value, raw any) error {
	if dst.Kind() == reflect.Pointer {
		n := reflect.New(dst.Type().Elem())
		if err := assign(n.Elem(), raw); err != nil {
			return err
		}
		dst.Set(n)
		return nil
	}

	rv := reflect.ValueOf(raw)
	if dst.Kind() == reflect.Interface {
		if rv.Type().AssignableTo(dst.Type()) {
			dst.Set(rv)
			return nil
		}
		return fmt.Errorf("cannot assign %T to %s", raw, dst.Type())
	}

	if dst.Type() == timeType {
		switch t := raw.(type) {
		case time.Time:
			dst.Set(reflect.ValueOf(t))
			return nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(parsed))
			return nil
		default:
			return fmt.Errorf("cannot convert %T to time.Time", raw)
		}
	}

	if rv.Type() == dst.Type() {
		dst.Set(rv)
		return nil
	}

	if reflect.PointerTo(dst.Type()).Implements(textUnmarshalerType) {
		if s, ok := raw.(string); ok {
			return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
		}
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(graph.ToString(raw))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := graph.ToInt64(raw)
		if !ok {
			return fmt.Errorf("cannot convert %T %v to %s", raw, raw, dst.Type())
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := graph.ToInt64(raw)
		if !ok || n < 0 {
			return fmt.Errorf("cannot convert %T %v to %s", raw, raw, dst.Type())
		}
		if dst.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, ok := graph.ToFloat64(raw)
		if !ok {
			return fmt.Errorf("cannot convert %T %v to %s", raw, raw, dst.Type())
		}
		dst.SetFloat(f)
		return nil
	case reflect.Bool:
		b, ok := graph.ToBool(raw)
		if !ok {
			return fmt.Errorf("cannot convert %T %v to bool", raw, raw)
		}
		dst.SetBool(b)
		return nil
	}

	if rv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot convert %T to %s", raw, dst.Type())
}
