package schema

import (
	"reflect"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// Identities stages the identities generated for entities during one unit of
// work. Add checks that the identity fits the entity's identity field; Apply
// writes them all. A unit that rolls back is simply never applied, which
// leaves its entities untouched.
type Identities struct {
	reg     *Registry
	pending []stagedIdentity
}

type stagedIdentity struct {
	entity any
	id     graph.ID
}

// NewIdentities returns an empty stage over r.
func (r *Registry) NewIdentities() *Identities {
	return &Identities{reg: r}
}

// Add stages id for entity. Non-pointer entities cannot receive an identity
// and are skipped. The error is a MappingError when the identity field
// cannot hold id.
func (s *Identities) Add(entity any, id graph.ID) error {
	pv := reflect.ValueOf(entity)
	if pv.Kind() != reflect.Pointer || pv.IsNil() {
		return nil
	}
	if err := s.reg.CheckIdentity(entity, id); err != nil {
		return err
	}
	s.pending = append(s.pending, stagedIdentity{entity: entity, id: id})
	return nil
}

// Len reports the number of staged identities.
func (s *Identities) Len() int { return len(s.pending) }

// Apply writes every staged identity in the order they were added and
// empties the stage.
func (s *Identities) Apply() error {
	pending := s.pending
	s.pending = nil
	for _, p := range pending {
		if err := s.reg.SetIdentity(p.entity, p.id); err != nil {
			return err
		}
	}
	return nil
}

// CheckIdentity reports whether SetIdentity(entity, id) would succeed without
// touching entity.
func (r *Registry) CheckIdentity(entity any, id graph.ID) error {
	t := reflect.TypeOf(entity)
	if t == nil || t.Kind() != reflect.Pointer {
		return mappingErr(t, "", "entity must be a non-nil pointer to receive an identity")
	}
	d, err := r.Get(t)
	if err != nil {
		return err
	}
	if d.ID == nil || id == nil {
		return nil
	}
	if err := assign(reflect.New(d.ID.Type).Elem(), id); err != nil {
		return &MappingError{Type: d.Type, Field: d.ID.Name, Err: err}
	}
	return nil
}
