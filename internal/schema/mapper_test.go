package schema

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/graphogm/internal/graph"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	MustRegister[Account](r)
	MustRegister[Person](r)
	MustRegister[Document](r)
	return r
}

// ---------- ExtractProperties ----------

func TestExtractProperties_Scalars(t *testing.T) {
	r := newTestRegistry(t)

	props, err := r.ExtractProperties(&Account{ID: 9, Email: "a@x.io", Age: 30, Score: 1.5, Active: true, Token: "secret", private: "p"})
	require.NoError(t, err)

	assert.Equal(t, graph.Props{
		"email":  "a@x.io",
		"age":    int64(30),
		"score":  1.5,
		"active": true,
	}, props)
}

func TestExtractProperties_OmitsNilAndIdentity(t *testing.T) {
	r := newTestRegistry(t)
	born := time.Date(1990, 1, 2, 3, 4, 5, 0, time.UTC)
	ref := uuid.MustParse("7b1d5cf4-2c7e-4a0c-9a55-0c5bd0b1f7c1")

	props, err := r.ExtractProperties(Person{Key: "k1", Name: "Ann", Born: born, Ref: ref})
	require.NoError(t, err)

	assert.Equal(t, "Ann", props["name"])
	assert.Equal(t, born, props["born"])
	assert.Equal(t, ref.String(), props["ref"])
	assert.NotContains(t, props, "nickname")
	assert.NotContains(t, props, graph.KeyID)
	assert.NotContains(t, props, "friends")

	nick := "annie"
	props, err = r.ExtractProperties(&Person{Name: "Ann", Nickname: &nick})
	require.NoError(t, err)
	assert.Equal(t, "annie", props["nickname"])
}

func TestExtractProperties_NilEntity(t *testing.T) {
	r := newTestRegistry(t)

	props, err := r.ExtractProperties(nil)
	require.NoError(t, err)
	assert.Empty(t, props)

	var p *Person
	props, err = r.ExtractProperties(p)
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestExtractProperties_Promoted(t *testing.T) {
	r := newTestRegistry(t)

	props, err := r.ExtractProperties(&Document{Audit: Audit{CreatedBy: "ops"}, Title: "runbook"})
	require.NoError(t, err)
	assert.Equal(t, graph.Props{"createdBy": "ops", "title": "runbook"}, props)
}

type Meter struct {
	ID    int64
	Reads uint64
}

func TestExtractProperties_UnsignedOverflow(t *testing.T) {
	r := NewRegistry()
	MustRegister[Meter](r)

	props, err := r.ExtractProperties(&Meter{Reads: math.MaxInt64})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), props["reads"])

	_, err = r.ExtractProperties(&Meter{Reads: math.MaxInt64 + 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMapping)
}

// ---------- ExtractRelations ----------

func TestExtractRelations(t *testing.T) {
	r := newTestRegistry(t)

	bob := &Person{Name: "Bob"}
	acme := &Company{Name: "Acme", Offices: []Office{{City: "Oslo"}, {City: "Lima"}}}
	ann := &Person{Name: "Ann", Friends: []*Person{bob, nil}, Employer: acme}

	rels, err := r.ExtractRelations(ann)
	require.NoError(t, err)
	require.Len(t, rels, 2)

	assert.Equal(t, "knows", rels[0].Label)
	assert.Equal(t, graph.DirectionBoth, rels[0].Direction)
	assert.Same(t, bob, rels[0].Target)

	assert.Equal(t, "worksAt", rels[1].Label)
	assert.Same(t, acme, rels[1].Target)

	// Value-typed slice elements come back addressable.
	offices, err := r.ExtractRelations(acme)
	require.NoError(t, err)
	require.Len(t, offices, 2)
	first, ok := offices[0].Target.(*Office)
	require.True(t, ok)
	assert.Same(t, &acme.Offices[0], first)
}

func TestExtractRelations_Empty(t *testing.T) {
	r := newTestRegistry(t)

	rels, err := r.ExtractRelations(&Person{Name: "solo"})
	require.NoError(t, err)
	assert.Empty(t, rels)
}

// ---------- Populate ----------

func TestPopulate_CoercesIdentity(t *testing.T) {
	r := newTestRegistry(t)
	acct, _ := r.Lookup(typeOf[Account]())

	t.Run("numeric string to int64", func(t *testing.T) {
		out, err := r.Populate(acct, graph.Props{"id": "42", "label": "Account", "email": "e@x.io"})
		require.NoError(t, err)
		a := out.(*Account)
		assert.Equal(t, int64(42), a.ID)
		assert.Equal(t, "e@x.io", a.Email)
	})

	t.Run("int to string", func(t *testing.T) {
		person, _ := r.Lookup(typeOf[Person]())
		out, err := r.Populate(person, graph.Props{"id": int64(7), "name": "Ann"})
		require.NoError(t, err)
		assert.Equal(t, "7", out.(*Person).Key)
	})

	t.Run("uuid string into int fails", func(t *testing.T) {
		_, err := r.Populate(acct, graph.Props{"id": "not-a-number"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMapping)
	})
}

func TestPopulate_ConvertsValues(t *testing.T) {
	r := newTestRegistry(t)
	person, _ := r.Lookup(typeOf[Person]())
	ref := uuid.New()
	born := time.Date(2001, 5, 6, 0, 0, 0, 0, time.UTC)

	out, err := r.Populate(person, graph.Props{
		"id":       "p1",
		"name":     "Ann",
		"nickname": "annie",
		"born":     born.Format(time.RFC3339Nano),
		"ref":      ref.String(),
		"unknown":  "ignored",
	})
	require.NoError(t, err)

	p := out.(*Person)
	assert.Equal(t, "p1", p.Key)
	require.NotNil(t, p.Nickname)
	assert.Equal(t, "annie", *p.Nickname)
	assert.True(t, born.Equal(p.Born))
	assert.Equal(t, ref, p.Ref)
	assert.Nil(t, p.Friends)
	assert.Nil(t, p.Employer)
}

func TestPopulate_NumericWidening(t *testing.T) {
	r := newTestRegistry(t)
	acct, _ := r.Lookup(typeOf[Account]())

	out, err := r.Populate(acct, graph.Props{"age": int32(31), "score": int64(2), "active": "true"})
	require.NoError(t, err)
	a := out.(*Account)
	assert.Equal(t, 31, a.Age)
	assert.Equal(t, 2.0, a.Score)
	assert.True(t, a.Active)

	_, err = r.Populate(acct, graph.Props{"age": []int{1}})
	assert.ErrorIs(t, err, ErrMapping)

	_, err = r.Populate(acct, graph.Props{"age": 30.5})
	assert.ErrorIs(t, err, ErrMapping, "fractional values are not truncated into integer fields")

	out, err = r.Populate(acct, graph.Props{"age": 30.0})
	require.NoError(t, err)
	assert.Equal(t, 30, out.(*Account).Age)
}

func TestPopulateInto(t *testing.T) {
	r := newTestRegistry(t)

	var a Account
	require.NoError(t, r.PopulateInto(&a, graph.Props{"id": int64(3), "email": "z@x.io"}))
	assert.Equal(t, Account{ID: 3, Email: "z@x.io"}, a)

	assert.ErrorIs(t, r.PopulateInto(a, graph.Props{}), ErrMapping)
}

// ---------- identity ----------

func TestIdentity(t *testing.T) {
	r := newTestRegistry(t)

	a := &Account{}
	_, ok := r.IdentityOf(a)
	assert.False(t, ok)

	require.NoError(t, r.SetIdentity(a, int64(12)))
	id, ok := r.IdentityOf(a)
	require.True(t, ok)
	assert.Equal(t, int64(12), id)

	p := &Person{}
	require.NoError(t, r.SetIdentity(p, "uuid-1"))
	assert.Equal(t, "uuid-1", p.Key)

	assert.ErrorIs(t, r.SetIdentity(Account{}, int64(1)), ErrMapping)
}
