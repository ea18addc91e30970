package graph

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"", DirectionOut, false},
		{"out", DirectionOut, false},
		{" Outgoing ", DirectionOut, false},
		{"IN", DirectionIn, false},
		{"incoming", DirectionIn, false},
		{"both", DirectionBoth, false},
		{"sideways", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentity(t *testing.T) {
	assert.True(t, ValidID("a"))
	assert.True(t, ValidID(int64(3)))
	assert.True(t, ValidID(uint8(3)))
	assert.False(t, ValidID(nil))
	assert.False(t, ValidID(1.5))
	assert.False(t, ValidID([]byte("a")))

	assert.True(t, SameID(int64(7), "7"))
	assert.True(t, SameID(7, int64(7)))
	assert.False(t, SameID(7, "8"))
	assert.False(t, SameID(nil, "x"))
	assert.True(t, SameID(nil, nil))
}

func TestProps(t *testing.T) {
	p := Props{KeyID: int64(1), KeyLabel: "Person", "name": "ada", "age": 36}

	assert.Equal(t, []string{"age", KeyID, KeyLabel, "name"}, p.Keys())
	assert.Equal(t, int64(1), p.ID())
	assert.Equal(t, "Person", p.Label())
	assert.Equal(t, Props{"name": "ada", "age": 36}, p.WithoutReserved())

	c := p.Clone()
	c["name"] = "changed"
	assert.Equal(t, "ada", p["name"])

	var nilProps Props
	assert.NotNil(t, nilProps.Clone())
	assert.Nil(t, nilProps.ID())
	assert.Empty(t, nilProps.Label())

	assert.True(t, IsReserved(KeyID))
	assert.True(t, IsReserved(KeyLabel))
	assert.False(t, IsReserved("name"))
}

func TestPath(t *testing.T) {
	v := func(id any) Element { return Element{Kind: ElementVertex, ID: id} }
	e := func(id any) Element { return Element{Kind: ElementEdge, ID: id} }

	p := Path{v(1), e("e1"), v(2), e("e2"), v(3)}
	assert.Equal(t, 2, p.Hops())
	assert.Len(t, p.Vertices(), 3)
	assert.True(t, p.Simple())

	loop := Path{v(1), e("e1"), v(2), e("e2"), v("1")}
	assert.False(t, loop.Simple(), "identities compare across representations")

	assert.Zero(t, Path{}.Hops())
	assert.True(t, Path{}.Simple())
}

func TestExec(t *testing.T) {
	assert.NoError(t, Exec("op", nil))

	cause := errors.New("socket closed")
	err := Exec("addV", cause)
	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "addV")

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Same(t, wrapped, Exec("commit", wrapped), "existing execution errors are not rewrapped")
}

func TestCoercion(t *testing.T) {
	assert.Equal(t, "12", ToString(int64(12)))
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "x", ToString("x"))

	n, ok := ToInt64("42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
	_, ok = ToInt64("forty")
	assert.False(t, ok)
	_, ok = ToInt64(true)
	assert.False(t, ok)

	f, ok := ToFloat64(int32(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	b, ok := ToBool("true")
	assert.True(t, ok)
	assert.True(t, b)
	_, ok = ToBool(1)
	assert.False(t, ok)

	assert.Equal(t, int64(5), NormalizeValue(uint16(5)))
	assert.Equal(t, uint64(math.MaxUint64), NormalizeValue(uint64(math.MaxUint64)), "unrepresentable unsigned values are kept")
	assert.Equal(t, float64(float32(1.5)), NormalizeValue(float32(1.5)))
	assert.Equal(t, "s", NormalizeValue("s"))
	assert.Equal(t, Props{"a": int64(1), "b": 2.5}, NormalizeProps(Props{"a": 1, "b": 2.5}))
}

func TestToInt64Exact(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"whole float", 3.0, 3, true},
		{"whole float32", float32(-2), -2, true},
		{"fractional float", 2.5, 0, false},
		{"float above range", 1e19, 0, false},
		{"nan", math.NaN(), 0, false},
		{"uint64 max int", uint64(math.MaxInt64), math.MaxInt64, true},
		{"uint64 above max int", uint64(math.MaxInt64) + 1, 0, false},
		{"uint above max int", uint(math.MaxUint64), 0, false},
		{"numeric string", "-7", -7, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToInt64(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
