package graph

import (
	"fmt"
	"math"
	"strconv"
)

// ---------- Type coercion helpers ----------
// Backends return loosely typed values (int64, int32, float64, string, ...).
// These helpers coerce any -> concrete type.

// ToString renders v as a string. Numbers use their decimal form.
func ToString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToInt64 converts integer, whole float and numeric-string values. ok is false
// when v has no exact int64 interpretation: fractional floats and unsigned
// values above math.MaxInt64 are rejected rather than truncated.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case float64:
		return wholeFloat(n)
	case float32:
		return wholeFloat(float64(n))
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// wholeFloat accepts floats that hold an integer inside the int64 range.
func wholeFloat(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ToFloat64 converts numeric values to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		if i, ok := ToInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// ToBool converts bool and "true"/"false" strings.
func ToBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(b)
		return p, err == nil
	default:
		return false, false
	}
}

// NormalizeValue widens Go integer and float kinds to int64 and float64 so
// that equality filters compare the same way regardless of the caller's type.
func NormalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case uint:
		if uint64(n) > math.MaxInt64 {
			return v
		}
		return int64(n)
	case uint32:
		return int64(n)
	case uint16:
		return int64(n)
	case uint8:
		return int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return v
		}
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// NormalizeProps applies NormalizeValue to every value.
func NormalizeProps(p Props) Props {
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = NormalizeValue(v)
	}
	return out
}
