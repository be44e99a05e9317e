// Package stats provides numeric primitives over ordered series that may
// contain missing observations.
package stats

import (
	"errors"
	"math"
)

// ErrInvalidParameter is returned when a caller passes an argument outside
// the domain of an operation (e.g. a percentile outside [0,100]).
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrInsufficientData is returned when a primitive does not have enough
// valid points to produce a result.
var ErrInsufficientData = errors.New("insufficient data")

// Value is an observation that may be missing. The zero Value is missing.
type Value struct {
	v  float64
	ok bool
}

// Some wraps a present observation. NaN and ±Inf are treated as missing.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{v: v, ok: true}
}

// None returns a missing observation.
func None() Value {
	return Value{}
}

// FromPtr converts a nullable float into a Value.
func FromPtr(p *float64) Value {
	if p == nil {
		return None()
	}
	return Some(*p)
}

// Get returns the wrapped value and whether it is present.
func (x Value) Get() (float64, bool) {
	return x.v, x.ok
}

// Valid reports whether the value is present.
func (x Value) Valid() bool {
	return x.ok
}

// Or returns the value, or def when it is missing.
func (x Value) Or(def float64) float64 {
	if !x.ok {
		return def
	}
	return x.v
}

// Ptr returns a pointer to a copy of the value, or nil when missing.
func (x Value) Ptr() *float64 {
	if !x.ok {
		return nil
	}
	v := x.v
	return &v
}

// Series builds a series of present values.
func Series(vals ...float64) []Value {
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = Some(v)
	}
	return out
}

// valid returns the present values of series in order.
func valid(series []Value) []float64 {
	out := make([]float64, 0, len(series))
	for _, x := range series {
		if x.ok {
			out = append(out, x.v)
		}
	}
	return out
}

// CountValid returns the number of present entries.
func CountValid(series []Value) int {
	n := 0
	for _, x := range series {
		if x.ok {
			n++
		}
	}
	return n
}
