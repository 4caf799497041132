package domain

import (
	"math"
	"reflect"
)

// Identical reports whether two values are equal under the runtime's
// identity-preserving equality rule: values are equal if strictly identical,
// except that NaN compares equal to itself and positive and negative zero are
// distinguished. Non-comparable references (slices, maps, functions) compare
// by identity, never by content.
//
// A binding is skipped on an update cycle iff every value it reads compares
// Identical to its previous value, so this function is the single change
// detector of the whole engine.
func Identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		// Bit comparison distinguishes +0 from -0.
		return math.Float64bits(x) == math.Float64bits(y)
	case float32:
		y, ok := b.(float32)
		if !ok {
			return false
		}
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return math.Float32bits(x) == math.Float32bits(y)
	}

	ta := reflect.TypeOf(a)
	tb := reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}

	// Reference identity for the non-comparable kinds.
	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	return false
}
