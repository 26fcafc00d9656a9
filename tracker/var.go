package tracker

import "reflect"

// Var is a reactive variable. Get registers a dependency; Set invalidates
// readers when the value changes.
type Var[T any] struct {
	value T
	dep   *Dependency
	equal func(a, b T) bool
}

// NewVar creates a Var holding initial. A nil equal uses the default
// comparison: values of the same comparable type compare with ==, anything
// else is always considered changed.
func NewVar[T any](initial T, equal func(a, b T) bool) *Var[T] {
	if equal == nil {
		equal = defaultEqual[T]
	}
	return &Var[T]{value: initial, dep: NewDependency(), equal: equal}
}

// Get returns the value and depends on it.
func (v *Var[T]) Get() T {
	v.dep.Depend()
	return v.value
}

// Peek returns the value without depending on it.
func (v *Var[T]) Peek() T {
	return v.value
}

// Set stores value, invalidating readers if it differs from the current one.
func (v *Var[T]) Set(value T) {
	if v.equal(v.value, value) {
		return
	}
	v.value = value
	v.dep.Changed()
}

func defaultEqual[T any](a, b T) bool {
	va, vb := any(a), any(b)
	if va == nil || vb == nil {
		return va == nil && vb == nil
	}
	ta := reflect.TypeOf(va)
	if ta != reflect.TypeOf(vb) || !ta.Comparable() {
		return false
	}
	switch ta.Kind() {
	case reflect.Struct, reflect.Array, reflect.Interface:
		// may still hold uncomparable dynamic values
		return reflect.DeepEqual(va, vb)
	}
	return va == vb
}
