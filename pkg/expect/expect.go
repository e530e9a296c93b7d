// Package expect provides a uniform carrier for a value or a captured
// failure, so that evaluators and callbacks crossing a scheduling boundary
// don't have to entangle control flow with error flow.
package expect

// Expect stores either a value of type T or the error that prevented one
// from being produced.
type Expect[T any] struct {
	value T
	err   error
	set   bool
}

// Of constructs an Expect holding a value.
func Of[T any](value T) Expect[T] {
	return Expect[T]{value: value, set: true}
}

// OfError constructs an Expect holding a captured error.
func OfError[T any](err error) Expect[T] {
	return Expect[T]{err: err}
}

// Try invokes fn and stores its return value on success or the error it
// returns on failure. Try never panics on behalf of fn; if fn itself
// panics, the panic propagates to the caller.
func Try[T any](fn func() (T, error)) Expect[T] {
	value, err := fn()
	if err != nil {
		return OfError[T](err)
	}
	return Of(value)
}

// IsValue reports whether a value is stored.
func (e Expect[T]) IsValue() bool {
	return e.set
}

// IsError reports whether an error is stored.
func (e Expect[T]) IsError() bool {
	return !e.set && e.err != nil
}

// Get returns the stored value, or the zero value and the stored error.
func (e Expect[T]) Get() (T, error) {
	return e.value, e.err
}

// Err returns the captured error, or nil if a value is stored.
func (e Expect[T]) Err() error {
	return e.err
}

// MustGet returns the stored value, panicking if an error is stored
// instead. Reserved for call sites that have already checked IsValue.
func (e Expect[T]) MustGet() T {
	if e.err != nil {
		panic(e.err)
	}
	return e.value
}
