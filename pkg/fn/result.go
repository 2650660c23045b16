// Package fn holds the small generic helpers the engines compose with:
// a Result type, traced pipeline stages, bounded retry and parallel map.
package fn

// Result holds either a value or the error that prevented it.
// Err with a nil error yields a successful zero Result.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps v.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps err.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// FromPair lifts a (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

func (r Result[T]) IsOk() bool  { return r.err == nil }
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// OrElse returns the value, or f applied to the error.
func (r Result[T]) OrElse(f func(error) T) T {
	if r.err != nil {
		return f(r.err)
	}
	return r.val
}
