package store

// PotKind is the lifecycle state of a remote value.
type PotKind string

const (
	PotNone        PotKind = "none"
	PotNoneLoading PotKind = "none_loading"
	PotNoneError   PotKind = "none_error"
	PotSome        PotKind = "some"
	PotSomeLoading PotKind = "some_loading"
	PotSomeError   PotKind = "some_error"
)

// Pot holds a remote value together with its loading and error state.
// The zero value is an empty pot.
//
// A pot in an error or loading state keeps the last value it held, so a
// failed refresh never erases what was already shown.
type Pot[T any] struct {
	hasValue bool
	loading  bool
	value    T
	err      error
}

// None returns an empty pot.
func None[T any]() Pot[T] {
	return Pot[T]{}
}

// NoneLoading returns an empty pot that is being loaded.
func NoneLoading[T any]() Pot[T] {
	return Pot[T]{loading: true}
}

// NoneError returns an empty pot whose load failed.
func NoneError[T any](err error) Pot[T] {
	return Pot[T]{err: err}
}

// Some returns a pot holding v.
func Some[T any](v T) Pot[T] {
	return Pot[T]{hasValue: true, value: v}
}

// SomeLoading returns a pot holding v that is being reloaded.
func SomeLoading[T any](v T) Pot[T] {
	return Pot[T]{hasValue: true, value: v, loading: true}
}

// SomeError returns a pot holding v whose reload failed.
func SomeError[T any](v T, err error) Pot[T] {
	return Pot[T]{hasValue: true, value: v, err: err}
}

// Kind returns the lifecycle state of the pot.
func (p Pot[T]) Kind() PotKind {
	switch {
	case p.hasValue && p.loading:
		return PotSomeLoading
	case p.hasValue && p.err != nil:
		return PotSomeError
	case p.hasValue:
		return PotSome
	case p.loading:
		return PotNoneLoading
	case p.err != nil:
		return PotNoneError
	default:
		return PotNone
	}
}

// Value returns the held value and whether there is one.
func (p Pot[T]) Value() (T, bool) {
	return p.value, p.hasValue
}

// Err returns the error of a failed load, or nil.
func (p Pot[T]) Err() error {
	return p.err
}

// IsSome reports whether the pot holds a value.
func (p Pot[T]) IsSome() bool { return p.hasValue }

// IsLoading reports whether a load is in flight.
func (p Pot[T]) IsLoading() bool { return p.loading }

// IsError reports whether the last load failed.
func (p Pot[T]) IsError() bool { return !p.loading && p.err != nil }

// ToLoading marks a load as started, keeping the current value.
func (p Pot[T]) ToLoading() Pot[T] {
	return Pot[T]{hasValue: p.hasValue, value: p.value, loading: true}
}

// ToError records a failed load, keeping the current value.
func (p Pot[T]) ToError(err error) Pot[T] {
	return Pot[T]{hasValue: p.hasValue, value: p.value, err: err}
}

// Settle clears the loading flag without recording an outcome.
func (p Pot[T]) Settle() Pot[T] {
	return Pot[T]{hasValue: p.hasValue, value: p.value, err: p.err}
}
