package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPot_Kinds(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		pot  Pot[int]
		want PotKind
	}{
		{"zero value", Pot[int]{}, PotNone},
		{"none", None[int](), PotNone},
		{"none loading", NoneLoading[int](), PotNoneLoading},
		{"none error", NoneError[int](boom), PotNoneError},
		{"some", Some(1), PotSome},
		{"some loading", SomeLoading(1), PotSomeLoading},
		{"some error", SomeError(1, boom), PotSomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pot.Kind())
		})
	}
}

func TestPot_TransitionsKeepValue(t *testing.T) {
	boom := errors.New("boom")

	p := Some(42).ToLoading()
	assert.Equal(t, PotSomeLoading, p.Kind())

	p = p.ToError(boom)
	assert.Equal(t, PotSomeError, p.Kind())
	assert.True(t, p.IsError())
	assert.Equal(t, boom, p.Err())

	v, ok := p.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	p = p.ToLoading()
	assert.Nil(t, p.Err())
	assert.True(t, p.IsLoading())
}

func TestPot_FromEmpty(t *testing.T) {
	p := None[string]().ToLoading()
	assert.Equal(t, PotNoneLoading, p.Kind())

	p = p.ToError(errors.New("boom"))
	assert.Equal(t, PotNoneError, p.Kind())

	_, ok := p.Value()
	assert.False(t, ok)
}

func TestPot_Settle(t *testing.T) {
	assert.Equal(t, PotNone, NoneLoading[int]().Settle().Kind())
	assert.Equal(t, PotSome, SomeLoading(1).Settle().Kind())
	assert.Equal(t, PotSomeError, SomeError(1, errors.New("x")).Settle().Kind())
}
