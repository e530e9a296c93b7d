package expect_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tschof/subscriptions/pkg/expect"
)

func TestOf(t *testing.T) {
	e := expect.Of(42)
	assert.True(t, e.IsValue())
	assert.False(t, e.IsError())
	v, err := e.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestOfError(t *testing.T) {
	wantErr := errors.New("boom")
	e := expect.OfError[int](wantErr)
	assert.False(t, e.IsValue())
	assert.True(t, e.IsError())
	_, err := e.Get()
	assert.ErrorIs(t, err, wantErr)
}

func TestTry(t *testing.T) {
	ok := expect.Try(func() (int, error) { return 7, nil })
	assert.True(t, ok.IsValue())
	assert.Equal(t, 7, ok.MustGet())

	wantErr := errors.New("bad")
	failed := expect.Try(func() (int, error) { return 0, wantErr })
	assert.True(t, failed.IsError())
	assert.ErrorIs(t, failed.Err(), wantErr)
}

func TestMustGetPanicsOnError(t *testing.T) {
	e := expect.OfError[string](errors.New("nope"))
	assert.Panics(t, func() {
		e.MustGet()
	})
}
