package adjudicator

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent_EmptyStack(t *testing.T) {
	_, err := Current()
	assert.ErrorIs(t, err, ErrNoCurrentEngine)
}

func TestAsCurrent_PushAndRelease(t *testing.T) {
	e := New()
	release := e.AsCurrent()

	got, err := Current()
	require.NoError(t, err)
	assert.Same(t, e, got)

	release()
	_, err = Current()
	assert.ErrorIs(t, err, ErrNoCurrentEngine)
}

func TestAsCurrent_NestingInnermostWins(t *testing.T) {
	outer := New()
	inner := New()

	releaseOuter := outer.AsCurrent()
	releaseInner := inner.AsCurrent()

	got, err := Current()
	require.NoError(t, err)
	assert.Same(t, inner, got)

	releaseInner()
	got, err = Current()
	require.NoError(t, err)
	assert.Same(t, outer, got)

	releaseOuter()
	_, err = Current()
	assert.ErrorIs(t, err, ErrNoCurrentEngine)
}

func TestAsCurrent_ReleaseIdempotent(t *testing.T) {
	a := New()
	b := New()

	releaseA := a.AsCurrent()
	releaseA()
	releaseB := b.AsCurrent()

	// The second call must not pop b's frame.
	releaseA()

	got, err := Current()
	require.NoError(t, err)
	assert.Same(t, b, got)
	releaseB()
}

func TestAsCurrent_UnbalancedReleasePanics(t *testing.T) {
	outer := New()
	inner := New()

	releaseOuter := outer.AsCurrent()
	releaseInner := inner.AsCurrent()

	assert.Panics(t, func() { releaseOuter() }, "releasing out of order is a programming error")

	releaseInner()
	releaseOuter()
}

func TestGet_AgainstCurrentEngine(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRules(
		NewRule("atoi", []Type{TypeOf[string]()}, TypeOf[int](), func(p *Params) (any, error) {
			return strconv.Atoi(MustValue[string](p))
		}),
	))

	release := e.AsCurrent()
	defer release()

	n, err := Get[int]("42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = GetParams[int](NewParams("7"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestGet_NoCurrentEngine(t *testing.T) {
	_, err := Get[int]("42")
	assert.ErrorIs(t, err, ErrNoCurrentEngine)
}
