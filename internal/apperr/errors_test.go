package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesIsMatching(t *testing.T) {
	err := Wrap(ErrUpstreamUnavailable, "fetch fundamentals", errors.New("dial tcp: timeout"))

	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "fetch fundamentals")
	assert.Contains(t, err.Error(), "dial tcp: timeout")
}

func TestWrapWithNilCause(t *testing.T) {
	err := Wrap(ErrValidation, "empty ticker", nil)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestClassReturnsMatchingSentinel(t *testing.T) {
	err := Wrap(ErrToolFailure, "get_stock_data", errors.New("timeout"))
	assert.ErrorIs(t, Class(err), ErrToolFailure)
}

func TestClassReturnsNilForUnclassifiedError(t *testing.T) {
	assert.Nil(t, Class(errors.New("something unexpected")))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Wrap(ErrValidation, "x", nil), 400},
		{Wrap(ErrCancelled, "x", nil), 499},
		{Wrap(ErrUpstreamUnavailable, "x", nil), 200},
		{Wrap(ErrAggregationFailure, "x", nil), 200},
		{errors.New("unexpected panic recovered"), 500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err))
	}
}
