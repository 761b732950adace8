package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorFormatsWithoutCause(t *testing.T) {
	err := New(Invalid, "bad field")
	assert.Equal(t, "[INVALID] bad field", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrapErrorFormatsWithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Upstream, "classifier unreachable", cause)
	assert.Contains(t, err.Error(), "classifier unreachable")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		Invalid:      http.StatusBadRequest,
		NotFound:     http.StatusNotFound,
		Unauthorized: http.StatusUnauthorized,
		Conflict:     http.StatusConflict,
		Exhausted:    http.StatusServiceUnavailable,
		Upstream:     http.StatusBadGateway,
		Integrity:    http.StatusUnprocessableEntity,
		Timeout:      http.StatusGatewayTimeout,
		Fatal:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus())
	}
}

func TestIsMatchesWrappedCode(t *testing.T) {
	err := UpstreamWrap(errors.New("timeout"), "kds fetch failed")
	assert.True(t, Is(err, Upstream))
	assert.False(t, Is(err, Integrity))
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", err.Tag)
}

func TestWithDetailAndWithTagChain(t *testing.T) {
	err := InvalidInput("name", "must match ^[A-Z]").WithDetail("value", "lowercase").WithTag("BAD_NAME")
	assert.Equal(t, "name", err.Details["field"])
	assert.Equal(t, "lowercase", err.Details["value"])
	assert.Equal(t, "BAD_NAME", err.Tag)
}

func TestIsReturnsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), Invalid))
}
