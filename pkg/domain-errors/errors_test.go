package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	err := New(CodeInvalidInput, "bad input")
	assert.True(t, HasCode(err, CodeInvalidInput))
	assert.False(t, HasCode(err, CodeInternal))
	assert.False(t, HasCode(nil, CodeInvalidInput))
	assert.False(t, HasCode(errors.New("plain"), CodeInvalidInput))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := New(CodeUnknownSubject, "no registration")
	outer := fmt.Errorf("submit feedback: %w", inner)
	assert.True(t, HasCode(outer, CodeUnknownSubject))
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "store unavailable")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("mystery")))
	assert.Equal(t, CodeSessionInvalid, CodeOf(New(CodeSessionInvalid, "revoked")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:           http.StatusBadRequest,
		CodeUnknownSubject:         http.StatusNotFound,
		CodeUnknownRemoteDomain:    http.StatusNotFound,
		CodeUntrustedSender:        http.StatusUnauthorized,
		CodeUnauthorized:           http.StatusUnauthorized,
		CodeSessionInvalid:         http.StatusUnauthorized,
		CodeInsufficientStake:      http.StatusForbidden,
		CodeInsufficientReputation: http.StatusForbidden,
		CodeExcessiveRisk:          http.StatusForbidden,
		CodeInternal:               http.StatusInternalServerError,
		Code("unmapped"):           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
