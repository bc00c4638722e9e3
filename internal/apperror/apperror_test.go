package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := Conflict("cannot resolve cancelled incident")
	wrapped := fmt.Errorf("service: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, IsRetryable(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindConflict))
}

func TestTransient_Retryable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient(cause, "ledger unavailable").WithRetryable()

	assert.True(t, IsRetryable(fmt.Errorf("submit: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ledger unavailable: connection refused", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(KindAuth))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(KindForbidden))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(KindTransient))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(KindRateLimited))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindUnknown))
}
