package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	validation := NewValidationError("bad body", map[string]any{"field": "domain"})
	wrapped := fmt.Errorf("handler: %w", validation)
	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus)

	de = ToDomainError(fmt.Errorf("scan: %w", pgx.ErrNoRows))
	assert.Equal(t, "NOT_FOUND", de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)

	cause := errors.New("boom")
	de = ToDomainError(cause)
	assert.Equal(t, "INTERNAL_ERROR", de.Code)
	assert.ErrorIs(t, de, cause)
	assert.Equal(t, "internal server error: boom", de.Error())
}

func TestStatusHelpers(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, ToDomainError(NewTooManyRequests("slow down")).HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, ToDomainError(NewUnavailable("db down", nil)).HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ToDomainError(NewUnauthorized("no token")).HTTPStatus)
}
