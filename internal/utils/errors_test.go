package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"ms-checkout/internal/models"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coded struct{ status int }

func (c coded) Error() string         { return "coded" }
func (c coded) HTTPStatus() int       { return c.status }
func (c coded) PublicMessage() string { return "public" }

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", models.NewValidationError("f", "bad"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("ctx: %w", models.NewValidationError("f", "bad")), http.StatusBadRequest},
		{"not found", &models.NotFoundError{Entity: "checkout", ID: "x"}, http.StatusNotFound},
		{"transition", fmt.Errorf("%w: nope", models.ErrInvalidTransition), http.StatusConflict},
		{"self coded", fmt.Errorf("ctx: %w", coded{status: http.StatusUnauthorized}), http.StatusUnauthorized},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	status := WriteServiceError(rec, "failed", errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, status)
	var body APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.NotContains(t, body.Error, "pq")
}

func TestWriteServiceError_UsesPublicMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, "failed", coded{status: http.StatusInternalServerError})

	var body APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "public", body.Error)
}
