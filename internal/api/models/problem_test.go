package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avydash/avydash/internal/api/models"
)

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_1", "invalid touch", []models.FieldError{
		{Field: "x", Message: "x is required", Code: "required"},
	})
	p.Instance = "/v1/touch"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_1", w.Header().Get("X-Request-Id"))

	var got models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, *p, got)
}

func TestProblem_Constructors(t *testing.T) {
	tests := []struct {
		problem *models.Problem
		status  int
		typ     string
	}{
		{models.NewNotFound("r", "d"), http.StatusNotFound, models.ProblemTypeNotFound},
		{models.NewTooManyRequests("r", "d"), http.StatusTooManyRequests, models.ProblemTypeTooManyRequests},
		{models.NewInternalError("r", "d"), http.StatusInternalServerError, models.ProblemTypeInternal},
		{models.NewServiceUnavailable("r", "d"), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, "d", tt.problem.Detail)
			assert.Equal(t, "r", tt.problem.TraceID)
		})
	}
}
