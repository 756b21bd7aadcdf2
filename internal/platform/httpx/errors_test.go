package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusError(t *testing.T) {
	cases := map[int]error{
		http.StatusOK:                  nil,
		http.StatusCreated:             nil,
		http.StatusBadRequest:          ErrValidation,
		http.StatusUnprocessableEntity: ErrValidation,
		http.StatusUnauthorized:        ErrUnauthorized,
		http.StatusForbidden:           ErrForbidden,
		http.StatusNotFound:            ErrNotFound,
		http.StatusConflict:            ErrDuplicate,
		http.StatusInternalServerError: ErrUpstream,
		http.StatusBadGateway:          ErrUpstream,
	}
	for status, want := range cases {
		assert.Equal(t, want, StatusError(status), "status %d", status)
	}
}

func TestRespondErrorWrapped(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("members: %w", ErrNotFound))
	require.Equal(t, http.StatusNotFound, rr.Code)

	var problem ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
	assert.Equal(t, "Not Found", problem.Title)
	assert.Contains(t, problem.Detail, "members")
}

func TestRespondErrorUnknownHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("boom"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var problem ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
	assert.Empty(t, problem.Detail)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(fmt.Errorf("create: %w", ErrValidation)))
	assert.Equal(t, http.StatusConflict, StatusOf(ErrDuplicate))
	assert.Equal(t, http.StatusBadGateway, StatusOf(fmt.Errorf("dial: refused")))
}
