package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrDuplicate, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrInvalidToken, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrAccountDeactivated, http.StatusForbidden},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("wrapped: %w", NewError(ErrTokenExpired, "Token expired")), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusFor(tc.err), tc.err.Error())
	}
}

func TestResponderDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	Responder{}.Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), ValidationFailed(map[string]string{"email": "must be a valid email address"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, CodeValidation, body.Code)
	assert.Equal(t, "must be a valid email address", body.Errors["email"])
}

func TestResponderInternalErrorHidesDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	Responder{}.Error(rec, req, errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.NotContains(t, rec.Body.String(), "stack")

	rec = httptest.NewRecorder()
	Responder{Debug: true}.Error(rec, req, errors.New("pq: connection refused"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body.Message)
	assert.Equal(t, "pq: connection refused", body.Error)
	assert.NotEmpty(t, body.Stack)
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, "Created", map[string]any{"token": "abc", "success": false})

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Created", body["message"])
	assert.Equal(t, "abc", body["token"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	cases := []struct {
		name    string
		body    string
		message string
		field   string
	}{
		{name: "empty", body: "", message: "Request body is required"},
		{name: "malformed", body: "{", message: "Malformed JSON body"},
		{name: "wrong type", body: `{"age":"ten"}`, message: "Validation failed", field: "age"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p payload
			err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)), &p)
			require.ErrorIs(t, err, ErrValidation)
			var domainErr *Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tc.message, domainErr.Message)
			if tc.field != "" {
				assert.Contains(t, domainErr.Fields, tc.field)
			}
		})
	}

	var p payload
	require.NoError(t, DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada","extra":1}`)), &p))
	assert.Equal(t, "Ada", p.Name)
}

func TestValidateUsesJSONNames(t *testing.T) {
	type req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	err := Validate(NewValidator(), req{Email: "nope", Password: "short"})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "must be a valid email address", domainErr.Fields["email"])
	assert.Equal(t, "must be at least 8 characters", domainErr.Fields["password"])

	require.NoError(t, Validate(NewValidator(), req{Email: "ada@example.com", Password: "longenough"}))
}
