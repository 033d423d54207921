// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrDuplicate          = errors.New("duplicate entry")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrRateLimited        = errors.New("rate limited")
)

// Error codes carried in the response envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicate          = "DUPLICATE_RESOURCE"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is a domain error with a client-facing message. Kind is one of the
// sentinels above and drives the HTTP status.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// NewError builds an Error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// ValidationFailed reports per-field validation messages.
func ValidationFailed(fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Message: "Validation failed", Fields: fields}
}

type classification struct {
	status  int
	code    string
	message string
}

var classes = []struct {
	kind error
	classification
}{
	{ErrValidation, classification{http.StatusBadRequest, CodeValidation, "Validation failed"}},
	{ErrDuplicate, classification{http.StatusBadRequest, CodeDuplicate, "Resource already exists"}},
	{ErrTokenExpired, classification{http.StatusUnauthorized, CodeTokenExpired, "Token expired"}},
	{ErrInvalidToken, classification{http.StatusUnauthorized, CodeInvalidToken, "Invalid token"}},
	{ErrInvalidCredentials, classification{http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials"}},
	{ErrUnauthorized, classification{http.StatusUnauthorized, CodeUnauthenticated, "Authentication required"}},
	{ErrAccountDeactivated, classification{http.StatusForbidden, CodeAccountDeactivated, "Account is deactivated"}},
	{ErrForbidden, classification{http.StatusForbidden, CodeForbidden, "Insufficient permissions"}},
	{ErrNotFound, classification{http.StatusNotFound, CodeNotFound, "Resource not found"}},
	{ErrRateLimited, classification{http.StatusTooManyRequests, CodeRateLimited, "Too many requests"}},
}

func classify(err error) classification {
	for _, c := range classes {
		if errors.Is(err, c.kind) {
			return c.classification
		}
	}
	return classification{http.StatusInternalServerError, CodeInternal, "Internal server error"}
}

// StatusFor returns the HTTP status an error maps to.
func StatusFor(err error) int {
	return classify(err).status
}

// Responder writes error envelopes. Stack traces are only attached when Debug
// is set, which must never be the case in production.
type Responder struct {
	Logger *slog.Logger
	Debug  bool
}

// Error maps err onto the response taxonomy and writes it.
func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	c := classify(err)
	body := ErrorBody{Success: false, Message: c.message, Code: c.code}

	var domainErr *Error
	if errors.As(err, &domainErr) && c.status != http.StatusInternalServerError {
		if domainErr.Message != "" {
			body.Message = domainErr.Message
		}
		body.Errors = domainErr.Fields
	}

	if c.status == http.StatusInternalServerError {
		if rs.Logger != nil {
			attrs := []any{slog.Any("error", err)}
			if r != nil {
				attrs = append(attrs, slog.String("path", r.URL.Path))
			}
			rs.Logger.Error("internal error", attrs...)
		}
		if rs.Debug {
			body.Error = err.Error()
			body.Stack = string(debug.Stack())
		}
	}
	JSON(w, c.status, body)
}

// RespondError writes err without debug details.
func RespondError(w http.ResponseWriter, err error) {
	Responder{}.Error(w, nil, err)
}
