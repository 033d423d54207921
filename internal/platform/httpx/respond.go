package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorBody is the failure envelope.
type ErrorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Error   string            `json:"error,omitempty"`
	Stack   string            `json:"stack,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success sends a success envelope. Fields are merged next to success and message.
func Success(w http.ResponseWriter, status int, message string, fields map[string]any) {
	body := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	body["message"] = message
	JSON(w, status, body)
}

// DecodeJSON decodes JSON request body into the target struct. Malformed
// bodies surface as validation errors.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return NewError(ErrValidation, "Request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return NewError(ErrValidation, "Request body is required")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &Error{
				Kind:    ErrValidation,
				Message: "Validation failed",
				Fields:  map[string]string{typeErr.Field: fmt.Sprintf("must be a %s", typeErr.Type.String())},
			}
		}
		return NewError(ErrValidation, "Malformed JSON body")
	}
	return nil
}
