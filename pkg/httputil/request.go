package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
)

// ParseJSON decodes a JSON request body into dest and checks its
// `validate` tags. Malformed, empty and invalid bodies are InvalidInput; a
// body cut off by MaxBytesMiddleware is returned as the *http.MaxBytesError.
func ParseJSON(r *http.Request, dest interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dest)
	if err == nil {
		return Validate(dest)
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return tooLarge
	}
	if errors.Is(err, io.EOF) {
		return apperrors.InvalidInput("request body is required")
	}
	return apperrors.InvalidInput("invalid JSON: %v", err)
}

// ParseJSONOrError decodes JSON and writes the error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	err := ParseJSON(r, dest)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteErrorMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	WriteAppError(w, err)
	return false
}

// ParsePathString extracts a route variable
func ParsePathString(r *http.Request, key string) (string, error) {
	if val := mux.Vars(r)[key]; val != "" {
		return val, nil
	}
	return "", apperrors.InvalidInput("missing path parameter: %s", key)
}

// ParsePathStringOrError extracts a route variable and writes 400 when it is absent
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val, err := ParsePathString(r, key)
	if err != nil {
		WriteAppError(w, err)
		return "", false
	}
	return val, true
}

// ParseQueryString extracts a query parameter or returns defaultVal
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	if val := r.URL.Query().Get(key); val != "" {
		return val
	}
	return defaultVal
}

// RequireNonEmpty writes 400 "<field> is required" when value is empty
func RequireNonEmpty(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		WriteBadRequest(w, fmt.Sprintf("%s is required", fieldName))
		return false
	}
	return true
}
