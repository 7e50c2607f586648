package api

import (
	"encoding/json"
	"errors"
	"net/http"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
)

// APIError is the standard error response format.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONResponse writes a successful JSON response.
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// JSONResponseStatus writes a JSON response with a specific status code.
func JSONResponseStatus(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JSONError writes a plain error response.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{Error: message})
}

// HandleError maps engine error codes to HTTP statuses.
func HandleError(w http.ResponseWriter, err error) {
	var engErr *ucerrors.EngineError
	if errors.As(err, &engErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(engErr.HTTPStatus())
		_ = json.NewEncoder(w).Encode(APIError{
			Error: engErr.What,
			Code:  string(engErr.Code),
		})
		return
	}
	JSONError(w, err.Error(), http.StatusInternalServerError)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
