package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/storage"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type
func HandleError(w http.ResponseWriter, err error) {
	slog.Error("request error", "error", err)

	if errors.Is(err, quire.ErrNotFound) || errors.Is(err, storage.ErrBlobNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "Book not found")
		return
	}

	if errors.Is(err, quire.ErrInvalidInput) {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid input")
		return
	}

	if errors.Is(err, storage.ErrAllProvidersFailed) {
		WriteError(w, http.StatusBadGateway, "storage_unavailable", "No storage provider accepted the file")
		return
	}

	// Default internal error
	WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
