package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/stylesync/internal/imagestore"
	"github.com/benvon/stylesync/internal/ingest"
	logpkg "github.com/benvon/stylesync/internal/logger"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/benvon/stylesync/internal/wardrobe"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxErrorMessageLength bounds messages returned to clients
const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	sanitized := strings.TrimSpace(message)
	if len(sanitized) > maxErrorMessageLength {
		sanitized = sanitized[:maxErrorMessageLength] + "..."
	}
	return sanitized
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondServiceError maps pipeline errors to HTTP statuses. Unexpected
// errors are logged and reported without detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		decodeErr     *ingest.DecodeError
		validationErr *stylist.ValidationError
		emptyErr      *stylist.EmptyWardrobeError
		serviceErr    *ai.ExternalServiceError
		tooLarge      *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
			fmt.Sprintf("Upload exceeds the %d byte limit", tooLarge.Limit))
	case errors.As(err, &decodeErr):
		respondJSONError(w, http.StatusBadRequest, "Invalid Image", decodeErr.Error())
	case errors.As(err, &validationErr):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validationErr.Error())
	case errors.As(err, &emptyErr):
		respondJSONError(w, http.StatusConflict, "Empty Wardrobe", emptyErr.Error())
	case errors.As(err, &serviceErr):
		logger.Warn("external_service_error",
			zap.String("operation", serviceErr.Op),
			zap.Bool("timeout", serviceErr.Timeout),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(serviceErr.Err)),
		)
		if serviceErr.Timeout {
			respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "The AI service did not respond in time, please try again")
			return
		}
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "The AI service is unavailable, please try again later")
	case errors.Is(err, wardrobe.ErrItemNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Wardrobe item not found")
	case errors.Is(err, imagestore.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Image not found")
	case errors.Is(err, wardrobe.ErrInvalidSessionID), errors.Is(err, imagestore.ErrInvalidKey):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, stylist.ErrAsyncUnavailable):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "The request timed out")
	default:
		logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
	}
}

// decodeJSONBody decodes a JSON request body, rejecting unknown fields
func decodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return &stylist.ValidationError{Message: "Invalid request body: " + err.Error()}
	}
	return nil
}

// itemIDFromPath parses the {id} route variable
func itemIDFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, &stylist.ValidationError{Message: "Invalid item ID"}
	}
	return id, nil
}
