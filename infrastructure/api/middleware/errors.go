package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/infrastructure/api/jsonapi"
	"github.com/helixml/vidchat/internal/log"
)

// CorrelationIDHeader carries the request correlation id in both directions.
const CorrelationIDHeader = "X-Correlation-ID"

// APIError is an error with an explicit HTTP status.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates an APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the client-facing message.
func (e *APIError) Message() string { return e.message }

// CorrelationID ensures every request carries a correlation id, taken from
// the request header or generated, and echoes it on the response.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(log.WithCorrelationID(r.Context(), id)))
	})
}

// StatusFor maps an error to its HTTP status and title.
func StatusFor(err error) (int, string) {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code(), http.StatusText(apiErr.Code())
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Validation Error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, domain.ErrIngestion):
		return http.StatusBadGateway, "Ingestion Failed"
	case errors.Is(err, domain.ErrClassification):
		return http.StatusServiceUnavailable, "Classification Unavailable"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// WriteError writes a JSON:API formatted error response.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status, title := StatusFor(err)
	detail := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		detail = apiErr.Message()
	}
	if status == http.StatusInternalServerError {
		detail = "An error occurred while processing your request."
	}

	correlationID := log.CorrelationID(r.Context())
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request error",
		slog.Int("status", status),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)

	e := jsonapi.NewError(status, title, detail)
	e.ID = correlationID
	doc := jsonapi.NewErrorResponse(e)
	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
