package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/ledger"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/utils"
)

// Error types reported in the error envelope.
const (
	errTypeBadRequest   = "bad_request"
	errTypeInvalidImage = "invalid_image"
	errTypeTooLarge     = "too_large"
	errTypeBusy         = "busy"
	errTypeDuplicate    = "duplicate"
	errTypeNoCandidate  = "no_candidate"
	errTypeNotFound     = "not_found"
	errTypeGeometry     = "geometry"
	errTypeRecognition  = "recognition"
	errTypePersist      = "persist"
	errTypeInternal     = "internal"
)

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("bad request")

// classifyError maps a session error to an HTTP status and an error type.
func classifyError(err error) (int, string) {
	var recErr *scanner.RecognitionError
	var persistErr *scanner.PersistError
	var imgErr *utils.ImageProcessingError

	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errTypeBadRequest
	case errors.Is(err, scanner.ErrBusy):
		return http.StatusConflict, errTypeBusy
	case errors.Is(err, ledger.ErrDuplicate):
		return http.StatusConflict, errTypeDuplicate
	case errors.Is(err, ledger.ErrNoCandidate):
		return http.StatusConflict, errTypeNoCandidate
	case errors.Is(err, ledger.ErrCodeNotFound):
		return http.StatusNotFound, errTypeNotFound
	case errors.Is(err, geometry.ErrInvalidGeometry),
		errors.Is(err, geometry.ErrEmptyRegion),
		errors.Is(err, geometry.ErrRegionOutOfBounds):
		return http.StatusUnprocessableEntity, errTypeGeometry
	case errors.As(err, &recErr):
		return http.StatusBadGateway, errTypeRecognition
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, errTypePersist
	case errors.Is(err, scanner.ErrNoFrame), errors.As(err, &imgErr):
		return http.StatusBadRequest, errTypeInvalidImage
	default:
		return http.StatusInternalServerError, errTypeInternal
	}
}

// writeError writes err using the status it maps to.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, errType := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "error_type", errType)
	}
	s.writeErrorResponse(w, err.Error(), errType, status)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, errType string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorType: errType,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log error, but can't send another response
		slog.Error("Failed to encode response", "error", err)
	}
}
