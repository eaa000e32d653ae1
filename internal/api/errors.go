package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Error codes raised directly by the API layer.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondServiceError maps a service-layer error onto the wire. CoreErrors
// carry their own status code and structured details; anything else is an
// opaque internal error.
func respondServiceError(w http.ResponseWriter, err error) {
	var coreErr *apperrors.CoreError
	if errors.As(err, &coreErr) {
		svcErr := coreErr.ToServiceError()
		respondError(w, coreErr.StatusCode, svcErr.Code, svcErr.Message, svcErr.Details)
		return
	}

	var svcErr *types.ServiceError
	if errors.As(err, &svcErr) {
		respondError(w, http.StatusBadRequest, svcErr.Code, svcErr.Message, svcErr.Details)
		return
	}

	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal server error occurred", nil)
}
