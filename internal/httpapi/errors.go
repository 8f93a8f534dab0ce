package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"llmgate/internal/manager"
	"llmgate/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeJSON writes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// statusFor maps manager errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case manager.IsModelNotFound(err):
		return http.StatusNotFound
	case manager.IsDraining(err), manager.IsAlreadyExists(err):
		return http.StatusConflict
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsBackendUnreachable(err), manager.IsBackendFailure(err):
		return http.StatusBadGateway
	case manager.IsInvalid(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if _, ok := manager.IsSafetyDenied(err); ok {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Capacity rejections
// carry Retry-After and count as backpressure.
func (a *api) writeServiceError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
		a.agg.IncBackpressure("capacity")
	}
	writeJSONError(w, status, err.Error())
	return status
}
