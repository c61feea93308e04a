package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// retryAfterSeconds is advertised on responses the client may simply repeat.
const retryAfterSeconds = 1

// WriteError renders err as an ErrorResponse. Unknown errors become
// INTERNAL_ERROR; their cause is logged and never sent to the client.
func WriteError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	status := appErr.StatusCode()

	if status >= http.StatusInternalServerError && appErr.Err != nil {
		slog.Error("request failed", "code", appErr.Code, "error", appErr.Err)
	}

	w.Header().Set("Content-Type", "application/json")
	switch status {
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	w.WriteHeader(status)

	body := ErrorResponse{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		slog.Error("failed to encode error response", "error", encErr, "code", appErr.Code)
	}
}
