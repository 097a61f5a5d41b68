package api

import (
	"encoding/json"
	"net/http"

	"github.com/strefethen/sonos-control/internal/apperrors"
)

// ErrorResponse wraps errors as {"success": false, "error": {...}}.
type ErrorResponse struct {
	Success   bool                `json:"success"`
	Error     apperrors.ErrorBody `json:"error"`
	RequestID string              `json:"request_id,omitempty"`
}

// WriteJSON sends a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// WriteError serializes an AppError into the error response.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.EnsureAppError(err)

	_ = WriteJSON(w, appErr.StatusCode, ErrorResponse{
		Success:   false,
		Error:     appErr.ErrorBody(),
		RequestID: GetRequestID(r),
	})
}

// WriteSuccess writes {"success": true} merged with fields.
// Example: WriteSuccess(w, map[string]any{"volume": 40})
// Produces: {"success": true, "volume": 40}
func WriteSuccess(w http.ResponseWriter, fields map[string]any) error {
	payload := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		payload[key] = value
	}
	payload["success"] = true
	return WriteJSON(w, http.StatusOK, payload)
}

// WriteXML sends a raw XML document.
func WriteXML(w http.ResponseWriter, status int, document string) error {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(document))
	return err
}
