package errors

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Display       string         `json:"message"`
	InternalError string         `json:"internal_error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// NewErrorResponse shapes an error for the HTTP boundary, surfacing
// the first hint attached by the builder and any reportable details.
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Display: displayMessage(err),
			Details: reportableDetails(err),
		},
	}
}

func displayMessage(err error) string {
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		// First non-empty hint - GetAllHints is post-order traversal
		for _, hint := range hints {
			if hint = strings.TrimSpace(hint); hint != "" {
				return hint
			}
		}
	}

	return "An unexpected error occurred"
}

func reportableDetails(err error) map[string]any {
	details := make(map[string]any)

	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			if len(payload) > 9 && strings.HasPrefix(payload, "__json__:") {
				var jsonDetails map[string]any
				if err := json.Unmarshal([]byte(payload[9:]), &jsonDetails); err == nil {
					for k, v := range jsonDetails {
						details[k] = v
					}
				}
			}
		}
	}

	return details
}
