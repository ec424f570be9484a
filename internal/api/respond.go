package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/outreach/internal/automation"
	"github.com/sells-group/outreach/internal/model"
)

// Error codes carried in the error body.
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnauthorized   = "unauthorized"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeRateLimited    = "rate_limited"
	CodeConfiguration  = "configuration_error"
	CodeInternal       = "internal_error"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorBody{Error: code, Details: details})
}

// writeErr maps a request-path error onto a status code and error body.
// Internal failures are logged and their details withheld.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *automation.ValidationError
		nerr *automation.NotFoundError
		cerr *automation.ConfigurationError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, verr.Error())
	case errors.As(err, &nerr):
		writeError(w, http.StatusNotFound, CodeNotFound, nerr.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "")
	case errors.As(err, &cerr):
		zap.L().Error("api: configuration error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeConfiguration, cerr.Error())
	default:
		zap.L().Error("api: request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "")
	}
}
