package errs

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// codes maps application error codes to http status codes.
var codes = map[string]int{
	EINVALID:         http.StatusBadRequest,
	ENOTFOUND:        http.StatusNotFound,
	EUNAUTHORIZED:    http.StatusForbidden,
	EUNAUTHENTICATED: http.StatusUnauthorized,
	EINTERNAL:        http.StatusInternalServerError,
}

// ErrorStatusCode returns the http status code for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the json body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason Reason `json:"reason,omitempty"`
}

// ReturnError writes an error as json to the response writer, setting the status
// code that belongs to the error's code. Internal errors are logged, since their
// actual message never reaches the client.
func ReturnError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := ErrorCode(err), ErrorMessage(err)
	if code == EINTERNAL {
		LogError(r, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ErrorStatusCode(code))
	if err := json.NewEncoder(w).Encode(&ErrorResponse{Error: message, Reason: ErrorReason(err)}); err != nil {
		LogError(r, err)
	}
}

// LogError logs an error together with the request that caused it.
func LogError(r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
}
