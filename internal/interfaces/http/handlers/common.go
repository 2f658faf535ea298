// Package handlers holds the HTTP handlers of the recommendation API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// DefaultMaxBodySize caps request bodies when no limit is configured.
const DefaultMaxBodySize int64 = 10 << 20

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError maps an error to its HTTP status through the error code
// table.  Server-side failures are masked with the code's default message.
func writeAppError(w http.ResponseWriter, logger logging.Logger, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: string(code)}
	var appErr *errors.AppError
	if errors.As(err, &appErr) && !errors.IsServerError(code) {
		resp.Message = appErr.Message
		resp.Detail = appErr.Detail
	} else {
		resp.Message = errors.DefaultMessageForCode(code)
	}
	if status >= http.StatusInternalServerError {
		logging.OrNop(logger).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.String("code", string(code)),
			logging.Err(err))
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads at most limit bytes of JSON into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) error {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.InvalidParam("request body is empty")
		}
		return errors.InvalidParam("invalid request body").WithDetail(err.Error())
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.InvalidParam("invalid query parameter").WithDetailf("%s=%q is not an integer", name, v)
	}
	return n, nil
}

// queryFloat parses an optional decimal query parameter.
func queryFloat(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.InvalidParam("invalid query parameter").WithDetailf("%s=%q is not a number", name, v)
	}
	return f, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.InvalidParam("invalid query parameter").WithDetailf("%s=%q is not a boolean", name, v)
	}
	return b, nil
}

// NotFound answers unmatched routes with a JSON error body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Code:    string(errors.ErrCodeNotFound),
		Message: "route not found",
		Detail:  r.URL.Path,
	})
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Code:    string(errors.ErrCodeBadRequest),
		Message: "method not allowed",
		Detail:  r.Method + " " + r.URL.Path,
	})
}
