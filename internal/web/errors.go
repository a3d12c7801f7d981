package web

// errors.go maps service errors onto HTTP responses.
//
// Classified errors keep their message and get a status from their kind:
// validation 400, conflict 409, not found 404. Everything else is a 500
// whose body carries the support code from core.MapError, never the raw
// error text. The technical error is logged with the request ID so support
// can find it from the code.

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ngaotu/misa-crm-backend/internal/core"
	"github.com/ngaotu/misa-crm-backend/internal/logging"
)

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindConflict:
		return http.StatusConflict
	case core.KindNotFound:
		return http.StatusNotFound
	}
	if errors.Is(err, core.ErrTooManyImports) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorType(kind core.Kind) string {
	switch kind {
	case core.KindValidation:
		return "Validation"
	case core.KindConflict:
		return "Conflict"
	case core.KindNotFound:
		return "NotFound"
	default:
		return "ServerError"
	}
}

// respondError logs err and writes the mapped envelope.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)
	kind := core.KindOf(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	body := &ErrorBody{
		Code:        status,
		Type:        errorType(kind),
		Message:     userMsg.Message,
		SupportCode: userMsg.Code,
		Action:      userMsg.Action,
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		body.Field = ce.Field
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, Response{Error: body})
}
