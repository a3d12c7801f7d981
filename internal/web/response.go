package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Data  any        `json:"data"`
	Meta  any        `json:"meta"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody describes a failure or, on partial success, a warning.
type ErrorBody struct {
	Code        int    `json:"code,omitempty"`
	Type        string `json:"type,omitempty"`
	Message     string `json:"message"`
	Field       string `json:"field,omitempty"`
	SupportCode string `json:"supportCode,omitempty"`
	Action      string `json:"action,omitempty"`
}

// OK wraps a successful payload.
func OK(data, meta any) Response {
	return Response{Data: data, Meta: meta}
}

// Created wraps the payload of a successful insert.
func Created(data any) Response {
	return Response{Data: data}
}

// Warning wraps a payload that succeeded only in part.
func Warning(data, meta any, message string) Response {
	resp := Response{Data: data, Meta: meta}
	if message != "" {
		resp.Error = &ErrorBody{Message: message}
	}
	return resp
}

// Fail wraps an error message with no payload.
func Fail(message string, meta any) Response {
	return Response{Meta: meta, Error: &ErrorBody{Message: message}}
}

// PageMeta accompanies paged listings.
type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// writeJSON encodes v with status. Encoding errors are logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// writeFail writes a Fail envelope for request-level problems that never
// reach a service.
func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Fail(message, nil))
}
