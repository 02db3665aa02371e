package web

// errors.go renders every error the same way:
//  1. the error is mapped through reconcile.MapError to a user message
//  2. the technical error is logged with the request id
//  3. the message goes out as JSON, or as an HTML fragment for HTMX
//
// The status code follows the error: input problems are 4xx, storage and
// verification failures are 5xx.

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/logging"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/reconcile"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/web/templates"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("no file provided")
	errFileTooBig  = errors.New("file too large")
	errBadBody     = errors.New("invalid request body")
)

// ErrorResponse is the JSON body of an error response.
// Code is machine-readable; Message and Action are for people.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Phase   string `json:"phase,omitempty"`

	// Sync failures carry the run's collection ids and counts.
	CollectionID string             `json:"collectionId,omitempty"`
	ResolvedID   string             `json:"resolvedId,omitempty"`
	Expected     *store.TableCounts `json:"expected,omitempty"`
	Actual       *store.TableCounts `json:"actual,omitempty"`

	// Detail is the error text itself, for sync failures and for input
	// errors with a known message.
	Detail string `json:"detail,omitempty"`
}

// newErrorResponse maps err into a response body.
func newErrorResponse(err error) ErrorResponse {
	msg := reconcile.MapError(err)
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}

	var se *reconcile.SyncError
	if errors.As(err, &se) {
		resp.Kind = string(se.Kind)
		resp.Phase = string(se.Phase)
		resp.CollectionID = se.CollectionID
		resp.ResolvedID = se.ResolvedID
		expected, actual := se.Expected, se.Actual
		resp.Expected, resp.Actual = &expected, &actual
		resp.Detail = err.Error()
	} else if reconcile.IsUserFacing(err) {
		resp.Detail = err.Error()
	}
	return resp
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch reconcile.KindOf(err) {
	case reconcile.KindInputEmpty, reconcile.KindInvalidEntity:
		return http.StatusUnprocessableEntity
	case reconcile.KindUnknownCollection:
		return http.StatusNotFound
	case reconcile.KindTransactionFailure, reconcile.KindVerificationMismatch:
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, reconcile.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrTooManyRuns):
		return http.StatusTooManyRequests
	case errors.Is(err, worksheet.ErrUnknownSlot):
		return http.StatusUnprocessableEntity
	case errors.Is(err, worksheet.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, store.ErrCollectionExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrEmptyCollectionID), errors.Is(err, errNoFile), errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooBig):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message with status.
// A zero status is derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	resp := newErrorResponse(err)

	logger := logging.FromContext(r.Context())
	logArgs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", resp.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", logArgs...)
	} else {
		logger.Warn("request error", logArgs...)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(resp.Message, resp.Action, resp.Code, resp.Detail).Render(r.Context(), w); err != nil {
			logger.Error("render error fragment", "error", err)
		}
		return
	}

	writeJSON(w, r, status, resp)
}

// writeJSON encodes v as JSON with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// clientIP strips the port from RemoteAddr when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
