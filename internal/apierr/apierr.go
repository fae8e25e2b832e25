// Package apierr defines the error kinds shared by the ingest API and the
// bridge, and the HTTP responder that maps them to status codes.
//
// Handlers never write http.Error or json.Marshal an ad-hoc body directly;
// they return an error and let WriteError translate it. This keeps the
// wire contract ({"detail": "..."}) uniform and guarantees internal errors
// never leak a stack trace or a driver-specific message to the client.
package apierr

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/logging"
)

// Kind classifies an error for HTTP status mapping.
type Kind int

const (
	// KindBackend is the default: an unexpected internal failure.
	KindBackend Kind = iota
	KindAuth
	KindValidation
	KindNotFound
	KindConflict
	KindIntegrity
)

// Error is a typed API error carrying a kind, a client-safe detail message,
// and the underlying cause (logged, never serialized).
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Detail + ": " + e.Cause.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Cause }

// Auth builds an AuthError: unauthenticated, wrong key, wrong role.
func Auth(detail string) error { return &Error{Kind: KindAuth, Detail: detail} }

// Validation builds a ValidationError: malformed envelope, invalid enum,
// hash mismatch, invalid UUID.
func Validation(detail string) error { return &Error{Kind: KindValidation, Detail: detail} }

// NotFound builds a NotFound error: video, user, job.
func NotFound(detail string) error { return &Error{Kind: KindNotFound, Detail: detail} }

// Conflict builds a Conflict error: duplicate username, reindex during processing.
func Conflict(detail string) error { return &Error{Kind: KindConflict, Detail: detail} }

// Integrity builds an IntegrityError: audit chain broken.
func Integrity(detail string) error { return &Error{Kind: KindIntegrity, Detail: detail} }

// Backend wraps an unexpected backend failure (object store, database,
// model load) with a client-safe detail and the real cause for logging.
func Backend(detail string, cause error) error {
	return &Error{Kind: KindBackend, Detail: detail, Cause: cause}
}

func statusFor(k Kind) int {
	switch k {
	case KindAuth:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindIntegrity:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type detailBody struct {
	Detail string `json:"detail"`
}

// WriteError maps err to a status code and writes a terse {"detail": ...}
// body. Unrecognized errors are treated as KindBackend and logged with
// their real cause; the client only ever sees a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = &Error{Kind: KindBackend, Detail: "internal error", Cause: err}
	}

	status := statusFor(apiErr.Kind)
	if apiErr.Cause != nil {
		logging.Error().Err(apiErr.Cause).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg(apiErr.Detail)
	}

	detail := apiErr.Detail
	if apiErr.Kind == KindBackend && apiErr.Detail == "" {
		detail = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(detailBody{Detail: detail})
}
