package apierr

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps an error from the service layer onto an HTTP status and a stable code.
// Persistence and unknown failures get a generic message so driver text never reaches a client.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperrors.ErrValidation):
		return New(http.StatusBadRequest, "validation_error", err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, apperrors.ErrForbidden):
		return New(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, apperrors.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, apperrors.ErrUpstreamRateLimited):
		return New(http.StatusTooManyRequests, "upstream_rate_limited", err)
	case errors.Is(err, apperrors.ErrUpstreamUnavailable), errors.Is(err, apperrors.ErrUpstreamUnauthorized):
		return New(http.StatusBadGateway, "upstream_unavailable", err)
	case errors.Is(err, apperrors.ErrPersistence):
		return New(http.StatusInternalServerError, "internal_error", errors.New("internal error"))
	default:
		return New(http.StatusInternalServerError, "internal_error", errors.New("internal error"))
	}
}
