package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrMalformedInput = errors.New("malformed input")
	ErrRemoteQuery    = errors.New("remote query failure")
	ErrNoFunds        = errors.New("no funds available")
	ErrRemotePayment  = errors.New("remote payment failure")
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
)

// Kind returns a stable label for err, used as a structured log attribute.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"

	// remote failures are checked before timeouts so that a timed out
	// ledger call keeps its step-specific kind
	case errors.Is(err, ErrRemoteQuery):
		return "remote_query_failure"

	case errors.Is(err, ErrNoFunds):
		return "no_funds_available"

	case errors.Is(err, ErrRemotePayment):
		return "remote_payment_failure"

	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrMalformedInput):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrNoFunds):
		return http.StatusPaymentRequired

	case errors.Is(err, ErrRemoteQuery),
		errors.Is(err, ErrRemotePayment):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}
