// Package apperrors defines the error taxonomy shared across the service.
//
// Handlers map these onto HTTP statuses; everything else wraps them with
// fmt.Errorf("...: %w", err) so errors.Is keeps working through the stack.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks bad or missing caller input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks a persistence failure.
	ErrStorage = errors.New("storage error")

	// ErrChannelDelivery marks a single delivery channel failing. It is
	// non-fatal: the dispatcher logs it and moves on to the next channel.
	ErrChannelDelivery = errors.New("channel delivery error")
)

// Validation builds a validation error for a named field.
func Validation(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// NotFound builds a not-found error for a resource.
func NotFound(resource string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, resource)
}

// Storage wraps a low-level persistence error.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// ChannelDelivery wraps a failed delivery attempt on one channel.
func ChannelDelivery(channel string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrChannelDelivery, channel, err)
}

// HTTPStatus maps an error to the status code handlers should return.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
