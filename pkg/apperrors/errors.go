package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every domain error below wraps exactly one of them.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrLimitExceeded   = errors.New("limit exceeded")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)

// Domain errors for promo code redemption
var (
	ErrPromoCodeNotFound       = fmt.Errorf("%w: promo code", ErrNotFound)
	ErrOrderNotFound           = fmt.Errorf("%w: order", ErrNotFound)
	ErrPromoCodeInactive       = fmt.Errorf("%w: promo code is not active", ErrInvalidState)
	ErrOutsideValidityWindow   = fmt.Errorf("%w: promo code is outside its validity window", ErrInvalidState)
	ErrPromoCodeAlreadyApplied = fmt.Errorf("%w: order already has a promo code applied", ErrInvalidState)
	ErrUserLimitExceeded       = fmt.Errorf("%w: user has reached the per-user limit for this promo code", ErrLimitExceeded)
	// ErrTotalLimitRace is returned when the conditional increment finds the
	// cap already reached, i.e. a concurrent redemption committed first.
	ErrTotalLimitRace         = fmt.Errorf("%w: promo code total limit reached by a concurrent redemption", ErrLimitExceeded)
	ErrPromoCodeAlreadyExists = fmt.Errorf("%w: promo code already exists", ErrConflict)
)

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrLimitExceeded),
		errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsDomain reports whether err belongs to the taxonomy above, as opposed to
// an infrastructure failure.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrConflict)
}

// InvalidArgument builds an ErrInvalidArgument with a field-specific message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
