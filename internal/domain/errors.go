package domain

import "errors"

// Domain errors
var (
	// Token errors
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenNotActive   = errors.New("token is not active yet")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotQueued   = errors.New("token is not in the waiting queue")
	ErrUserHasLiveToken = errors.New("user already has a live admission token")

	// Reservation errors
	ErrReservationNotFound         = errors.New("reservation not found")
	ErrReservationExpired          = errors.New("reservation hold has expired")
	ErrReservationAlreadyConfirmed = errors.New("reservation already confirmed")
	ErrReservationAlreadyReleased  = errors.New("reservation already cancelled or expired")
	ErrReservationAccessDenied     = errors.New("reservation does not belong to this user")

	// Seat errors
	ErrSeatNotFound        = errors.New("seat not found")
	ErrSeatAlreadyReserved = errors.New("seat is already held or confirmed")

	// Limit errors
	ErrUserReservationLimit = errors.New("user already has a live reservation for this concert")
	ErrTooManyHoldAttempts  = errors.New("too many concurrent reservation attempts, try again")

	// Validation errors
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidTokenID       = errors.New("invalid token id")
	ErrInvalidSeatID        = errors.New("invalid seat id")
	ErrInvalidReservationID = errors.New("invalid reservation id")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrSeatNotFound) ||
		errors.Is(err, ErrTokenNotQueued)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSeatAlreadyReserved) ||
		errors.Is(err, ErrUserReservationLimit) ||
		errors.Is(err, ErrUserHasLiveToken) ||
		errors.Is(err, ErrReservationAlreadyConfirmed) ||
		errors.Is(err, ErrReservationAlreadyReleased)
}

// IsExpiredError checks if the error is an expiration error
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrReservationExpired)
}

// IsBackpressureError checks if the error signals load shedding; callers may retry
func IsBackpressureError(err error) bool {
	return errors.Is(err, ErrTooManyHoldAttempts)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidTokenID) ||
		errors.Is(err, ErrInvalidSeatID) ||
		errors.Is(err, ErrInvalidReservationID)
}
