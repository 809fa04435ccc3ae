package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/internal/dto"
)

// handleError maps domain errors to HTTP responses
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "TOKEN_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "RESERVATION_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrSeatNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SEAT_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrTokenNotActive):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "TOKEN_NOT_ACTIVE",
			Message: "Wait for your turn before reserving seats.",
		})
	case errors.Is(err, domain.ErrTokenExpired):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "TOKEN_EXPIRED",
			Message: "Re-enter the waiting room to get a new token.",
		})
	case errors.Is(err, domain.ErrReservationExpired):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "RESERVATION_EXPIRED",
			Message: "The hold has expired. Pick a seat again.",
		})
	case errors.Is(err, domain.ErrSeatAlreadyReserved):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SEAT_ALREADY_RESERVED",
		})
	case errors.Is(err, domain.ErrUserHasLiveToken):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "USER_HAS_TOKEN",
		})
	case errors.Is(err, domain.ErrUserReservationLimit):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "USER_RESERVATION_LIMIT",
		})
	case errors.Is(err, domain.ErrReservationAlreadyConfirmed):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ALREADY_CONFIRMED",
		})
	case errors.Is(err, domain.ErrReservationAlreadyReleased):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ALREADY_RELEASED",
		})
	case errors.Is(err, domain.ErrReservationAccessDenied):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ACCESS_DENIED",
		})
	case errors.Is(err, domain.ErrTooManyHoldAttempts):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "TOO_MANY_ATTEMPTS",
			Message: "The system is busy. Retry in a moment.",
		})
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
