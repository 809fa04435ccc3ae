package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

// AdmissionTokenHeader carries the waiting room token on reservation requests
const AdmissionTokenHeader = "X-Admission-Token"

// ReservationHandler handles seat reservation HTTP requests
type ReservationHandler struct {
	reservationService service.ReservationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationService service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// HoldSeat handles POST /reservations
// Requires an active admission token in the X-Admission-Token header.
func (h *ReservationHandler) HoldSeat(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tokenID := c.GetHeader(AdmissionTokenHeader)
	if tokenID == "" {
		span.SetStatus(codes.Error, "admission token required")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "admission token required",
			Code:    "TOKEN_REQUIRED",
			Message: "Enter the waiting room first.",
		})
		return
	}

	var req dto.HoldSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.Int64("user_id", req.UserID),
		attribute.String("seat_id", req.SeatID),
	)

	result, err := h.reservationService.HoldSeat(ctx, tokenID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("reservation_id", result.ReservationID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// Confirm handles POST /reservations/:id/confirm
func (h *ReservationHandler) Confirm(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.confirm")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "reservation id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var req dto.ConfirmReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.Int64("user_id", req.UserID),
	)

	result, err := h.reservationService.ConfirmReservation(ctx, reservationID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Cancel handles POST /reservations/:id/cancel
func (h *ReservationHandler) Cancel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "reservation id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var req dto.CancelReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.Int64("user_id", req.UserID),
	)

	result, err := h.reservationService.CancelReservation(ctx, reservationID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Get handles GET /reservations/:id?user_id=
func (h *ReservationHandler) Get(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "reservation id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		span.SetStatus(codes.Error, "user id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "user id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.Int64("user_id", userID),
	)

	result, err := h.reservationService.GetReservation(ctx, reservationID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ListByUser handles GET /users/:user_id/reservations
func (h *ReservationHandler) ListByUser(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.list_by_user")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		span.SetStatus(codes.Error, "user id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "user id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(attribute.Int64("user_id", userID))

	result, err := h.reservationService.ListUserReservations(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ListSeats handles GET /concerts/:concert_id/schedules/:schedule_id/seats
func (h *ReservationHandler) ListSeats(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.list_seats")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	concertID := c.Param("concert_id")
	scheduleID := c.Param("schedule_id")
	if concertID == "" || scheduleID == "" {
		span.SetStatus(codes.Error, "concert and schedule ids required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "concert and schedule ids required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(
		attribute.String("concert_id", concertID),
		attribute.String("schedule_id", scheduleID),
	)

	result, err := h.reservationService.ListSeats(ctx, concertID, scheduleID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
