package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/internal/worker"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

// AdminHandler handles admin HTTP requests
type AdminHandler struct {
	tokenService       service.TokenService
	reservationService service.ReservationService
	scheduler          *worker.AdmissionScheduler
	reaper             *worker.HoldReaper
}

// NewAdminHandler creates a new admin handler. Scheduler and reaper are
// optional; stats report only the workers that are wired.
func NewAdminHandler(tokenService service.TokenService, reservationService service.ReservationService, scheduler *worker.AdmissionScheduler, reaper *worker.HoldReaper) *AdminHandler {
	return &AdminHandler{
		tokenService:       tokenService,
		reservationService: reservationService,
		scheduler:          scheduler,
		reaper:             reaper,
	}
}

// QueueSnapshot handles GET /admin/queue
// Returns waiting and active counts for the whole waiting room.
func (h *AdminHandler) QueueSnapshot(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.queue_snapshot")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	result, err := h.tokenService.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// CreateSeats handles POST /admin/seats
// Registers a block of numbered seats for a concert schedule.
func (h *AdminHandler) CreateSeats(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.create_seats")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateSeatsRequest
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
		attribute.String("concert_id", req.ConcertID),
		attribute.String("schedule_id", req.ScheduleID),
		attribute.Int("seat_count", req.SeatCount),
	)

	result, err := h.reservationService.CreateSeats(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// WorkerStats handles GET /admin/workers
func (h *AdminHandler) WorkerStats(c *gin.Context) {
	stats := gin.H{}
	if h.scheduler != nil {
		stats["admission_scheduler"] = h.scheduler.GetStats()
	}
	if h.reaper != nil {
		stats["hold_reaper"] = h.reaper.GetStats()
	}
	c.JSON(http.StatusOK, stats)
}

// PromoteNow handles POST /admin/promote
// Runs one promotion pass outside the scheduler cadence.
func (h *AdminHandler) PromoteNow(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.promote_now")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	promoted, err := h.tokenService.PromoteBatch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("promoted", promoted))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{"promoted": promoted})
}

// ReclaimNow handles POST /admin/reclaim
// Runs one expired-hold reclaim pass outside the reaper cadence.
func (h *AdminHandler) ReclaimNow(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.reclaim_now")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	reclaimed, err := h.reservationService.ReclaimExpired(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("reclaimed", reclaimed))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{"reclaimed": reclaimed})
}
