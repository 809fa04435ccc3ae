package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/service"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

// TokenHandler handles waiting room HTTP requests
type TokenHandler struct {
	tokenService service.TokenService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(tokenService service.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

// Enter handles POST /waiting-room/enter
// Issues a waiting room token; re-entry returns the existing token.
func (h *TokenHandler) Enter(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.token.enter")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.IssueTokenRequest
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

	span.SetAttributes(attribute.Int64("user_id", req.UserID))

	result, err := h.tokenService.IssueToken(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("token_id", result.TokenID),
		attribute.String("token_status", result.Status),
	)
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// Status handles GET /waiting-room/status/:token_id
func (h *TokenHandler) Status(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.token.status")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tokenID := c.Param("token_id")
	if tokenID == "" {
		span.SetStatus(codes.Error, "token id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "token id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(attribute.String("token_id", tokenID))

	result, err := h.tokenService.GetQueueStatus(ctx, tokenID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
