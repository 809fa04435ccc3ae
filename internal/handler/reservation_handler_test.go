package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/internal/dto"
)

// MockReservationService is a mock implementation of ReservationService
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) HoldSeat(ctx context.Context, tokenID string, req *dto.HoldSeatRequest) (*dto.ReservationResponse, error) {
	args := m.Called(ctx, tokenID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReservationResponse), args.Error(1)
}

func (m *MockReservationService) ConfirmReservation(ctx context.Context, reservationID string, req *dto.ConfirmReservationRequest) (*dto.ReservationResponse, error) {
	args := m.Called(ctx, reservationID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReservationResponse), args.Error(1)
}

func (m *MockReservationService) CancelReservation(ctx context.Context, reservationID string, req *dto.CancelReservationRequest) (*dto.ReservationResponse, error) {
	args := m.Called(ctx, reservationID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReservationResponse), args.Error(1)
}

func (m *MockReservationService) CancelBySystem(ctx context.Context, reservationID, reason string) error {
	args := m.Called(ctx, reservationID, reason)
	return args.Error(0)
}

func (m *MockReservationService) GetReservation(ctx context.Context, reservationID string, userID int64) (*dto.ReservationResponse, error) {
	args := m.Called(ctx, reservationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReservationResponse), args.Error(1)
}

func (m *MockReservationService) ListUserReservations(ctx context.Context, userID int64) (*dto.ReservationListResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReservationListResponse), args.Error(1)
}

func (m *MockReservationService) ReclaimExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationService) CreateSeats(ctx context.Context, req *dto.CreateSeatsRequest) (*dto.SeatListResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SeatListResponse), args.Error(1)
}

func (m *MockReservationService) ListSeats(ctx context.Context, concertID, scheduleID string) (*dto.SeatListResponse, error) {
	args := m.Called(ctx, concertID, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SeatListResponse), args.Error(1)
}

func setupReservationTestRouter(handler *ReservationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	v1 := router.Group("/api/v1")
	{
		reservations := v1.Group("/reservations")
		{
			reservations.POST("", handler.HoldSeat)
			reservations.POST("/:id/confirm", handler.Confirm)
			reservations.POST("/:id/cancel", handler.Cancel)
			reservations.GET("/:id", handler.Get)
		}
		v1.GET("/users/:user_id/reservations", handler.ListByUser)
		v1.GET("/concerts/:concert_id/schedules/:schedule_id/seats", handler.ListSeats)
	}

	return router
}

func pendingReservation() *dto.ReservationResponse {
	now := time.Now()
	return &dto.ReservationResponse{
		ReservationID: "res-1",
		UserID:        1,
		ConcertID:     "concert-1",
		ScheduleID:    "schedule-1",
		SeatID:        "seat-1",
		SeatNumber:    1,
		Price:         1200,
		Status:        string(domain.ReservationStatusPending),
		CreatedAt:     now,
		ExpiresAt:     now.Add(5 * time.Minute),
	}
}

func TestReservationHandler_HoldSeat_Success(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	mockService.On("HoldSeat", mock.Anything, "tok-1", mock.AnythingOfType("*dto.HoldSeatRequest")).
		Return(pendingReservation(), nil)

	body, _ := json.Marshal(dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	req, _ := http.NewRequest("POST", "/api/v1/reservations", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AdmissionTokenHeader, "tok-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response dto.ReservationResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "res-1", response.ReservationID)

	mockService.AssertExpectations(t)
}

func TestReservationHandler_HoldSeat_MissingToken(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	body, _ := json.Marshal(dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	req, _ := http.NewRequest("POST", "/api/v1/reservations", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockService.AssertNotCalled(t, "HoldSeat")
}

func TestReservationHandler_HoldSeat_SeatTaken(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	mockService.On("HoldSeat", mock.Anything, "tok-1", mock.Anything).
		Return(nil, domain.ErrSeatAlreadyReserved)

	body, _ := json.Marshal(dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	req, _ := http.NewRequest("POST", "/api/v1/reservations", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AdmissionTokenHeader, "tok-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "SEAT_ALREADY_RESERVED", response.Code)
}

func TestReservationHandler_HoldSeat_Backpressure(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	mockService.On("HoldSeat", mock.Anything, "tok-1", mock.Anything).
		Return(nil, domain.ErrTooManyHoldAttempts)

	body, _ := json.Marshal(dto.HoldSeatRequest{UserID: 1, SeatID: "seat-1"})
	req, _ := http.NewRequest("POST", "/api/v1/reservations", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AdmissionTokenHeader, "tok-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestReservationHandler_Confirm_Success(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	confirmed := pendingReservation()
	confirmed.Status = string(domain.ReservationStatusConfirmed)
	confirmed.PaymentID = "pay-1"

	mockService.On("ConfirmReservation", mock.Anything, "res-1", mock.AnythingOfType("*dto.ConfirmReservationRequest")).
		Return(confirmed, nil)

	body, _ := json.Marshal(dto.ConfirmReservationRequest{UserID: 1, PaymentID: "pay-1"})
	req, _ := http.NewRequest("POST", "/api/v1/reservations/res-1/confirm", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.ReservationResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(domain.ReservationStatusConfirmed), response.Status)
}

func TestReservationHandler_Confirm_Expired(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	mockService.On("ConfirmReservation", mock.Anything, "res-1", mock.Anything).
		Return(nil, domain.ErrReservationExpired)

	body, _ := json.Marshal(dto.ConfirmReservationRequest{UserID: 1, PaymentID: "pay-1"})
	req, _ := http.NewRequest("POST", "/api/v1/reservations/res-1/confirm", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestReservationHandler_Cancel_AccessDenied(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	mockService.On("CancelReservation", mock.Anything, "res-1", mock.Anything).
		Return(nil, domain.ErrReservationAccessDenied)

	body, _ := json.Marshal(dto.CancelReservationRequest{UserID: 2})
	req, _ := http.NewRequest("POST", "/api/v1/reservations/res-1/cancel", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var response dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ACCESS_DENIED", response.Code)
}

func TestReservationHandler_Get_Success(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	mockService.On("GetReservation", mock.Anything, "res-1", int64(1)).
		Return(pendingReservation(), nil)

	req, _ := http.NewRequest("GET", "/api/v1/reservations/res-1?user_id=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReservationHandler_Get_MissingUserID(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	req, _ := http.NewRequest("GET", "/api/v1/reservations/res-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "GetReservation")
}

func TestReservationHandler_ListByUser_Success(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	mockService.On("ListUserReservations", mock.Anything, int64(1)).
		Return(&dto.ReservationListResponse{
			Reservations: []*dto.ReservationResponse{pendingReservation()},
			Total:        1,
		}, nil)

	req, _ := http.NewRequest("GET", "/api/v1/users/1/reservations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.ReservationListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
}

func TestReservationHandler_ListSeats_Success(t *testing.T) {
	mockService := new(MockReservationService)
	router := setupReservationTestRouter(NewReservationHandler(mockService))

	mockService.On("ListSeats", mock.Anything, "concert-1", "schedule-1").
		Return(&dto.SeatListResponse{
			ConcertID:  "concert-1",
			ScheduleID: "schedule-1",
			Seats: []*dto.SeatResponse{{
				SeatID:     "seat-1",
				ConcertID:  "concert-1",
				ScheduleID: "schedule-1",
				SeatNumber: 1,
				Status:     string(domain.SeatStatusAvailable),
			}},
			Total: 1,
		}, nil)

	req, _ := http.NewRequest("GET", "/api/v1/concerts/concert-1/schedules/schedule-1/seats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.SeatListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
}
