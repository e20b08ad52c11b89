package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Quokkas/internal/dto"
	"github.com/lshigami/Quokkas/internal/middleware"
	"github.com/lshigami/Quokkas/internal/service"
	"github.com/rs/zerolog/log"
)

type BookingController struct {
	reconciler service.BookingReconciler
}

func NewBookingController(reconciler service.BookingReconciler) *BookingController {
	return &BookingController{reconciler: reconciler}
}

// CreateBooking godoc
// @Summary (User) Book a test for a date
// @Description Supersedes any live booking for the same test and opens a payment order. No payment fields travel here.
// @Tags User - Bookings
// @Accept json
// @Produce json
// @Param booking_data body dto.BookingIntentDTO true "Test, date and optional time hints"
// @Success 201 {object} dto.BookingIntentResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Failure 503 {object} dto.ErrorResponse "Payment gateway unavailable; retry"
// @Router /bookings [post]
func (c *BookingController) CreateBooking(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Unauthorized"})
		return
	}

	var req dto.BookingIntentDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("User CreateBooking: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.reconciler.CreateBookingIntent(ctx.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
		case errors.Is(err, service.ErrInvalidDate):
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid booking date, expected YYYY-MM-DD"})
		case errors.Is(err, service.ErrGatewayUnavailable):
			// The booking stays pending; the user can retry from where they were.
			ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Message: "Payment service temporarily unavailable, please try again"})
		default:
			log.Error().Err(err).Uint("userID", userID).Msg("User CreateBooking: Service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to create booking, please try again"})
		}
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// AbandonBooking godoc
// @Summary (User) Abandon the current payment flow for a test
// @Tags User - Bookings
// @Accept json
// @Produce json
// @Param abandon_data body dto.AbandonBookingDTO true "Test whose pending booking to abandon"
// @Success 200 {object} dto.BookingResponseDTO
// @Failure 404 {object} dto.ErrorResponse "No pending booking"
// @Router /bookings/abandon [post]
func (c *BookingController) AbandonBooking(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Unauthorized"})
		return
	}

	var req dto.AbandonBookingDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.reconciler.AbandonBooking(ctx.Request.Context(), userID, req.TestID)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "No pending booking to abandon"})
			return
		}
		log.Error().Err(err).Uint("userID", userID).Uint("testID", req.TestID).Msg("User AbandonBooking: Service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to abandon booking, please try again"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetBookingStatus godoc
// @Summary (User) Poll the caller's booking/payment status for a test
// @Description Used by the UI to recover from lost client state. If a payment id is supplied and the provider reports a terminal status, the booking is reconciled through the same rules as the other channels.
// @Tags User - Bookings
// @Produce json
// @Param test_id query int true "Test ID"
// @Param payment_id query string false "Provider payment id, if the client knows one"
// @Success 200 {object} dto.PaymentOutcomeDTO
// @Failure 400 {object} dto.ErrorResponse "Missing or invalid test id"
// @Failure 404 {object} dto.ErrorResponse "No booking for this test"
// @Router /bookings/status [get]
func (c *BookingController) GetBookingStatus(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Unauthorized"})
		return
	}

	testID, err := strconv.ParseUint(ctx.Query("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}

	outcome, err := c.reconciler.PollStatus(ctx.Request.Context(), userID, uint(testID), ctx.Query("payment_id"))
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "No booking found for this test"})
			return
		}
		log.Error().Err(err).Uint("userID", userID).Uint64("testID", testID).Msg("User GetBookingStatus: Service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to fetch booking status, please try again"})
		return
	}
	ctx.JSON(http.StatusOK, outcome)
}
