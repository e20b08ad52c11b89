package user

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Quokkas/internal/dto"
	"github.com/lshigami/Quokkas/internal/model"
	"github.com/lshigami/Quokkas/internal/service"
	"github.com/rs/zerolog/log"
)

// PaymentController owns the two anonymous-allowed confirmation channels:
// the browser redirect and the provider webhook. Both funnel into the
// reconciler's single matching path.
type PaymentController struct {
	reconciler service.BookingReconciler
}

func NewPaymentController(reconciler service.BookingReconciler) *PaymentController {
	return &PaymentController{reconciler: reconciler}
}

// Callback godoc
// @Summary Payment redirect callback from the provider checkout
// @Description Signature is verified before any field is trusted. Safe to deliver any number of times.
// @Tags Payments
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param provider_payment_id formData string true "Provider payment id"
// @Param provider_order_id formData string true "Provider order id"
// @Param provider_signature formData string true "Provider signature"
// @Param test_id formData int false "Correlation hint: test id"
// @Param user_id formData int false "Correlation hint: user id"
// @Success 200 {object} dto.PaymentOutcomeDTO
// @Failure 400 {object} dto.ErrorResponse "Signature verification failed"
// @Failure 503 {object} dto.ErrorResponse "Provider unreachable; retry"
// @Router /payments/callback [post]
func (c *PaymentController) Callback(ctx *gin.Context) {
	var req dto.PaymentCallbackDTO
	if err := ctx.ShouldBind(&req); err != nil {
		log.Warn().Err(err).Msg("Payment Callback: Failed to bind request")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid callback parameters", Details: []string{err.Error()}})
		return
	}

	result, err := c.reconciler.HandleConfirmation(ctx.Request.Context(), service.ConfirmationEvent{
		Source:    service.SourceRedirect,
		OrderID:   req.ProviderOrderID,
		PaymentID: req.ProviderPaymentID,
		Signature: req.ProviderSignature,
		TestID:    req.TestID,
		UserID:    req.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureMismatch):
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Payment verification failed"})
		case errors.Is(err, service.ErrGatewayUnavailable), errors.Is(err, service.ErrIndeterminate):
			ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Message: "Payment status not available yet, please try again"})
		case errors.Is(err, service.ErrUnmatchableEvent):
			// Internal inconsistency never reaches the user raw; operators
			// get the correlation detail in the logs.
			ctx.JSON(http.StatusOK, dto.PaymentOutcomeDTO{
				Status:    "unknown",
				Message:   "We could not match this payment to a booking. Please retry or contact support.",
				Retryable: true,
			})
		default:
			log.Error().Err(err).Msg("Payment Callback: Service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to process payment, please try again"})
		}
		return
	}

	ctx.JSON(http.StatusOK, outcomeFromResult(result))
}

// Webhook godoc
// @Summary Server-to-server payment webhook
// @Description The raw body is signature-checked byte-for-byte before parsing. Duplicates and unmatchable events are acknowledged so the provider stops retrying.
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Webhook-Signature header string true "HMAC over timestamp and raw body"
// @Param X-Webhook-Timestamp header string true "Signature timestamp"
// @Success 200 {object} dto.WebhookAckDTO
// @Failure 400 {object} dto.ErrorResponse "Signature verification failed"
// @Router /payments/webhook [post]
func (c *PaymentController) Webhook(ctx *gin.Context) {
	rawBody, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to read webhook body"})
		return
	}

	signature := ctx.GetHeader("X-Webhook-Signature")
	timestamp := ctx.GetHeader("X-Webhook-Timestamp")

	_, err = c.reconciler.HandleWebhook(ctx.Request.Context(), rawBody, signature, timestamp)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureMismatch):
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Signature verification failed"})
		case errors.Is(err, service.ErrUnmatchableEvent):
			// Acknowledge so the provider stops retrying; flagged for
			// manual reconciliation in the logs.
			ctx.JSON(http.StatusOK, dto.WebhookAckDTO{Status: "acknowledged"})
		case errors.Is(err, service.ErrIndeterminate):
			ctx.JSON(http.StatusOK, dto.WebhookAckDTO{Status: "acknowledged"})
		default:
			log.Error().Err(err).Msg("Payment Webhook: Service error")
			// Transient failure: a non-2xx makes the provider redeliver,
			// which is exactly what we want here.
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to process webhook"})
		}
		return
	}
	ctx.JSON(http.StatusOK, dto.WebhookAckDTO{Status: "ok"})
}

func outcomeFromResult(result *service.ConfirmationResult) *dto.PaymentOutcomeDTO {
	out := &dto.PaymentOutcomeDTO{}
	if result.Booking != nil {
		out.BookingID = result.Booking.ID
		out.Status = result.Booking.Status
	}
	switch {
	case result.Outcome == service.OutcomeFailed:
		out.Message = "Payment was declined. Please book again to retry."
	case result.Outcome == service.OutcomeDuplicate && duplicateOfDecline(result):
		out.Message = "Payment was declined. Please book again to retry."
	case result.Outcome == service.OutcomeConfirmed || result.Outcome == service.OutcomeDuplicate:
		out.Message = "Payment confirmed. You may take the test."
	default:
		out.Message = "Payment status unclear, please try again."
		out.Retryable = true
	}
	return out
}

// duplicateOfDecline reports whether a replayed event points at a payment
// that terminally failed. The ledger record is checked first; a hintless
// duplicate carries no booking at all.
func duplicateOfDecline(result *service.ConfirmationResult) bool {
	if result.Payment != nil && result.Payment.Status == model.PaymentStatusFailed {
		return true
	}
	return result.Booking != nil && result.Booking.Status == model.BookingStatusFailed
}
