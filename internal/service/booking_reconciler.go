package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/lshigami/Quokkas/internal/clock"
	"github.com/lshigami/Quokkas/internal/dto"
	"github.com/lshigami/Quokkas/internal/gateway"
	"github.com/lshigami/Quokkas/internal/model"
	"github.com/lshigami/Quokkas/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ConfirmationSource tags which channel delivered a confirmation event.
// All three funnel through the same matching cascade so the idempotency
// guarantees hold regardless of entry point.
type ConfirmationSource string

const (
	SourceRedirect ConfirmationSource = "redirect"
	SourceWebhook  ConfirmationSource = "webhook"
	SourcePoll     ConfirmationSource = "poll"
)

// ConfirmationEvent is the common partial-identity payload carried by a
// redirect callback, a webhook delivery, or a status poll. Any subset of the
// identifying fields may be missing.
type ConfirmationEvent struct {
	Source    ConfirmationSource
	OrderID   string
	PaymentID string
	Signature string
	RawBody   []byte // webhook only, exact bytes received
	Timestamp string // webhook signature timestamp header
	Receipt   string // provider receipt, carries the correlation token when known
	TestID    *uint
	UserID    *uint
	// Status is the payment status asserted by the event itself (webhook
	// payload, poll query). Redirects assert nothing; the reconciler asks
	// the provider.
	Status gateway.PaymentStatus
}

// Confirmation outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
)

// ConfirmationResult reports what a confirmation event did. Duplicate
// outcomes carry the ledger record that absorbed the event, so callers can
// tell a replayed decline from a replayed success even when no owning
// booking can be named.
type ConfirmationResult struct {
	Booking *model.Booking
	Payment *model.PaymentRecord
	Outcome string
}

type BookingReconciler interface {
	CreateBookingIntent(ctx context.Context, userID uint, req dto.BookingIntentDTO) (*dto.BookingIntentResponseDTO, error)
	HandleConfirmation(ctx context.Context, event ConfirmationEvent) (*ConfirmationResult, error)
	// HandleWebhook verifies the raw body byte-for-byte before any parsing,
	// then feeds the decoded event through HandleConfirmation.
	HandleWebhook(ctx context.Context, rawBody []byte, signature, timestamp string) (*ConfirmationResult, error)
	AbandonBooking(ctx context.Context, userID, testID uint) (*dto.BookingResponseDTO, error)
	PollStatus(ctx context.Context, userID, testID uint, paymentID string) (*dto.PaymentOutcomeDTO, error)
}

type bookingReconciler struct {
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRecordRepository
	testRepo    repository.TestRepository
	gw          PaymentGateway
	clk         clock.Clock
	keyID       string
	db          *gorm.DB
}

func NewBookingReconciler(
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRecordRepository,
	testRepo repository.TestRepository,
	gw PaymentGateway,
	clk clock.Clock,
	keyID string,
	db *gorm.DB,
) BookingReconciler {
	return &bookingReconciler{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		testRepo:    testRepo,
		gw:          gw,
		clk:         clk,
		keyID:       keyID,
		db:          db,
	}
}

// CreateBookingIntent supersedes any live booking for the same (test,user),
// creates a fresh Pending row with a minted correlation token, then opens a
// gateway order tagged with that token. A gateway failure leaves the booking
// Pending and retryable.
func (s *bookingReconciler) CreateBookingIntent(ctx context.Context, userID uint, req dto.BookingIntentDTO) (*dto.BookingIntentResponseDTO, error) {
	if _, err := time.Parse("2006-01-02", req.BookingDate); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, req.BookingDate)
	}

	test, err := s.testRepo.FindByID(req.TestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to load test %d: %w", req.TestID, err)
	}

	booking := &model.Booking{
		TestID:      test.ID,
		UserID:      userID,
		BookingDate: req.BookingDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Token:       uuid.NewString(),
		Status:      model.BookingStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		br := s.bookingRepo.WithTx(tx)
		live, err := br.FindLive(test.ID, userID)
		if err != nil {
			return fmt.Errorf("failed to look up live bookings: %w", err)
		}
		for i := range live {
			live[i].Status = model.BookingStatusSuperseded
			live[i].Reason = "replaced by new booking"
			if err := br.Save(&live[i]); err != nil {
				return fmt.Errorf("failed to supersede booking %d: %w", live[i].ID, err)
			}
			log.Info().Uint("bookingID", live[i].ID).Uint("testID", test.ID).Uint("userID", userID).
				Msg("Superseded stale booking before new intent")
		}
		return br.Create(booking)
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	order, err := s.gw.CreateOrder(ctx, gateway.CreateOrderParams{
		AmountPaise: test.PricePaise,
		Currency:    test.Currency,
		Receipt:     booking.Token,
		Notes: map[string]string{
			"test_id": fmt.Sprintf("%d", test.ID),
			"user_id": fmt.Sprintf("%d", userID),
		},
	})
	if err != nil {
		log.Error().Err(err).Uint("bookingID", booking.ID).Msg("Gateway order creation failed; booking stays pending")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	booking.OrderID = order.ID
	if err := s.bookingRepo.Save(booking); err != nil {
		return nil, fmt.Errorf("failed to store provider order id: %w", err)
	}

	var bookingDTO dto.BookingResponseDTO
	if err := copier.Copy(&bookingDTO, booking); err != nil {
		return nil, fmt.Errorf("error preparing booking response: %w", err)
	}
	return &dto.BookingIntentResponseDTO{
		Booking:     bookingDTO,
		OrderID:     order.ID,
		AmountPaise: test.PricePaise,
		Currency:    test.Currency,
		KeyID:       s.keyID,
	}, nil
}

// HandleConfirmation is the single entry point for all three confirmation
// channels. Signature verification comes first; an event that fails it never
// touches booking state. Then the matching cascade picks exactly one Pending
// booking and the verified outcome is applied, with the PaymentRecord keyed
// on the provider payment id so duplicates write nothing twice.
func (s *bookingReconciler) HandleConfirmation(ctx context.Context, event ConfirmationEvent) (*ConfirmationResult, error) {
	if err := s.verifyEvent(event); err != nil {
		return nil, err
	}

	status, err := s.resolveStatus(ctx, event)
	if err != nil {
		return nil, err
	}
	if !status.Settled() && status != gateway.StatusFailed {
		// created/unknown: nothing to apply yet. Never downgraded to Failed.
		log.Warn().Str("paymentID", event.PaymentID).Str("status", string(status)).
			Msg("Confirmation event carries no terminal status")
		return nil, ErrIndeterminate
	}

	// Duplicate delivery for an already-settled payment is acknowledged
	// without touching anything.
	if record, err := s.paymentRepo.FindByTransactionID(event.PaymentID); err == nil && record != nil {
		log.Info().Str("source", string(event.Source)).Str("paymentID", event.PaymentID).
			Msg("Duplicate confirmation event for settled payment; no-op")
		booking, _ := s.findOwningBooking(event)
		return &ConfirmationResult{Booking: booking, Payment: record, Outcome: OutcomeDuplicate}, nil
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check payment ledger: %w", err)
	}

	var result *ConfirmationResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		br := s.bookingRepo.WithTx(tx)
		pr := s.paymentRepo.WithTx(tx)

		booking, err := s.matchBooking(br, event)
		if err != nil {
			return err
		}
		if booking == nil {
			return ErrUnmatchableEvent
		}

		// A concurrent event may have promoted this row between the ledger
		// check above and the row lock here.
		if booking.Status == model.BookingStatusConfirmed {
			existing, _ := pr.FindByTransactionID(event.PaymentID)
			result = &ConfirmationResult{Booking: booking, Payment: existing, Outcome: OutcomeDuplicate}
			return nil
		}

		test, err := s.testRepo.FindByID(booking.TestID)
		if err != nil {
			return fmt.Errorf("failed to load test %d for amount check: %w", booking.TestID, err)
		}

		if status.Settled() {
			booking.Status = model.BookingStatusConfirmed
			booking.Reason = "payment confirmed"
		} else {
			booking.Status = model.BookingStatusFailed
			booking.Reason = "payment failed at provider"
		}
		if booking.OrderID == "" && event.OrderID != "" {
			booking.OrderID = event.OrderID
		}
		if err := br.Save(booking); err != nil {
			return fmt.Errorf("failed to apply booking outcome: %w", err)
		}

		// Exactly one ledger row per provider transaction. The amount is
		// recomputed from our own Test record; the provider echo is never
		// trusted for authorization decisions.
		if existing, err := pr.FindByTransactionID(event.PaymentID); err == nil {
			result = &ConfirmationResult{Booking: booking, Payment: existing, Outcome: OutcomeDuplicate}
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check payment ledger: %w", err)
		}

		record := &model.PaymentRecord{
			UserID:        booking.UserID,
			AmountPaise:   test.PricePaise,
			Currency:      test.Currency,
			TransactionID: event.PaymentID,
		}
		if status.Settled() {
			record.Status = model.PaymentStatusCompleted
			now := s.clk.Now()
			record.PaidAt = &now
		} else {
			record.Status = model.PaymentStatusFailed
		}
		if err := pr.Create(record); err != nil {
			return fmt.Errorf("failed to write payment record: %w", err)
		}

		outcome := OutcomeConfirmed
		if !status.Settled() {
			outcome = OutcomeFailed
		}
		result = &ConfirmationResult{Booking: booking, Payment: record, Outcome: outcome}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		if errors.Is(err, ErrUnmatchableEvent) {
			log.Warn().Str("source", string(event.Source)).Str("orderID", event.OrderID).
				Str("paymentID", event.PaymentID).
				Msg("Confirmation event matched no pending booking; flagged for manual reconciliation")
			return &ConfirmationResult{Outcome: OutcomeUnmatched}, ErrUnmatchableEvent
		}
		return nil, err
	}

	log.Info().Str("source", string(event.Source)).Str("paymentID", event.PaymentID).
		Str("outcome", result.Outcome).Msg("Confirmation event reconciled")
	return result, nil
}

// HandleWebhook is the asynchronous server-to-server entry point. The body
// is trusted only after its signature checks out against the exact bytes
// received; decoding happens after that.
func (s *bookingReconciler) HandleWebhook(ctx context.Context, rawBody []byte, signature, timestamp string) (*ConfirmationResult, error) {
	if !s.gw.VerifyWebhookSignature(rawBody, signature, timestamp) {
		log.Warn().Msg("Webhook signature mismatch; possible tampering")
		return nil, ErrSignatureMismatch
	}

	var body dto.WebhookEventDTO
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}

	payment := body.Payload.Payment.Entity
	event := ConfirmationEvent{
		Source:    SourceWebhook,
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		Signature: signature,
		RawBody:   rawBody,
		Timestamp: timestamp,
		Receipt:   body.Payload.Order.Entity.Receipt,
	}

	switch body.Event {
	case "payment.captured":
		event.Status = gateway.StatusCaptured
	case "payment.authorized":
		event.Status = gateway.StatusAuthorized
	case "payment.failed":
		event.Status = gateway.StatusFailed
	default:
		event.Status = gateway.PaymentStatus(payment.Status)
	}

	if raw, ok := payment.Notes["test_id"]; ok {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			testID := uint(id)
			event.TestID = &testID
		}
	}
	if raw, ok := payment.Notes["user_id"]; ok {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			userID := uint(id)
			event.UserID = &userID
		}
	}

	return s.HandleConfirmation(ctx, event)
}

func (s *bookingReconciler) verifyEvent(event ConfirmationEvent) error {
	switch event.Source {
	case SourceRedirect:
		if !s.gw.VerifySignature(event.OrderID, event.PaymentID, event.Signature) {
			log.Warn().Str("orderID", event.OrderID).Str("paymentID", event.PaymentID).
				Msg("Redirect callback signature mismatch; possible tampering")
			return ErrSignatureMismatch
		}
	case SourceWebhook:
		if !s.gw.VerifyWebhookSignature(event.RawBody, event.Signature, event.Timestamp) {
			log.Warn().Str("paymentID", event.PaymentID).
				Msg("Webhook signature mismatch; possible tampering")
			return ErrSignatureMismatch
		}
	case SourcePoll:
		// Polls carry no signature; the status comes from our own
		// authenticated query against the provider.
	}
	return nil
}

// resolveStatus returns the payment's trusted status. Webhooks and polls
// bring one along (signed body / authenticated query); redirects assert
// nothing so the provider is asked directly.
func (s *bookingReconciler) resolveStatus(ctx context.Context, event ConfirmationEvent) (gateway.PaymentStatus, error) {
	if event.Status != "" && event.Source != SourceRedirect {
		return event.Status, nil
	}
	status, err := s.gw.QueryPaymentStatus(ctx, event.PaymentID)
	if err != nil {
		log.Error().Err(err).Str("paymentID", event.PaymentID).
			Msg("Payment status query failed; treating event as retryable, not as a failure")
		return gateway.StatusUnknown, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return status, nil
}

// matchBooking runs the fallback cascade against Pending rows, stopping at
// the first match. Coarser steps trade a small mis-attribution risk for
// never losing a payment; confirmation only ever promotes a Pending row the
// user just created.
func (s *bookingReconciler) matchBooking(br repository.BookingRepository, event ConfirmationEvent) (*model.Booking, error) {
	// Step a: correlation token round-tripped through the provider's
	// order/receipt identifier.
	if event.Receipt != "" {
		if booking, err := br.FindPendingByReceipt(event.Receipt); err == nil {
			return booking, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if event.OrderID != "" {
		if booking, err := br.FindPendingByOrderID(event.OrderID); err == nil {
			return booking, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	// Step b: (test,user), newest first; duplicates demoted in the same
	// transaction so no second live row survives to be confirmed later.
	if event.TestID != nil && event.UserID != nil {
		candidates, err := br.FindPendingByTestAndUser(*event.TestID, *event.UserID)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			for i := 1; i < len(candidates); i++ {
				candidates[i].Status = model.BookingStatusSuperseded
				candidates[i].Reason = "duplicate booking superseded"
				if err := br.Save(&candidates[i]); err != nil {
					return nil, fmt.Errorf("failed to demote duplicate pending booking %d: %w", candidates[i].ID, err)
				}
			}
			return &candidates[0], nil
		}
	}

	// Steps c-e: successively coarser fallbacks.
	if event.TestID != nil {
		if booking, err := br.FindPendingByTest(*event.TestID); err == nil {
			return booking, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if event.UserID != nil {
		if booking, err := br.FindPendingByUser(*event.UserID); err == nil {
			return booking, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if booking, err := br.FindLatestPending(); err == nil {
		return booking, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return nil, nil
}

// findOwningBooking is a best-effort lookup for reporting on duplicate
// events; it never mutates anything.
func (s *bookingReconciler) findOwningBooking(event ConfirmationEvent) (*model.Booking, error) {
	if event.TestID != nil && event.UserID != nil {
		return s.bookingRepo.FindLatest(*event.TestID, *event.UserID)
	}
	return nil, nil
}

// AbandonBooking marks the caller's Pending booking for a test as abandoned.
func (s *bookingReconciler) AbandonBooking(ctx context.Context, userID, testID uint) (*dto.BookingResponseDTO, error) {
	var abandoned *model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		br := s.bookingRepo.WithTx(tx)
		candidates, err := br.FindPendingByTestAndUser(testID, userID)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return ErrBookingNotFound
		}
		for i := range candidates {
			candidates[i].Status = model.BookingStatusAbandoned
			candidates[i].Reason = "abandoned by user"
			if err := br.Save(&candidates[i]); err != nil {
				return fmt.Errorf("failed to abandon booking %d: %w", candidates[i].ID, err)
			}
		}
		abandoned = &candidates[0]
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	var resp dto.BookingResponseDTO
	if err := copier.Copy(&resp, abandoned); err != nil {
		return nil, fmt.Errorf("error preparing booking response: %w", err)
	}
	return &resp, nil
}

// PollStatus reports the caller's current booking state for a test. When the
// caller can name a payment id and the booking is still Pending, the provider
// is queried and any terminal status observed is reconciled through the same
// path as the other channels. Indeterminate answers change nothing.
func (s *bookingReconciler) PollStatus(ctx context.Context, userID, testID uint, paymentID string) (*dto.PaymentOutcomeDTO, error) {
	booking, err := s.bookingRepo.FindLatest(testID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}

	if booking.Status == model.BookingStatusPending && paymentID != "" {
		status, err := s.gw.QueryPaymentStatus(ctx, paymentID)
		if err != nil {
			log.Warn().Err(err).Str("paymentID", paymentID).
				Msg("Status poll could not reach provider; reporting stored state")
		} else if status.Settled() || status == gateway.StatusFailed {
			result, err := s.HandleConfirmation(ctx, ConfirmationEvent{
				Source:    SourcePoll,
				OrderID:   booking.OrderID,
				PaymentID: paymentID,
				Receipt:   booking.Token,
				TestID:    &testID,
				UserID:    &userID,
				Status:    status,
			})
			if err == nil && result.Booking != nil {
				booking = result.Booking
			}
		}
	}

	return bookingOutcome(booking), nil
}

// bookingOutcome translates internal state into candidate-facing messaging:
// transient/indeterminate states say "try again", a confirmed failure says
// declined. Raw inconsistencies never reach the user.
func bookingOutcome(booking *model.Booking) *dto.PaymentOutcomeDTO {
	out := &dto.PaymentOutcomeDTO{BookingID: booking.ID, Status: booking.Status}
	switch booking.Status {
	case model.BookingStatusConfirmed:
		out.Message = "Payment confirmed. You may take the test."
	case model.BookingStatusCompleted:
		out.Message = "Test already completed."
	case model.BookingStatusFailed:
		out.Message = "Payment was declined. Please book again to retry."
	case model.BookingStatusPending:
		out.Message = "Payment not confirmed yet. Please complete payment or try again."
		out.Retryable = true
	default:
		out.Message = "No active booking. Please book again."
		out.Retryable = true
	}
	return out
}
