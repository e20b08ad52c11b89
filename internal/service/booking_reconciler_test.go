package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lshigami/Quokkas/internal/dto"
	"github.com/lshigami/Quokkas/internal/gateway"
	"github.com/lshigami/Quokkas/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerFixture struct {
	bookings *fakeBookingRepo
	payments *fakePaymentRepo
	tests    *fakeTestRepo
	gw       *fakeGateway
	clk      *fakeClock
	mock     sqlmock.Sqlmock
	svc      BookingReconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	db, mock := newGormDB(t)
	f := &reconcilerFixture{
		bookings: newFakeBookingRepo(),
		payments: &fakePaymentRepo{},
		tests: newFakeTestRepo(&model.Test{
			ID: 1, Title: "Mock CAT", CategoryID: 1,
			PricePaise: 50000, Currency: "INR", DurationMinutes: 60, QuestionCount: 10,
		}),
		gw:   &fakeGateway{orderID: "order_new", redirectOK: true, webhookOK: true, statuses: map[string]gateway.PaymentStatus{}},
		clk:  &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		mock: mock,
	}
	f.svc = NewBookingReconciler(f.bookings, f.payments, f.tests, f.gw, f.clk, "key_test", db)
	return f
}

// seedPending inserts a Pending booking the way CreateBookingIntent would
// have left it: token minted, provider order already opened.
func (f *reconcilerFixture) seedPending(testID, userID uint, token, orderID string) *model.Booking {
	b := &model.Booking{
		TestID:      testID,
		UserID:      userID,
		BookingDate: "2026-03-15",
		Token:       token,
		OrderID:     orderID,
		Status:      model.BookingStatusPending,
	}
	_ = f.bookings.Create(b)
	return b
}

func TestCreateBookingIntentSupersedesLiveBooking(t *testing.T) {
	f := newReconcilerFixture(t)
	stale := f.seedPending(1, 42, "tok-old", "order_old")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.svc.CreateBookingIntent(context.Background(), 42, dto.BookingIntentDTO{
		TestID: 1, BookingDate: "2026-03-20",
	})
	require.NoError(t, err)

	assert.Equal(t, "order_new", resp.OrderID)
	assert.Equal(t, int64(50000), resp.AmountPaise)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "key_test", resp.KeyID)
	assert.Equal(t, model.BookingStatusPending, resp.Booking.Status)

	old, err := f.bookings.FindByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusSuperseded, old.Status)

	created, err := f.bookings.FindByID(resp.Booking.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "order_new", created.OrderID)

	// The correlation token rides in the provider receipt with hints in notes.
	require.Len(t, f.gw.orders, 1)
	assert.Equal(t, created.Token, f.gw.orders[0].Receipt)
	assert.Equal(t, "1", f.gw.orders[0].Notes["test_id"])
	assert.Equal(t, "42", f.gw.orders[0].Notes["user_id"])
}

func TestCreateBookingIntentRejectsBadDate(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.svc.CreateBookingIntent(context.Background(), 42, dto.BookingIntentDTO{
		TestID: 1, BookingDate: "15-03-2026",
	})
	require.ErrorIs(t, err, ErrInvalidDate)
	assert.Empty(t, f.gw.orders)
	assert.Empty(t, f.bookings.bookings)
}

func TestCreateBookingIntentGatewayDownLeavesPending(t *testing.T) {
	f := newReconcilerFixture(t)
	f.gw.createErr = errors.New("connect timeout")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.CreateBookingIntent(context.Background(), 42, dto.BookingIntentDTO{
		TestID: 1, BookingDate: "2026-03-20",
	})
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	// The row stays Pending with no order id, so the user can retry and a
	// late confirmation can still find it through the coarser cascade steps.
	require.Len(t, f.bookings.bookings, 1)
	assert.Equal(t, model.BookingStatusPending, f.bookings.bookings[0].Status)
	assert.Empty(t, f.bookings.bookings[0].OrderID)
}

func TestConfirmationWebhookThenRedirectIsIdempotent(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := f.seedPending(1, 42, "tok-1", "order_1")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourceWebhook,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		RawBody:   []byte(`{}`),
		Receipt:   "tok-1",
		Status:    gateway.StatusCaptured,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, result.Outcome)
	assert.Equal(t, booking.ID, result.Booking.ID)

	confirmed, err := f.bookings.FindByID(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)

	require.Len(t, f.payments.records, 1)
	record := f.payments.records[0]
	assert.Equal(t, "pay_1", record.TransactionID)
	assert.Equal(t, int64(50000), record.AmountPaise)
	assert.Equal(t, model.PaymentStatusCompleted, record.Status)
	require.NotNil(t, record.PaidAt)

	// The redirect lands later with the same payment id. The ledger hit
	// answers it without opening a transaction or touching the booking.
	f.gw.statuses["pay_1"] = gateway.StatusCaptured
	result, err = f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourceRedirect,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "valid",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Len(t, f.payments.records, 1)
	assert.Equal(t, []string{"pay_1"}, f.gw.queried, "only the redirect asks the provider")

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestConfirmationSignatureMismatchTouchesNothing(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := f.seedPending(1, 42, "tok-1", "order_1")
	f.gw.redirectOK = false

	_, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourceRedirect,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "forged",
	})
	require.ErrorIs(t, err, ErrSignatureMismatch)

	unchanged, err := f.bookings.FindByID(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, unchanged.Status)
	assert.Empty(t, f.payments.records)
	assert.Empty(t, f.gw.queried, "a forged event never reaches the provider query")
}

func TestConfirmationNonTerminalStatusIsIndeterminate(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := f.seedPending(1, 42, "tok-1", "order_1")

	_, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourceWebhook,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		RawBody:   []byte(`{}`),
		Status:    gateway.StatusCreated,
	})
	require.ErrorIs(t, err, ErrIndeterminate)

	// Never downgraded to Failed on an indeterminate answer.
	unchanged, err := f.bookings.FindByID(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, unchanged.Status)
}

func TestConfirmationFailedPaymentAllowsRebooking(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := f.seedPending(1, 42, "tok-1", "order_1")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourceWebhook,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		RawBody:   []byte(`{}`),
		Receipt:   "tok-1",
		Status:    gateway.StatusFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)

	failed, err := f.bookings.FindByID(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusFailed, failed.Status)

	require.Len(t, f.payments.records, 1)
	assert.Equal(t, model.PaymentStatusFailed, f.payments.records[0].Status)
	assert.Nil(t, f.payments.records[0].PaidAt)

	// A failed booking is terminal for that row, not for the user: booking
	// again simply opens a fresh Pending row.
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	resp, err := f.svc.CreateBookingIntent(context.Background(), 42, dto.BookingIntentDTO{
		TestID: 1, BookingDate: "2026-03-21",
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, resp.Booking.Status)
	assert.NotEqual(t, booking.ID, resp.Booking.ID)
}

func TestConfirmationHintlessDuplicateOfFailedPaymentReportsDecline(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seedPending(1, 42, "tok-1", "order_1")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourceWebhook,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		RawBody:   []byte(`{}`),
		Receipt:   "tok-1",
		Status:    gateway.StatusFailed,
	})
	require.NoError(t, err)

	// The redirect replays the same failed payment with no hints at all. The
	// ledger absorbs it, and the answer must still remember the decline so
	// the caller never presents it as a success.
	f.gw.statuses["pay_1"] = gateway.StatusFailed
	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourceRedirect,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "valid",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Nil(t, result.Booking)
	require.NotNil(t, result.Payment)
	assert.Equal(t, model.PaymentStatusFailed, result.Payment.Status)
	assert.Len(t, f.payments.records, 1)
}

func TestConfirmationTokenMatchBeatsHints(t *testing.T) {
	f := newReconcilerFixture(t)
	f.tests.Create(&model.Test{ID: 2, Title: "Mock XAT", CategoryID: 1, PricePaise: 30000, Currency: "INR", DurationMinutes: 60, QuestionCount: 10})
	owner := f.seedPending(1, 42, "tok-owner", "order_a")
	bystander := f.seedPending(2, 77, "tok-bystander", "order_b")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	// The receipt token names booking A; the notes hints point at B's pair.
	// Exact identity wins over hints.
	wrongTest, wrongUser := uint(2), uint(77)
	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourcePoll,
		PaymentID: "pay_9",
		Receipt:   "rcpt_tok-owner_1",
		TestID:    &wrongTest,
		UserID:    &wrongUser,
		Status:    gateway.StatusCaptured,
	})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, result.Booking.ID)

	untouched, err := f.bookings.FindByID(bystander.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, untouched.Status)
}

func TestConfirmationPairMatchDemotesDuplicatePendings(t *testing.T) {
	f := newReconcilerFixture(t)
	older := f.seedPending(1, 42, "tok-old", "")
	newer := f.seedPending(1, 42, "tok-new", "")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	testID, userID := uint(1), uint(42)
	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourcePoll,
		PaymentID: "pay_7",
		TestID:    &testID,
		UserID:    &userID,
		Status:    gateway.StatusCaptured,
	})
	require.NoError(t, err)
	assert.Equal(t, newer.ID, result.Booking.ID)

	// The loser is demoted in the same transaction so no second live row
	// survives to swallow a later event.
	demoted, err := f.bookings.FindByID(older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusSuperseded, demoted.Status)
}

func TestConfirmationTestHintPromotesNewestPending(t *testing.T) {
	f := newReconcilerFixture(t)
	older := f.seedPending(1, 42, "tok-a", "")
	newer := f.seedPending(1, 77, "tok-b", "")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	// Only a test id to go on: the most recent Pending row for that test wins.
	testID := uint(1)
	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourcePoll,
		PaymentID: "pay_c",
		TestID:    &testID,
		Status:    gateway.StatusCaptured,
	})
	require.NoError(t, err)
	assert.Equal(t, newer.ID, result.Booking.ID)

	untouched, err := f.bookings.FindByID(older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, untouched.Status)

	require.Len(t, f.payments.records, 1)
	assert.Equal(t, uint(77), f.payments.records[0].UserID)
}

func TestConfirmationUserHintPromotesNewestPending(t *testing.T) {
	f := newReconcilerFixture(t)
	f.tests.Create(&model.Test{ID: 2, Title: "Mock XAT", CategoryID: 1, PricePaise: 30000, Currency: "INR", DurationMinutes: 60, QuestionCount: 10})
	older := f.seedPending(1, 42, "tok-a", "")
	newer := f.seedPending(2, 42, "tok-b", "")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	userID := uint(42)
	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourcePoll,
		PaymentID: "pay_d",
		UserID:    &userID,
		Status:    gateway.StatusCaptured,
	})
	require.NoError(t, err)
	assert.Equal(t, newer.ID, result.Booking.ID)

	untouched, err := f.bookings.FindByID(older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, untouched.Status)

	// The amount comes from the matched booking's own test, not the event.
	require.Len(t, f.payments.records, 1)
	assert.Equal(t, int64(30000), f.payments.records[0].AmountPaise)
}

func TestConfirmationBareEventPromotesLatestPending(t *testing.T) {
	f := newReconcilerFixture(t)
	older := f.seedPending(1, 42, "tok-a", "")
	newest := f.seedPending(1, 77, "tok-b", "")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	// No token, no order id, no hints: the last resort promotes the latest
	// Pending row rather than losing a verified payment.
	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourcePoll,
		PaymentID: "pay_e",
		Status:    gateway.StatusCaptured,
	})
	require.NoError(t, err)
	assert.Equal(t, newest.ID, result.Booking.ID)

	untouched, err := f.bookings.FindByID(older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, untouched.Status)
	require.Len(t, f.payments.records, 1)
}

func TestConfirmationUnmatchedEventIsFlagged(t *testing.T) {
	f := newReconcilerFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	result, err := f.svc.HandleConfirmation(context.Background(), ConfirmationEvent{
		Source:    SourcePoll,
		PaymentID: "pay_ghost",
		Status:    gateway.StatusCaptured,
	})
	require.ErrorIs(t, err, ErrUnmatchableEvent)
	require.NotNil(t, result)
	assert.Equal(t, OutcomeUnmatched, result.Outcome)
	assert.Empty(t, f.payments.records, "an unmatched event writes nothing")
}

func TestHandleWebhookVerifiesBeforeParsing(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := f.seedPending(1, 42, "tok-1", "order_1")

	// An unsigned body is rejected before any decoding; malformed JSON never
	// gets the chance to produce a parse error.
	f.gw.webhookOK = false
	_, err := f.svc.HandleWebhook(context.Background(), []byte(`{not json`), "bad", "123")
	require.ErrorIs(t, err, ErrSignatureMismatch)

	f.gw.webhookOK = true
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	body := []byte(`{
		"event": "payment.captured",
		"payload": {
			"payment": {"entity": {"id": "pay_1", "order_id": "order_1", "amount": 50000, "status": "captured", "notes": {"test_id": "1", "user_id": "42"}}},
			"order": {"entity": {"id": "order_1", "receipt": "tok-1"}}
		}
	}`)
	result, err := f.svc.HandleWebhook(context.Background(), body, "good", "123")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, result.Outcome)
	assert.Equal(t, booking.ID, result.Booking.ID)
	require.Len(t, f.payments.records, 1)
	assert.Equal(t, "pay_1", f.payments.records[0].TransactionID)
}

func TestAbandonBooking(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := f.seedPending(1, 42, "tok-1", "order_1")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.svc.AbandonBooking(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusAbandoned, resp.Status)

	abandoned, err := f.bookings.FindByID(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusAbandoned, abandoned.Status)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.AbandonBooking(context.Background(), 42, 1)
	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestPollStatusReconcilesTerminalAnswer(t *testing.T) {
	f := newReconcilerFixture(t)
	booking := f.seedPending(1, 42, "tok-1", "order_1")
	f.gw.statuses["pay_1"] = gateway.StatusCaptured

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	out, err := f.svc.PollStatus(context.Background(), 42, 1, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, out.Status)
	assert.False(t, out.Retryable)

	confirmed, err := f.bookings.FindByID(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)
	require.Len(t, f.payments.records, 1)
}

func TestPollStatusProviderErrorStaysRetryable(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seedPending(1, 42, "tok-1", "order_1")
	f.gw.statusErr = errors.New("gateway 502")

	out, err := f.svc.PollStatus(context.Background(), 42, 1, "pay_1")
	require.NoError(t, err)

	// A timeout is never a decline; the candidate is told to try again.
	assert.Equal(t, model.BookingStatusPending, out.Status)
	assert.True(t, out.Retryable)
}

func TestPollStatusWithoutBooking(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.svc.PollStatus(context.Background(), 42, 1, "")
	require.ErrorIs(t, err, ErrBookingNotFound)
}
