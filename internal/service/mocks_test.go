package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lshigami/Quokkas/internal/gateway"
	"github.com/lshigami/Quokkas/internal/model"
	"github.com/lshigami/Quokkas/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newGormDB wires gorm over sqlmock so service transactions have a real
// Begin/Commit to run against while the fakes below hold the actual state.
func newGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeBookingRepo struct {
	bookings []*model.Booking
	nextID   uint
	seq      time.Time
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{seq: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (r *fakeBookingRepo) WithTx(tx *gorm.DB) repository.BookingRepository { return r }

func (r *fakeBookingRepo) Create(b *model.Booking) error {
	r.nextID++
	r.seq = r.seq.Add(time.Second)
	b.ID = r.nextID
	b.CreatedAt = r.seq
	clone := *b
	r.bookings = append(r.bookings, &clone)
	return nil
}

func (r *fakeBookingRepo) Save(b *model.Booking) error {
	for i := range r.bookings {
		if r.bookings[i].ID == b.ID {
			clone := *b
			clone.CreatedAt = r.bookings[i].CreatedAt
			r.bookings[i] = &clone
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// matching returns clones of matching rows, newest first.
func (r *fakeBookingRepo) matching(pred func(*model.Booking) bool) []model.Booking {
	var out []model.Booking
	for _, b := range r.bookings {
		if pred(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeBookingRepo) first(pred func(*model.Booking) bool) (*model.Booking, error) {
	rows := r.matching(pred)
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (r *fakeBookingRepo) FindByID(id uint) (*model.Booking, error) {
	return r.first(func(b *model.Booking) bool { return b.ID == id })
}

func (r *fakeBookingRepo) FindLive(testID, userID uint) ([]model.Booking, error) {
	return r.matching(func(b *model.Booking) bool {
		return b.TestID == testID && b.UserID == userID && b.Live()
	}), nil
}

func (r *fakeBookingRepo) FindLatest(testID, userID uint) (*model.Booking, error) {
	return r.first(func(b *model.Booking) bool { return b.TestID == testID && b.UserID == userID })
}

func (r *fakeBookingRepo) FindConfirmedOrCompleted(testID, userID uint) (*model.Booking, error) {
	return r.first(func(b *model.Booking) bool {
		return b.TestID == testID && b.UserID == userID &&
			(b.Status == model.BookingStatusConfirmed || b.Status == model.BookingStatusCompleted)
	})
}

func (r *fakeBookingRepo) FindPendingByOrderID(orderID string) (*model.Booking, error) {
	return r.first(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusPending && b.OrderID == orderID
	})
}

func (r *fakeBookingRepo) FindPendingByReceipt(receipt string) (*model.Booking, error) {
	return r.first(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusPending && b.Token != "" && strings.Contains(receipt, b.Token)
	})
}

func (r *fakeBookingRepo) FindPendingByTestAndUser(testID, userID uint) ([]model.Booking, error) {
	return r.matching(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusPending && b.TestID == testID && b.UserID == userID
	}), nil
}

func (r *fakeBookingRepo) FindPendingByTest(testID uint) (*model.Booking, error) {
	return r.first(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusPending && b.TestID == testID
	})
}

func (r *fakeBookingRepo) FindPendingByUser(userID uint) (*model.Booking, error) {
	return r.first(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusPending && b.UserID == userID
	})
}

func (r *fakeBookingRepo) FindLatestPending() (*model.Booking, error) {
	return r.first(func(b *model.Booking) bool { return b.Status == model.BookingStatusPending })
}

type fakePaymentRepo struct {
	records []*model.PaymentRecord
	nextID  uint
}

func (r *fakePaymentRepo) WithTx(tx *gorm.DB) repository.PaymentRecordRepository { return r }

func (r *fakePaymentRepo) Create(record *model.PaymentRecord) error {
	r.nextID++
	record.ID = r.nextID
	clone := *record
	r.records = append(r.records, &clone)
	return nil
}

func (r *fakePaymentRepo) FindByTransactionID(transactionID string) (*model.PaymentRecord, error) {
	for _, rec := range r.records {
		if rec.TransactionID == transactionID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) FindAllByUser(userID uint) ([]model.PaymentRecord, error) {
	var out []model.PaymentRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

type fakeTestRepo struct {
	tests map[uint]*model.Test
}

func newFakeTestRepo(tests ...*model.Test) *fakeTestRepo {
	repo := &fakeTestRepo{tests: make(map[uint]*model.Test)}
	for _, tc := range tests {
		repo.tests[tc.ID] = tc
	}
	return repo
}

func (r *fakeTestRepo) Create(test *model.Test) error {
	r.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) FindByID(id uint) (*model.Test, error) {
	if test, ok := r.tests[id]; ok {
		return test, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTestRepo) FindAll() ([]model.Test, error) {
	var out []model.Test
	for _, test := range r.tests {
		out = append(out, *test)
	}
	return out, nil
}

type fakeResultRepo struct {
	results []*model.ExamResult
	nextID  uint
	seq     time.Time
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{seq: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (r *fakeResultRepo) WithTx(tx *gorm.DB) repository.ExamResultRepository { return r }

func (r *fakeResultRepo) Create(result *model.ExamResult) error {
	r.nextID++
	r.seq = r.seq.Add(time.Second)
	result.ID = r.nextID
	result.CreatedAt = r.seq
	clone := *result
	r.results = append(r.results, &clone)
	return nil
}

func (r *fakeResultRepo) Update(result *model.ExamResult) error {
	for i := range r.results {
		if r.results[i].ID == result.ID {
			clone := *result
			clone.CreatedAt = r.results[i].CreatedAt
			r.results[i] = &clone
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeResultRepo) FindRecentComplete(testID, userID uint, since time.Time) (*model.ExamResult, error) {
	var best *model.ExamResult
	for _, res := range r.results {
		if res.TestID != testID || res.UserID != userID || !res.Complete() || res.SubmittedAt.Before(since) {
			continue
		}
		if best == nil || res.SubmittedAt.After(best.SubmittedAt) {
			best = res
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *best
	return &clone, nil
}

func (r *fakeResultRepo) FindLatestIncomplete(testID, userID uint) (*model.ExamResult, error) {
	var best *model.ExamResult
	for _, res := range r.results {
		if res.TestID != testID || res.UserID != userID || res.Complete() {
			continue
		}
		if best == nil || res.CreatedAt.After(best.CreatedAt) {
			best = res
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *best
	return &clone, nil
}

func (r *fakeResultRepo) MaxAttemptNumber(testID, userID uint) (int, error) {
	max := 0
	for _, res := range r.results {
		if res.TestID == testID && res.UserID == userID && res.Complete() && res.AttemptNumber > max {
			max = res.AttemptNumber
		}
	}
	return max, nil
}

func (r *fakeResultRepo) FindAllByTestAndUser(testID, userID uint) ([]model.ExamResult, error) {
	var out []model.ExamResult
	for _, res := range r.results {
		if res.TestID == testID && res.UserID == userID {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (r *fakeResultRepo) FindAll() ([]model.ExamResult, error) {
	var out []model.ExamResult
	for _, res := range r.results {
		out = append(out, *res)
	}
	return out, nil
}

// fakeGateway is a canned PaymentGateway. Signature checks answer with the
// configured booleans; status queries are recorded so tests can assert which
// channel actually asked the provider.
type fakeGateway struct {
	orderID    string
	createErr  error
	orders     []gateway.CreateOrderParams
	redirectOK bool
	webhookOK  bool
	statuses   map[string]gateway.PaymentStatus
	statusErr  error
	queried    []string
}

func (g *fakeGateway) CreateOrder(ctx context.Context, params gateway.CreateOrderParams) (*gateway.Order, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.orders = append(g.orders, params)
	return &gateway.Order{
		ID:          g.orderID,
		AmountPaise: params.AmountPaise,
		Currency:    params.Currency,
		Receipt:     params.Receipt,
		Status:      "created",
	}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return g.redirectOK
}

func (g *fakeGateway) VerifyWebhookSignature(rawBody []byte, signature, timestamp string) bool {
	return g.webhookOK
}

func (g *fakeGateway) QueryPaymentStatus(ctx context.Context, paymentID string) (gateway.PaymentStatus, error) {
	g.queried = append(g.queried, paymentID)
	if g.statusErr != nil {
		return gateway.StatusUnknown, g.statusErr
	}
	if status, ok := g.statuses[paymentID]; ok {
		return status, nil
	}
	return gateway.StatusUnknown, nil
}
