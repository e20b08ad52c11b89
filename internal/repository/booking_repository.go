package repository

import (
	"github.com/lshigami/Quokkas/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository interface {
	Create(booking *model.Booking) error
	Save(booking *model.Booking) error
	FindByID(id uint) (*model.Booking, error)
	// FindLive returns Pending/Confirmed rows for the pair, newest first.
	FindLive(testID, userID uint) ([]model.Booking, error)
	// FindLatest returns the most recent row for the pair regardless of status.
	FindLatest(testID, userID uint) (*model.Booking, error)
	FindConfirmedOrCompleted(testID, userID uint) (*model.Booking, error)

	// Pending finders used by the confirmation-matching cascade. All of them
	// take row locks so that two concurrent events cannot both win the same
	// booking; they must be called inside a transaction.
	FindPendingByOrderID(orderID string) (*model.Booking, error)
	FindPendingByReceipt(receipt string) (*model.Booking, error)
	FindPendingByTestAndUser(testID, userID uint) ([]model.Booking, error)
	FindPendingByTest(testID uint) (*model.Booking, error)
	FindPendingByUser(userID uint) (*model.Booking, error)
	FindLatestPending() (*model.Booking, error)

	WithTx(tx *gorm.DB) BookingRepository
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) WithTx(tx *gorm.DB) BookingRepository {
	return &bookingRepository{db: tx}
}

func (r *bookingRepository) Create(booking *model.Booking) error {
	return r.db.Create(booking).Error
}

// Save lets gorm stamp UpdatedAt so the field tracks gorm's own timestamp
// handling rather than a second clock beside the injected one.
func (r *bookingRepository) Save(booking *model.Booking) error {
	return r.db.Save(booking).Error
}

func (r *bookingRepository) FindByID(id uint) (*model.Booking, error) {
	var booking model.Booking
	if err := r.db.First(&booking, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindLive(testID, userID uint) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.
		Where("test_id = ? AND user_id = ? AND status IN ?", testID, userID,
			[]string{model.BookingStatusPending, model.BookingStatusConfirmed}).
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) FindLatest(testID, userID uint) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.
		Where("test_id = ? AND user_id = ?", testID, userID).
		Order("created_at DESC").
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindConfirmedOrCompleted(testID, userID uint) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.
		Where("test_id = ? AND user_id = ? AND status IN ?", testID, userID,
			[]string{model.BookingStatusConfirmed, model.BookingStatusCompleted}).
		Order("created_at DESC").
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) pending() *gorm.DB {
	return r.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ?", model.BookingStatusPending).
		Order("created_at DESC")
}

func (r *bookingRepository) FindPendingByOrderID(orderID string) (*model.Booking, error) {
	var booking model.Booking
	if err := r.pending().Where("order_id = ?", orderID).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindPendingByReceipt(receipt string) (*model.Booking, error) {
	// The correlation token round-trips inside the provider receipt field;
	// match any pending row whose token appears in the receipt string.
	var booking model.Booking
	err := r.pending().
		Where("token <> '' AND strpos(?, token) > 0", receipt).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindPendingByTestAndUser(testID, userID uint) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.pending().Where("test_id = ? AND user_id = ?", testID, userID).Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) FindPendingByTest(testID uint) (*model.Booking, error) {
	var booking model.Booking
	if err := r.pending().Where("test_id = ?", testID).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindPendingByUser(userID uint) (*model.Booking, error) {
	var booking model.Booking
	if err := r.pending().Where("user_id = ?", userID).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindLatestPending() (*model.Booking, error) {
	var booking model.Booking
	if err := r.pending().First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}
