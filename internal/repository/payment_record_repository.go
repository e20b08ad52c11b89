package repository

import (
	"github.com/lshigami/Quokkas/internal/model"
	"gorm.io/gorm"
)

type PaymentRecordRepository interface {
	Create(record *model.PaymentRecord) error
	FindByTransactionID(transactionID string) (*model.PaymentRecord, error)
	FindAllByUser(userID uint) ([]model.PaymentRecord, error)
	WithTx(tx *gorm.DB) PaymentRecordRepository
}

type paymentRecordRepository struct {
	db *gorm.DB
}

func NewPaymentRecordRepository(db *gorm.DB) PaymentRecordRepository {
	return &paymentRecordRepository{db: db}
}

func (r *paymentRecordRepository) WithTx(tx *gorm.DB) PaymentRecordRepository {
	return &paymentRecordRepository{db: tx}
}

func (r *paymentRecordRepository) Create(record *model.PaymentRecord) error {
	return r.db.Create(record).Error
}

func (r *paymentRecordRepository) FindByTransactionID(transactionID string) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	if err := r.db.Where("transaction_id = ?", transactionID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *paymentRecordRepository) FindAllByUser(userID uint) ([]model.PaymentRecord, error) {
	var records []model.PaymentRecord
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error
	return records, err
}
