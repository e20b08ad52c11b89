package model

import "time"

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// PaymentRecord is an append-only ledger row written exactly once per
// terminal payment event. TransactionID is the provider payment id and acts
// as the idempotency key for duplicate confirmation events.
type PaymentRecord struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	UserID        uint       `json:"user_id" gorm:"not null;index"`
	AmountPaise   int64      `json:"amount_paise" gorm:"not null"` // minor currency units
	Currency      string     `json:"currency" gorm:"size:3;not null"`
	Status        string     `json:"status" gorm:"not null"`
	TransactionID string     `json:"transaction_id" gorm:"uniqueIndex;not null"`
	PaidAt        *time.Time `json:"paid_at,omitempty"` // nil unless successful
	CreatedAt     time.Time  `json:"created_at"`
}
