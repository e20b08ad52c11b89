package model

import (
	"time"

	"gorm.io/gorm"
)

// Booking statuses. Pending and Confirmed are the only live states; the rest
// are terminal for that row. A user may always start over with a fresh row.
const (
	BookingStatusPending    = "pending"
	BookingStatusConfirmed  = "confirmed"
	BookingStatusFailed     = "failed"
	BookingStatusCompleted  = "completed"
	BookingStatusSuperseded = "superseded"
	BookingStatusAbandoned  = "abandoned"
)

type Booking struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	TestID      uint           `json:"test_id" gorm:"not null;index"`
	Test        Test           `json:"test,omitempty" gorm:"foreignKey:TestID"`
	UserID      uint           `json:"user_id" gorm:"not null;index"`
	BookingDate string         `json:"booking_date" gorm:"not null"` // YYYY-MM-DD
	StartTime   *string        `json:"start_time,omitempty"`         // informational only
	EndTime     *string        `json:"end_time,omitempty"`
	Token       string         `json:"token" gorm:"index"`            // correlation token, round-trips through the provider receipt
	OrderID     string         `json:"order_id,omitempty" gorm:"index"` // provider-assigned order id, set once the gateway order opens
	Status      string         `json:"status" gorm:"default:'pending';index"`
	Reason      string         `json:"reason,omitempty"` // free-text audit note
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Live reports whether the booking can still be promoted by a payment event.
func (b *Booking) Live() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}
