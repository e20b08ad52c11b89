package dto

// BookingIntentDTO is the candidate's request to book a test. No payment
// fields travel here; payment identity arrives later from the provider.
type BookingIntentDTO struct {
	TestID      uint    `json:"test_id" binding:"required"`
	BookingDate string  `json:"booking_date" binding:"required"` // YYYY-MM-DD
	StartTime   *string `json:"start_time,omitempty"`            // optional time-of-day hint
	EndTime     *string `json:"end_time,omitempty"`
}

// AbandonBookingDTO marks the caller's live booking for a test as abandoned.
type AbandonBookingDTO struct {
	TestID uint `json:"test_id" binding:"required"`
}

// PaymentCallbackDTO is the browser-redirect confirmation. Signature must be
// verified before any field here is trusted.
type PaymentCallbackDTO struct {
	ProviderPaymentID string `form:"provider_payment_id" json:"provider_payment_id" binding:"required"`
	ProviderOrderID   string `form:"provider_order_id" json:"provider_order_id" binding:"required"`
	ProviderSignature string `form:"provider_signature" json:"provider_signature" binding:"required"`
	TestID            *uint  `form:"test_id" json:"test_id"` // application-chosen correlation hint
	UserID            *uint  `form:"user_id" json:"user_id"`
}

// WebhookEventDTO mirrors the provider's webhook body. The raw body is
// signature-checked byte-for-byte before this structure is decoded.
type WebhookEventDTO struct {
	Event   string `json:"event"` // payment.authorized / payment.captured / payment.failed
	Payload struct {
		Payment struct {
			Entity struct {
				ID          string            `json:"id"`
				OrderID     string            `json:"order_id"`
				AmountPaise int64             `json:"amount"`
				Status      string            `json:"status"`
				Notes       map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID      string `json:"id"`
				Receipt string `json:"receipt"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ExamSubmitDTO maps question ids to the selected option identifiers.
type ExamSubmitDTO struct {
	Answers map[uint]string `json:"answers" binding:"required"`
}
