package dto

import "time"

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// BookingResponseDTO describes one booking row to the caller.
type BookingResponseDTO struct {
	ID          uint      `json:"id"`
	TestID      uint      `json:"test_id"`
	BookingDate string    `json:"booking_date"`
	StartTime   *string   `json:"start_time,omitempty"`
	EndTime     *string   `json:"end_time,omitempty"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookingIntentResponseDTO is returned after a booking-intent: everything the
// client needs to hand the candidate over to the provider's checkout.
type BookingIntentResponseDTO struct {
	Booking     BookingResponseDTO `json:"booking"`
	OrderID     string             `json:"order_id"`
	AmountPaise int64              `json:"amount_paise"`
	Currency    string             `json:"currency"`
	KeyID       string             `json:"key_id"`
}

// PaymentOutcomeDTO tells the candidate what happened to a payment. Retryable
// distinguishes "try again" from a confirmed decline.
type PaymentOutcomeDTO struct {
	BookingID uint   `json:"booking_id,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// WebhookAckDTO acknowledges a webhook delivery. Always 200, even for
// duplicates and unmatchable events, so the provider stops retrying.
type WebhookAckDTO struct {
	Status string `json:"status"`
}

// ExamQuestionDTO is a sampled question as shown to a candidate. Correct
// options never leave the server.
type ExamQuestionDTO struct {
	ID      uint   `json:"id"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

// ExamPaperDTO is the full sampled paper for one take of a test.
type ExamPaperDTO struct {
	TestID          uint              `json:"test_id"`
	Title           string            `json:"title"`
	DurationMinutes int               `json:"duration_minutes"`
	Questions       []ExamQuestionDTO `json:"questions"`
}

// ExamResultDTO is one scored attempt.
type ExamResultDTO struct {
	ID             uint      `json:"id"`
	TestID         uint      `json:"test_id"`
	TestTitle      string    `json:"test_title,omitempty"`
	AttemptNumber  int       `json:"attempt_number"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	Score          int       `json:"score"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// SubmitResponseDTO is returned from the submit endpoint. IsDuplicate is true
// when the call was resolved to an already-scored attempt.
type SubmitResponseDTO struct {
	Result      ExamResultDTO `json:"result"`
	IsDuplicate bool          `json:"is_duplicate"`
}

// TestSummaryDTO lists a published test in the catalog.
type TestSummaryDTO struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	PricePaise      int64     `json:"price_paise"`
	Currency        string    `json:"currency"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionCount   int       `json:"question_count"`
	CreatedAt       time.Time `json:"created_at"`
}
