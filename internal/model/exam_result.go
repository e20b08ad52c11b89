package model

import (
	"time"

	"gorm.io/gorm"
)

// ExamResult is one scored attempt for a (test,user) pair. A row with
// TotalQuestions == 0 is a placeholder created when the attempt starts; it is
// completed in place on submit and never counts toward attempt numbering.
type ExamResult struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	TestID         uint           `json:"test_id" gorm:"not null;index"`
	Test           Test           `json:"test,omitempty" gorm:"foreignKey:TestID"`
	UserID         uint           `json:"user_id" gorm:"not null;index"`
	AttemptNumber  int            `json:"attempt_number" gorm:"not null"`
	TotalQuestions int            `json:"total_questions"`
	CorrectCount   int            `json:"correct_count"`
	Score          int            `json:"score"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        time.Time      `json:"ended_at"`
	SubmittedAt    time.Time      `json:"submitted_at" gorm:"index"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// Complete reports whether this row represents a finished, scored attempt.
func (r *ExamResult) Complete() bool {
	return r.TotalQuestions > 0
}
