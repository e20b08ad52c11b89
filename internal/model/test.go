package model

import (
	"time"

	"gorm.io/gorm"
)

type Test struct {
	ID              uint             `gorm:"primarykey" json:"id"`
	Title           string           `json:"title" gorm:"not null;uniqueIndex"`
	Description     string           `json:"description,omitempty"`
	CategoryID      uint             `json:"category_id" gorm:"not null;index"`
	Category        QuestionCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	PricePaise      int64            `json:"price_paise" gorm:"not null"` // minor currency units
	Currency        string           `json:"currency" gorm:"size:3;default:'INR'"`
	DurationMinutes int              `json:"duration_minutes" gorm:"not null"`
	QuestionCount   int              `json:"question_count" gorm:"not null"` // how many questions to sample
	BankHash        string           `json:"-" gorm:"size:64"`               // category content hash frozen at creation
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"-"`
}
