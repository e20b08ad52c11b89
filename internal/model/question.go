package model

import (
	"time"

	"gorm.io/gorm"
)

// QuestionCategory is a question bank shared by tests. The bank is treated
// as append-only for the life of any test referencing it; tests freeze a
// content hash at creation and scoring refuses if the hash has drifted.
type QuestionCategory struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Name      string         `json:"name" gorm:"not null;uniqueIndex"`
	Questions []Question     `json:"questions,omitempty" gorm:"foreignKey:CategoryID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type Question struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	CategoryID    uint           `json:"category_id" gorm:"not null;index"`
	Text          string         `json:"text" gorm:"type:text;not null"`
	OptionA       string         `json:"option_a" gorm:"not null"`
	OptionB       string         `json:"option_b" gorm:"not null"`
	OptionC       string         `json:"option_c" gorm:"not null"`
	OptionD       string         `json:"option_d" gorm:"not null"`
	CorrectOption string         `json:"-" gorm:"size:1;not null"` // "a".."d", never serialized to candidates
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
