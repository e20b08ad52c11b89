package repository

import (
	"time"

	"github.com/lshigami/Quokkas/internal/model"
	"gorm.io/gorm"
)

type ExamResultRepository interface {
	Create(result *model.ExamResult) error
	Update(result *model.ExamResult) error
	// FindRecentComplete returns the newest complete (non-zero question)
	// result submitted at or after the given cutoff, if any.
	FindRecentComplete(testID, userID uint, since time.Time) (*model.ExamResult, error)
	// FindLatestIncomplete returns the newest placeholder row for the pair.
	FindLatestIncomplete(testID, userID uint) (*model.ExamResult, error)
	// MaxAttemptNumber considers complete results only; placeholders never
	// influence numbering.
	MaxAttemptNumber(testID, userID uint) (int, error)
	FindAllByTestAndUser(testID, userID uint) ([]model.ExamResult, error)
	FindAll() ([]model.ExamResult, error)
	WithTx(tx *gorm.DB) ExamResultRepository
}

type examResultRepository struct {
	db *gorm.DB
}

func NewExamResultRepository(db *gorm.DB) ExamResultRepository {
	return &examResultRepository{db: db}
}

func (r *examResultRepository) WithTx(tx *gorm.DB) ExamResultRepository {
	return &examResultRepository{db: tx}
}

func (r *examResultRepository) Create(result *model.ExamResult) error {
	return r.db.Create(result).Error
}

func (r *examResultRepository) Update(result *model.ExamResult) error {
	return r.db.Save(result).Error
}

func (r *examResultRepository) FindRecentComplete(testID, userID uint, since time.Time) (*model.ExamResult, error) {
	var result model.ExamResult
	err := r.db.
		Where("test_id = ? AND user_id = ? AND total_questions > 0 AND submitted_at >= ?", testID, userID, since).
		Order("submitted_at DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *examResultRepository) FindLatestIncomplete(testID, userID uint) (*model.ExamResult, error) {
	var result model.ExamResult
	err := r.db.
		Where("test_id = ? AND user_id = ? AND total_questions = 0", testID, userID).
		Order("created_at DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *examResultRepository) MaxAttemptNumber(testID, userID uint) (int, error) {
	var max *int
	err := r.db.Model(&model.ExamResult{}).
		Where("test_id = ? AND user_id = ? AND total_questions > 0", testID, userID).
		Select("MAX(attempt_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *examResultRepository) FindAllByTestAndUser(testID, userID uint) ([]model.ExamResult, error) {
	var results []model.ExamResult
	err := r.db.
		Where("test_id = ? AND user_id = ?", testID, userID).
		Order("submitted_at DESC").
		Find(&results).Error
	return results, err
}

func (r *examResultRepository) FindAll() ([]model.ExamResult, error) {
	var results []model.ExamResult
	err := r.db.Preload("Test").Order("submitted_at DESC").Find(&results).Error
	return results, err
}
