package repository

import (
	"github.com/lshigami/Quokkas/internal/model"
	"gorm.io/gorm"
)

type QuestionRepository interface {
	Create(question *model.Question) error
	FindByID(id uint) (*model.Question, error)
	// FindByCategoryID returns the bank in stable id order; the sampler
	// depends on this ordering being deterministic.
	FindByCategoryID(categoryID uint) ([]model.Question, error)
	CountByCategoryID(categoryID uint) (int64, error)
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) Create(question *model.Question) error {
	return r.db.Create(question).Error
}

func (r *questionRepository) FindByID(id uint) (*model.Question, error) {
	var question model.Question
	if err := r.db.First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *questionRepository) FindByCategoryID(categoryID uint) ([]model.Question, error) {
	var questions []model.Question
	if err := r.db.Where("category_id = ?", categoryID).Order("id ASC").Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) CountByCategoryID(categoryID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Question{}).Where("category_id = ?", categoryID).Count(&count).Error
	return count, err
}
