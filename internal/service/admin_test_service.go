package service

import (
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/lshigami/Quokkas/internal/dto"
	"github.com/lshigami/Quokkas/internal/model"
	"github.com/lshigami/Quokkas/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type AdminTestService interface {
	CreateCategory(req dto.CategoryCreateDTO) (*model.QuestionCategory, error)
	AddQuestion(categoryID uint, req dto.QuestionCreateDTO) (*model.Question, error)
	CreateTest(req dto.TestCreateDTO) (*dto.TestSummaryDTO, error)
	GetAllResults() ([]dto.ExamResultDTO, error)
}

type adminTestService struct {
	testRepo     repository.TestRepository
	categoryRepo repository.CategoryRepository
	questionRepo repository.QuestionRepository
	resultRepo   repository.ExamResultRepository
	sampler      QuestionSampler
}

func NewAdminTestService(
	testRepo repository.TestRepository,
	categoryRepo repository.CategoryRepository,
	questionRepo repository.QuestionRepository,
	resultRepo repository.ExamResultRepository,
	sampler QuestionSampler,
) AdminTestService {
	return &adminTestService{
		testRepo:     testRepo,
		categoryRepo: categoryRepo,
		questionRepo: questionRepo,
		resultRepo:   resultRepo,
		sampler:      sampler,
	}
}

func (s *adminTestService) CreateCategory(req dto.CategoryCreateDTO) (*model.QuestionCategory, error) {
	category := &model.QuestionCategory{Name: req.Name}
	if err := s.categoryRepo.Create(category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *adminTestService) AddQuestion(categoryID uint, req dto.QuestionCreateDTO) (*model.Question, error) {
	if _, err := s.categoryRepo.FindByID(categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %d not found", categoryID)
		}
		return nil, fmt.Errorf("failed to load category %d: %w", categoryID, err)
	}

	question := &model.Question{
		CategoryID:    categoryID,
		Text:          req.Text,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectOption: req.CorrectOption,
	}
	if err := s.questionRepo.Create(question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	// Appending to a bank invalidates the frozen hash of tests already
	// published over it; they will refuse to sample until re-published.
	log.Info().Uint("categoryID", categoryID).Uint("questionID", question.ID).
		Msg("Question appended to bank")
	return question, nil
}

// CreateTest publishes a test over an existing bank and freezes the bank's
// content hash so later edits are detected instead of silently changing
// what candidates see and how they are scored.
func (s *adminTestService) CreateTest(req dto.TestCreateDTO) (*dto.TestSummaryDTO, error) {
	count, err := s.questionRepo.CountByCategoryID(req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions in category %d: %w", req.CategoryID, err)
	}
	if int64(req.QuestionCount) > count {
		return nil, fmt.Errorf("category %d has only %d questions, test wants %d", req.CategoryID, count, req.QuestionCount)
	}

	bankHash, err := s.sampler.BankHash(req.CategoryID)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	test := &model.Test{
		Title:           req.Title,
		Description:     req.Description,
		CategoryID:      req.CategoryID,
		PricePaise:      req.PricePaise,
		Currency:        currency,
		DurationMinutes: req.DurationMinutes,
		QuestionCount:   req.QuestionCount,
		BankHash:        bankHash,
	}
	if err := s.testRepo.Create(test); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("Failed to create test")
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	var resp dto.TestSummaryDTO
	if err := copier.Copy(&resp, test); err != nil {
		return nil, fmt.Errorf("error preparing test response: %w", err)
	}
	return &resp, nil
}

func (s *adminTestService) GetAllResults() ([]dto.ExamResultDTO, error) {
	results, err := s.resultRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}

	var dtos []dto.ExamResultDTO
	for _, r := range results {
		var d dto.ExamResultDTO
		if err := copier.Copy(&d, &r); err != nil {
			log.Error().Err(err).Uint("resultID", r.ID).Msg("Error copying result to DTO")
			continue
		}
		d.TestTitle = r.Test.Title
		dtos = append(dtos, d)
	}
	return dtos, nil
}
