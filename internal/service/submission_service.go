package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/lshigami/Quokkas/internal/clock"
	"github.com/lshigami/Quokkas/internal/dto"
	"github.com/lshigami/Quokkas/internal/model"
	"github.com/lshigami/Quokkas/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	// submitDedupeWindow is the span within which a repeated submit is the
	// same logical attempt, not a new one.
	submitDedupeWindow = 60 * time.Second
	// startEstimateCap bounds the estimated start time when no real start
	// was recorded.
	startEstimateCap = 30 * time.Minute
)

// SubmissionService accepts answer sets and produces exactly one persisted
// ExamResult per logical attempt, no matter how many times the client
// retries the submit call.
type SubmissionService interface {
	StartExam(ctx context.Context, userID, testID uint) (*dto.ExamPaperDTO, error)
	SubmitExam(ctx context.Context, userID, testID uint, answers map[uint]string) (*dto.SubmitResponseDTO, error)
	GetMyResults(ctx context.Context, userID, testID uint) ([]dto.ExamResultDTO, error)
}

type submissionService struct {
	testRepo    repository.TestRepository
	resultRepo  repository.ExamResultRepository
	bookingRepo repository.BookingRepository
	sampler     QuestionSampler
	clk         clock.Clock
	db          *gorm.DB
}

func NewSubmissionService(
	testRepo repository.TestRepository,
	resultRepo repository.ExamResultRepository,
	bookingRepo repository.BookingRepository,
	sampler QuestionSampler,
	clk clock.Clock,
	db *gorm.DB,
) SubmissionService {
	return &submissionService{
		testRepo:    testRepo,
		resultRepo:  resultRepo,
		bookingRepo: bookingRepo,
		sampler:     sampler,
		clk:         clk,
		db:          db,
	}
}

// StartExam re-derives the test's question subset for display and records a
// zero-question placeholder result carrying the real start time. The subset
// itself is never persisted.
func (s *submissionService) StartExam(ctx context.Context, userID, testID uint) (*dto.ExamPaperDTO, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to load test %d: %w", testID, err)
	}

	questions, err := s.sampler.Sample(test)
	if err != nil {
		return nil, err
	}

	// Reuse an existing placeholder rather than piling up abandoned rows; a
	// candidate re-opening the exam keeps their original start time.
	if _, err := s.resultRepo.FindLatestIncomplete(testID, userID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up placeholder result: %w", err)
		}
		placeholder := &model.ExamResult{
			TestID:    testID,
			UserID:    userID,
			StartedAt: s.clk.Now(),
		}
		if err := s.resultRepo.Create(placeholder); err != nil {
			return nil, fmt.Errorf("failed to create placeholder result: %w", err)
		}
	}

	paper := &dto.ExamPaperDTO{
		TestID:          test.ID,
		Title:           test.Title,
		DurationMinutes: test.DurationMinutes,
		Questions:       make([]dto.ExamQuestionDTO, 0, len(questions)),
	}
	for _, q := range questions {
		var qDTO dto.ExamQuestionDTO
		if err := copier.Copy(&qDTO, &q); err != nil {
			return nil, fmt.Errorf("error preparing question response: %w", err)
		}
		paper.Questions = append(paper.Questions, qDTO)
	}
	return paper, nil
}

// SubmitExam scores an answer set. Within the dedupe window a repeat call
// resolves to the existing result with no writes; otherwise the latest
// placeholder is completed in place, or a fresh row is inserted with the
// next gap-free attempt number among complete results. The result write and
// the booking transition commit or roll back together.
func (s *submissionService) SubmitExam(ctx context.Context, userID, testID uint, answers map[uint]string) (*dto.SubmitResponseDTO, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to load test %d: %w", testID, err)
	}

	// Re-derive the exact subset that was shown at take time.
	questions, err := s.sampler.Sample(test)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	var result *model.ExamResult
	isDuplicate := false

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		er := s.resultRepo.WithTx(tx)
		br := s.bookingRepo.WithTx(tx)

		// Step 1: duplicate submit inside the window resolves to the
		// existing attempt, no writes.
		if recent, err := er.FindRecentComplete(testID, userID, now.Add(-submitDedupeWindow)); err == nil {
			result = recent
			isDuplicate = true
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check for recent submission: %w", err)
		}

		correct := 0
		for _, q := range questions {
			if selected, ok := answers[q.ID]; ok && selected == q.CorrectOption {
				correct++
			}
		}

		attempt, err := er.MaxAttemptNumber(testID, userID)
		if err != nil {
			return fmt.Errorf("failed to compute attempt number: %w", err)
		}
		attempt++

		// Step 2: absorb the placeholder created at start time if one
		// exists, otherwise insert a new row.
		placeholder, err := er.FindLatestIncomplete(testID, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up placeholder result: %w", err)
		}
		if placeholder != nil {
			result = placeholder
		} else {
			result = &model.ExamResult{TestID: testID, UserID: userID}
		}

		result.AttemptNumber = attempt
		result.TotalQuestions = len(questions)
		result.CorrectCount = correct
		result.Score = correct // 1 point per correct item, no weighting
		result.EndedAt = now
		result.SubmittedAt = now
		if result.StartedAt.IsZero() {
			estimate := time.Duration(test.DurationMinutes) * time.Minute
			if estimate > startEstimateCap {
				estimate = startEstimateCap
			}
			result.StartedAt = now.Add(-estimate)
		}

		if result.ID != 0 {
			if err := er.Update(result); err != nil {
				return fmt.Errorf("failed to complete placeholder result: %w", err)
			}
		} else if err := er.Create(result); err != nil {
			return fmt.Errorf("failed to create exam result: %w", err)
		}

		// Step 5: flip the owning booking. Its absence is not fatal; a
		// special-category user may legitimately have none.
		booking, err := br.FindConfirmedOrCompleted(testID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Info().Uint("testID", testID).Uint("userID", userID).
					Msg("Submission scored with no owning booking")
				return nil
			}
			return fmt.Errorf("failed to look up owning booking: %w", err)
		}
		if booking.Status != model.BookingStatusCompleted {
			booking.Status = model.BookingStatusCompleted
			booking.Reason = "test completed by user"
			if err := br.Save(booking); err != nil {
				return fmt.Errorf("failed to complete booking %d: %w", booking.ID, err)
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	var resultDTO dto.ExamResultDTO
	if err := copier.Copy(&resultDTO, result); err != nil {
		return nil, fmt.Errorf("error preparing result response: %w", err)
	}
	resultDTO.TestTitle = test.Title
	return &dto.SubmitResponseDTO{Result: resultDTO, IsDuplicate: isDuplicate}, nil
}

func (s *submissionService) GetMyResults(ctx context.Context, userID, testID uint) ([]dto.ExamResultDTO, error) {
	results, err := s.resultRepo.FindAllByTestAndUser(testID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}

	dtos := make([]dto.ExamResultDTO, 0, len(results))
	for _, r := range results {
		var d dto.ExamResultDTO
		if err := copier.Copy(&d, &r); err != nil {
			log.Error().Err(err).Uint("resultID", r.ID).Msg("Error copying result to DTO")
			continue
		}
		dtos = append(dtos, d)
	}
	return dtos, nil
}
