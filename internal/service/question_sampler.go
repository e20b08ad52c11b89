package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"

	"github.com/lshigami/Quokkas/internal/model"
	"github.com/lshigami/Quokkas/internal/repository"
	"github.com/rs/zerolog/log"
)

// QuestionSampler derives a test's question subset on demand. Nothing is
// persisted per attempt: the test's own id seeds the shuffle, so the exact
// same ordered subset comes back at take time and at scoring time.
type QuestionSampler interface {
	Sample(test *model.Test) ([]model.Question, error)
	// BankHash computes the content hash frozen on a test at creation.
	BankHash(categoryID uint) (string, error)
}

type questionSampler struct {
	questionRepo repository.QuestionRepository
}

func NewQuestionSampler(questionRepo repository.QuestionRepository) QuestionSampler {
	return &questionSampler{questionRepo: questionRepo}
}

// BankHash hashes the bank's (id, correct option) pairs in id order. Any
// edit, removal or reorder of existing questions changes the hash; appending
// new questions changes it too, which is intentional: appends also change
// what a seeded shuffle would deal.
func (s *questionSampler) BankHash(categoryID uint) (string, error) {
	questions, err := s.questionRepo.FindByCategoryID(categoryID)
	if err != nil {
		return "", fmt.Errorf("failed to load question bank %d: %w", categoryID, err)
	}
	return hashQuestions(questions), nil
}

func (s *questionSampler) Sample(test *model.Test) ([]model.Question, error) {
	questions, err := s.questionRepo.FindByCategoryID(test.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load question bank %d: %w", test.CategoryID, err)
	}
	if len(questions) < test.QuestionCount {
		return nil, fmt.Errorf("%w: bank has %d, test wants %d", ErrBankTooSmall, len(questions), test.QuestionCount)
	}

	// Refuse to deal a paper the frozen hash no longer describes; a drifted
	// bank would silently change what earlier takers saw.
	if test.BankHash != "" {
		if hashQuestions(questions) != test.BankHash {
			log.Error().Uint("testID", test.ID).Uint("categoryID", test.CategoryID).
				Msg("Question bank content hash mismatch; refusing to sample")
			return nil, ErrBankChanged
		}
	}

	// Deterministic shuffle: the repository returns the bank in id order and
	// the test's identity seeds the generator.
	shuffled := make([]model.Question, len(questions))
	copy(shuffled, questions)
	rng := rand.New(rand.NewSource(int64(test.ID)))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return shuffled[:test.QuestionCount], nil
}

func hashQuestions(questions []model.Question) string {
	h := sha256.New()
	for _, q := range questions {
		fmt.Fprintf(h, "%d:%s;", q.ID, q.CorrectOption)
	}
	return hex.EncodeToString(h.Sum(nil))
}
