package scheduler

import (
	"math/rand"
	"sync"
	"time"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// Sampler draws exam papers from question banks in proportion to bank size.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler uses the given source, which makes draws reproducible in tests.
func NewSampler(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)}
}

// NewRandomSampler seeds from the clock.
func NewRandomSampler() *Sampler {
	return NewSampler(rand.NewSource(time.Now().UnixNano()))
}

// Sample selects min(target, available) questions. Every bank but the last
// gets floor(n*size/total); the last bank takes the remainder, capped at its
// own size, so the result can fall short when the last bank is small.
func (s *Sampler) Sample(banks []models.QuestionBank, target int) []models.QuestionSnapshot {
	total := 0
	for _, bank := range banks {
		total += len(bank.Questions)
	}
	toSelect := target
	if total < toSelect {
		toSelect = total
	}
	if toSelect <= 0 {
		return []models.QuestionSnapshot{}
	}

	result := make([]models.QuestionSnapshot, 0, toSelect)
	allocated := 0
	for i, bank := range banks {
		size := len(bank.Questions)
		var take int
		if i == len(banks)-1 {
			take = toSelect - allocated
		} else {
			take = toSelect * size / total
		}
		if take > size {
			take = size
		}
		if take <= 0 {
			continue
		}
		for _, idx := range s.pick(size, take) {
			result = append(result, snapshot(bank, bank.Questions[idx]))
		}
		allocated += take
	}
	return result
}

func (s *Sampler) pick(size, take int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.rng.Perm(size)
	return order[:take]
}

func snapshot(bank models.QuestionBank, q models.Question) models.QuestionSnapshot {
	return models.QuestionSnapshot{
		QuestionBankID: bank.ID,
		Topic:          bank.Topic,
		Question:       q.Question,
		Options:        q.Options,
		CorrectAnswer:  q.CorrectAnswer,
		Explanation:    q.Explanation,
	}
}
