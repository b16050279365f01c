package repository

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stemsi/exstem-proctor/internal/model"
)

//go:embed questions.json
var defaultQuestions []byte

var ErrEmptyQuestionBank = errors.New("question bank has no questions")

// QuestionBank is the immutable, ordered list of exam questions loaded at start-up.
type QuestionBank struct {
	questions []model.Question
	safe      []model.SafeQuestion
}

// LoadQuestionBank reads the bank from path, or the built-in bank when path is empty.
func LoadQuestionBank(path string) (*QuestionBank, error) {
	raw := defaultQuestions
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read question bank: %w", err)
		}
		raw = b
	}

	var questions []model.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	return NewQuestionBank(questions)
}

// NewQuestionBank validates questions and freezes them into a bank.
func NewQuestionBank(questions []model.Question) (*QuestionBank, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionBank
	}

	v := govalidator.New()
	seen := make(map[int]struct{}, len(questions))
	bank := &QuestionBank{
		questions: make([]model.Question, len(questions)),
		safe:      make([]model.SafeQuestion, len(questions)),
	}

	for i, q := range questions {
		if err := v.Struct(q); err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		if q.CorrectIndex >= len(q.Options) {
			return nil, fmt.Errorf("question %d: correct index %d out of range", q.ID, q.CorrectIndex)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id", q.ID)
		}
		seen[q.ID] = struct{}{}

		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		bank.questions[i] = q
		bank.safe[i] = q.Safe()
	}

	return bank, nil
}

// All returns the questions with their answer keys, in bank order.
func (b *QuestionBank) All() []model.Question {
	out := make([]model.Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Safe returns the client-visible projection, in bank order.
func (b *QuestionBank) Safe() []model.SafeQuestion {
	out := make([]model.SafeQuestion, len(b.safe))
	copy(out, b.safe)
	return out
}

// Len is the number of questions.
func (b *QuestionBank) Len() int {
	return len(b.questions)
}
