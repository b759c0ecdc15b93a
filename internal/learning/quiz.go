package learning

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/internal/session"
)

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrIncomplete      = errors.New("quiz has unanswered questions")
	ErrSubmitted       = errors.New("quiz already submitted")
)

type Question struct {
	ID      string
	Prompt  string
	Options []string
	correct string
}

type Answer struct {
	Selected string
	Correct  bool
}

type Result struct {
	Correct int
	Total   int
	Passed  bool
}

type QuizOption func(*Quiz)

// WithShuffle replaces the option shuffler; tests pass a seeded one.
func WithShuffle(shuffle func(n int, swap func(i, j int))) QuizOption {
	return func(q *Quiz) {
		q.shuffle = shuffle
	}
}

// Quiz runs one quiz step. Each question is graded once; answering it again
// returns the first grade.
type Quiz struct {
	path    *Path
	step    api.LearningStep
	shuffle func(n int, swap func(i, j int))

	mu        sync.Mutex
	questions []Question
	answers   map[string]Answer
	result    *Result
}

func newQuiz(p *Path, step api.LearningStep, qs []api.QuizQuestion, opts ...QuizOption) *Quiz {
	q := &Quiz{
		path:    p,
		step:    step,
		shuffle: rand.Shuffle,
		answers: make(map[string]Answer),
	}
	for _, opt := range opts {
		opt(q)
	}

	for _, src := range qs {
		options := make([]string, 0, len(src.IncorrectAnswers)+1)
		options = append(options, src.CorrectAnswer)
		options = append(options, src.IncorrectAnswers...)
		q.shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
		q.questions = append(q.questions, Question{
			ID:      src.ID,
			Prompt:  src.Question,
			Options: options,
			correct: src.CorrectAnswer,
		})
	}
	return q
}

func (q *Quiz) Step() api.LearningStep { return q.step }

func (q *Quiz) Questions() []Question {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Question, len(q.questions))
	copy(out, q.questions)
	return out
}

func (q *Quiz) Answer(questionID, selected string) (Answer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if prev, ok := q.answers[questionID]; ok {
		return prev, nil
	}
	for _, question := range q.questions {
		if question.ID != questionID {
			continue
		}
		a := Answer{Selected: selected, Correct: session.Grade(selected, question.correct)}
		q.answers[questionID] = a
		return a, nil
	}
	return Answer{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
}

// CorrectAnswer is only revealed once the question has been answered.
func (q *Quiz) CorrectAnswer(questionID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.answers[questionID]; !ok {
		return "", false
	}
	for _, question := range q.questions {
		if question.ID == questionID {
			return question.correct, true
		}
	}
	return "", false
}

func (q *Quiz) Score() (correct, total int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.scoreLocked()
}

func (q *Quiz) scoreLocked() (correct, total int) {
	for _, a := range q.answers {
		if a.Correct {
			correct++
		}
	}
	return correct, len(q.questions)
}

// Submit reports the score. A passed quiz completes its step on the path.
func (q *Quiz) Submit(ctx context.Context) (Result, error) {
	q.mu.Lock()
	if q.result != nil {
		q.mu.Unlock()
		return *q.result, ErrSubmitted
	}
	if len(q.answers) < len(q.questions) {
		q.mu.Unlock()
		return Result{}, ErrIncomplete
	}
	correct, total := q.scoreLocked()
	q.mu.Unlock()

	passed, err := q.path.api.SubmitQuiz(ctx, q.step.ID, correct, total)
	if err != nil {
		return Result{}, fmt.Errorf("failed to submit quiz: %w", err)
	}

	res := Result{Correct: correct, Total: total, Passed: passed}
	q.mu.Lock()
	q.result = &res
	q.mu.Unlock()

	if passed {
		q.path.markCompleted(q.step.ID)
	}
	q.path.logger.Info("Quiz %q: %d/%d (passed: %v)", q.step.Title, correct, total, passed)
	return res, nil
}
