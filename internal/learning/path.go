package learning

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
)

var (
	ErrNotQuiz    = errors.New("step is not a quiz")
	ErrNotContent = errors.New("step has no generated content")
	ErrNoStep     = errors.New("step not on this path")
)

type API interface {
	LearningPath(ctx context.Context, deckID string) ([]api.LearningStep, error)
	GenerateContent(ctx context.Context, stepID string) (string, error)
	Quiz(ctx context.Context, stepID string) ([]api.QuizQuestion, error)
	SubmitQuiz(ctx context.Context, stepID string, correct, total int) (bool, error)
}

// Path is the ordered list of learning steps for one deck. Steps unlock in
// order: the current step is the first one not yet completed.
type Path struct {
	api    API
	deckID string
	logger *logger.Logger

	mu    sync.Mutex
	steps []api.LearningStep
}

func Load(ctx context.Context, client API, deckID string, log *logger.Logger) (*Path, error) {
	if log == nil {
		log = logger.Discard()
	}
	steps, err := client.LearningPath(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to load learning path: %w", err)
	}
	log.Debug("Learning path for deck %s has %d steps", deckID, len(steps))
	return &Path{api: client, deckID: deckID, logger: log, steps: steps}, nil
}

func (p *Path) DeckID() string { return p.deckID }

func (p *Path) Steps() []api.LearningStep {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]api.LearningStep, len(p.steps))
	copy(out, p.steps)
	return out
}

func (p *Path) Current() (api.LearningStep, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.steps {
		if !s.Completed {
			return s, true
		}
	}
	return api.LearningStep{}, false
}

// Progress returns completed and total step counts.
func (p *Path) Progress() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	done := 0
	for _, s := range p.steps {
		if s.Completed {
			done++
		}
	}
	return done, len(p.steps)
}

func (p *Path) Done() bool {
	done, total := p.Progress()
	return done == total
}

// Content fetches the material for a content step. Reading it completes the step.
func (p *Path) Content(ctx context.Context, step api.LearningStep) (string, error) {
	if step.Kind != api.StepKindContent {
		return "", ErrNotContent
	}
	if !p.has(step.ID) {
		return "", ErrNoStep
	}
	content, err := p.api.GenerateContent(ctx, step.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load content for %q: %w", step.Title, err)
	}
	p.markCompleted(step.ID)
	return content, nil
}

func (p *Path) StartQuiz(ctx context.Context, step api.LearningStep, opts ...QuizOption) (*Quiz, error) {
	if step.Kind != api.StepKindQuiz {
		return nil, ErrNotQuiz
	}
	if !p.has(step.ID) {
		return nil, ErrNoStep
	}
	questions, err := p.api.Quiz(ctx, step.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz for %q: %w", step.Title, err)
	}
	return newQuiz(p, step, questions, opts...), nil
}

func (p *Path) has(stepID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.steps {
		if s.ID == stepID {
			return true
		}
	}
	return false
}

func (p *Path) markCompleted(stepID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.steps {
		if p.steps[i].ID == stepID {
			p.steps[i].Completed = true
			return
		}
	}
}
