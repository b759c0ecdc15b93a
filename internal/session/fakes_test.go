package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/internal/session"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
	"github.com/kpauljoseph/deckdrill/pkg/models"
)

var errBoom = errors.New("boom")

func sessionTestLogger() *logger.Logger {
	log := logger.New(
		logger.WithOutput(GinkgoWriter),
		logger.WithPrefix("[session-test] "),
		logger.WithFlags(0),
	)
	log.SetLevel(logger.LevelTrace)
	return log
}

func makeCards(n int, state models.CardState) []models.Card {
	cards := make([]models.Card, n)
	for i := range cards {
		cards[i] = models.Card{
			ID:               fmt.Sprintf("c%d", i+1),
			DeckID:           "d1",
			Question:         fmt.Sprintf("question %d", i+1),
			CorrectAnswer:    fmt.Sprintf("answer %d", i+1),
			IncorrectAnswers: []string{"wrong a", "wrong b", "wrong c"},
			State:            state,
		}
	}
	return cards
}

// fakeBackend serves a fixed card list in pages and records every call.
type fakeBackend struct {
	mu    sync.Mutex
	cards []models.Card

	pageCalls     []int
	progressCalls []string
	deleted       []string
	dueCalls      int

	pageErr     map[int]error
	progressErr error
	deleteErr   error
	dueErr      error
	dueCount    int

	// block, when set, holds StudyPage until closed.
	block   chan struct{}
	entered chan struct{}

	// progressBlock, when set, holds UpdateProgress until closed.
	progressBlock   chan struct{}
	progressEntered chan struct{}
}

var _ session.Backend = (*fakeBackend)(nil)

func newFakeBackend(cards []models.Card) *fakeBackend {
	return &fakeBackend{cards: cards, pageErr: make(map[int]error)}
}

func (f *fakeBackend) StudyPage(ctx context.Context, deckID string, dueOnly bool, page, perPage int) (*api.StudyPage, error) {
	f.mu.Lock()
	f.pageCalls = append(f.pageCalls, page)
	block, entered := f.block, f.entered
	err := f.pageErr[page]
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	total := len(f.cards)
	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	out := make([]models.Card, end-start)
	copy(out, f.cards[start:end])
	return &api.StudyPage{
		Cards:      out,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
		PerPage:    perPage,
		Page:       page,
	}, nil
}

func (f *fakeBackend) UpdateProgress(ctx context.Context, cardID string, isCorrect bool) (*api.ProgressUpdate, error) {
	f.mu.Lock()
	f.progressCalls = append(f.progressCalls, cardID)
	block, entered := f.progressBlock, f.progressEntered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	state := models.StateForgotten
	if isCorrect {
		state = models.StateLearning
	}
	return &api.ProgressUpdate{State: state}, nil
}

func (f *fakeBackend) DueCount(ctx context.Context, deckID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dueCalls++
	return f.dueCount, f.dueErr
}

func (f *fakeBackend) DeleteFlashcard(ctx context.Context, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, cardID)
	return nil
}

func (f *fakeBackend) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.pageCalls...)
}

func (f *fakeBackend) progress() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.progressCalls...)
}

// recorder keeps every observer callback.
type recorder struct {
	mu        sync.Mutex
	shown     []session.View
	graded    []session.Result
	failures  []error
	summaries []session.Summary
}

func (r *recorder) CardShown(v session.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, v)
}

func (r *recorder) AnswerGraded(res session.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graded = append(r.graded, res)
}

func (r *recorder) Failed(err error, retryable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *recorder) Completed(s session.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
}

func (r *recorder) shownIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.shown))
	for i, v := range r.shown {
		ids[i] = v.Card.ID
	}
	return ids
}

func (r *recorder) completedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.summaries)
}
