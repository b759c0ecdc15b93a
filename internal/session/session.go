package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
	"github.com/kpauljoseph/deckdrill/pkg/models"
)

var (
	// ErrBusy is returned when an action arrives while a submit or load is in
	// flight. The action is dropped, not queued.
	ErrBusy = errors.New("session: operation already in progress")
	// ErrNotAllowed is returned for actions that make no sense in the current phase.
	ErrNotAllowed = errors.New("session: action not allowed now")
	ErrClosed     = errors.New("session: closed")
)

const DefaultPageSize = 25

// Backend is the part of the study server a session talks to.
type Backend interface {
	Source
	UpdateProgress(ctx context.Context, cardID string, isCorrect bool) (*api.ProgressUpdate, error)
	DueCount(ctx context.Context, deckID string) (int, error)
	DeleteFlashcard(ctx context.Context, cardID string) error
}

type Phase int

const (
	PhaseNew Phase = iota
	PhaseLoading
	PhaseIdle
	PhaseSubmitting
	PhaseCorrect
	PhaseIncorrect
	PhaseStalled
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseLoading:
		return "loading"
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseCorrect:
		return "correct"
	case PhaseIncorrect:
		return "incorrect"
	case PhaseStalled:
		return "stalled"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Action is anything Dispatch accepts.
type Action interface {
	action()
}

type (
	Start         struct{}
	Submit        struct{ Answer string }
	Next          struct{}
	Skip          struct{}
	DeleteCurrent struct{}
	Retry         struct{}
)

func (Start) action()         {}
func (Submit) action()        {}
func (Next) action()          {}
func (Skip) action()          {}
func (DeleteCurrent) action() {}
func (Retry) action()         {}

type Config struct {
	DeckID      string
	DueOnly     bool
	PageSize    int
	AutoAdvance time.Duration
}

// View is what a renderer needs to paint the current card.
type View struct {
	Card       models.Card
	Index      int
	Score      int
	Total      int
	Page       int
	TotalPages int
	UpNext     *models.Card
}

type Result struct {
	Card          models.Card
	Selected      string
	Correct       bool
	Score         int
	Total         int
	AutoAdvance   time.Duration
	ProgressError error
}

type Summary struct {
	Score       int
	Total       int
	DueOnly     bool
	DueCount    *int
	DueCountErr error
}

// Observer is the rendering side. Calls happen outside the session lock and
// may come from the auto-advance timer goroutine.
type Observer interface {
	CardShown(v View)
	AnswerGraded(r Result)
	Failed(err error, retryable bool)
	Completed(s Summary)
}

type NopObserver struct{}

func (NopObserver) CardShown(View)      {}
func (NopObserver) AnswerGraded(Result) {}
func (NopObserver) Failed(error, bool)  {}
func (NopObserver) Completed(Summary)   {}

// Session is one study run through a deck. All input goes through Dispatch.
type Session struct {
	cfg      Config
	backend  Backend
	loader   *Loader
	observer Observer
	logger   *logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	state   *State
	phase   Phase
	resume  func(ctx context.Context) error
	lastErr error
	summary *Summary
	timer   *time.Timer
	seq     uint64
	closed  bool

	done     chan struct{}
	doneOnce sync.Once
}

func New(backend Backend, cfg Config, observer Observer, log *logger.Logger) *Session {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Session{
		cfg:      cfg,
		backend:  backend,
		loader:   NewLoader(backend, cfg.DeckID, cfg.DueOnly, cfg.PageSize, log),
		observer: observer,
		logger:   log,
		ctx:      context.Background(),
		state:    newState(cfg.DeckID, cfg.DueOnly, cfg.PageSize),
		phase:    PhaseNew,
		done:     make(chan struct{}),
	}
}

// Dispatch is the single entry point for user input.
func (s *Session) Dispatch(ctx context.Context, a Action) error {
	switch a := a.(type) {
	case Start:
		return s.start(ctx)
	case Submit:
		return s.submit(ctx, a.Answer)
	case Next:
		return s.next(ctx)
	case Skip:
		return s.skip(ctx)
	case DeleteCurrent:
		return s.deleteCurrent(ctx)
	case Retry:
		return s.retry(ctx)
	default:
		return fmt.Errorf("session: unknown action %T", a)
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.snapshot()
}

func (s *Session) Current() (models.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.currentCard()
}

// Err is the failure that put the session in PhaseStalled.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Summary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return Summary{}, false
	}
	return *s.summary, true
}

// Done is closed once the session completes or is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the auto-advance timer and rejects further actions.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// busyLocked maps the current phase to the error for a rejected action.
func (s *Session) busyLocked() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.phase == PhaseSubmitting || s.phase == PhaseLoading:
		return ErrBusy
	default:
		return ErrNotAllowed
	}
}

func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.phase != PhaseNew {
		err := s.busyLocked()
		s.mu.Unlock()
		return err
	}
	s.ctx = context.WithoutCancel(ctx)
	s.phase = PhaseLoading
	s.mu.Unlock()

	return s.loadFirst(ctx)
}

func (s *Session) loadFirst(ctx context.Context) error {
	p, err := s.loader.LoadFirstPage(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.stallLocked(err, s.loadFirst)
		s.mu.Unlock()
		s.observer.Failed(err, true)
		return err
	}
	s.state.applyFirstPage(p)
	s.logger.Info("Studying deck %s: %d cards over %d pages", s.cfg.DeckID, p.Total, p.TotalPages)
	s.mu.Unlock()

	return s.advance(ctx, 0, true)
}

func (s *Session) stallLocked(err error, resume func(ctx context.Context) error) {
	s.phase = PhaseStalled
	s.lastErr = err
	s.resume = resume
}

// advance moves to the next eligible card, starting at from (inclusive) or
// just after it. When nothing loaded is eligible it pulls further pages and
// prefers the first eligible card of the new segment. With no pages left the
// session completes.
func (s *Session) advance(ctx context.Context, from int, inclusive bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state.finished() {
		s.mu.Unlock()
		return s.finish(ctx)
	}

	var idx int
	if inclusive {
		idx = s.state.scanFrom(from)
	} else {
		idx = s.state.nextAfter(from)
	}

	for idx < 0 && s.state.morePages() {
		next := s.state.page + 1
		if s.state.atSegmentBoundary() {
			s.logger.Debug("Segment boundary reached after %d cards, fetching page %d", len(s.state.completed), next)
		} else {
			s.logger.Debug("No eligible card loaded, fetching page %d", next)
		}
		s.phase = PhaseLoading
		s.mu.Unlock()

		p, err := s.loader.LoadNextPage(ctx, next)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if err != nil {
			s.stallLocked(err, func(ctx context.Context) error {
				return s.advance(ctx, from, inclusive)
			})
			s.mu.Unlock()
			s.observer.Failed(err, true)
			return err
		}
		start := s.state.appendPage(p, next)
		idx = s.state.firstFrom(start)
	}

	if idx < 0 && !inclusive && from >= 0 && from < len(s.state.cards) && s.state.eligible(from) {
		// Skipping the only card left keeps it on screen.
		idx = from
	}
	if idx < 0 {
		s.mu.Unlock()
		return s.finish(ctx)
	}

	s.state.current = idx
	s.phase = PhaseIdle
	s.lastErr = nil
	s.resume = nil
	view := s.viewLocked()
	s.mu.Unlock()

	s.observer.CardShown(view)
	return nil
}

func (s *Session) viewLocked() View {
	v := View{
		Card:       s.state.cards[s.state.current],
		Index:      s.state.current,
		Score:      s.state.score,
		Total:      s.state.totalExpected,
		Page:       s.state.page,
		TotalPages: s.state.totalPages,
	}
	if i := s.state.nextAfter(s.state.current); i >= 0 {
		upNext := s.state.cards[i]
		v.UpNext = &upNext
	}
	return v
}

func (s *Session) submit(ctx context.Context, answer string) error {
	s.mu.Lock()
	if s.closed || s.phase != PhaseIdle {
		err := s.busyLocked()
		s.mu.Unlock()
		if errors.Is(err, ErrBusy) {
			s.logger.Debug("Ignoring answer while a submission is in flight")
		}
		return err
	}
	card, ok := s.state.currentCard()
	if !ok {
		s.mu.Unlock()
		return ErrNotAllowed
	}
	s.phase = PhaseSubmitting
	s.mu.Unlock()

	correct := Grade(answer, card.CorrectAnswer)
	update, progressErr := s.backend.UpdateProgress(ctx, card.ID, correct)
	if progressErr != nil {
		s.logger.Warn("Failed to record progress for card %s: %v", card.ID, progressErr)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if progressErr == nil {
		s.state.applyProgress(card.ID, update)
	}
	s.state.markCompleted(card.ID)
	updated, _ := s.state.currentCard()
	finished := s.state.finished()

	result := Result{
		Card:          updated,
		Selected:      answer,
		Correct:       correct,
		Score:         s.state.score,
		Total:         s.state.totalExpected,
		ProgressError: progressErr,
	}
	if correct {
		s.phase = PhaseCorrect
		if !finished {
			result.AutoAdvance = s.cfg.AutoAdvance
			s.scheduleAdvanceLocked()
		}
	} else {
		s.phase = PhaseIncorrect
	}
	s.mu.Unlock()

	s.observer.AnswerGraded(result)
	if finished {
		return s.finish(ctx)
	}
	return nil
}

func (s *Session) scheduleAdvanceLocked() {
	s.stopTimerLocked()
	seq := s.seq
	if s.cfg.AutoAdvance <= 0 {
		// Leave it to an explicit Next.
		return
	}
	s.timer = time.AfterFunc(s.cfg.AutoAdvance, func() {
		s.autoAdvance(seq)
	})
}

func (s *Session) stopTimerLocked() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) autoAdvance(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.seq || s.phase != PhaseCorrect {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.phase = PhaseLoading
	from := s.state.current
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.advance(ctx, from, false); err != nil {
		s.logger.Debug("Auto-advance stopped: %v", err)
	}
}

func (s *Session) next(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || (s.phase != PhaseCorrect && s.phase != PhaseIncorrect) {
		err := s.busyLocked()
		s.mu.Unlock()
		return err
	}
	s.stopTimerLocked()
	s.phase = PhaseLoading
	from := s.state.current
	s.mu.Unlock()

	return s.advance(ctx, from, false)
}

func (s *Session) skip(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.phase != PhaseIdle {
		err := s.busyLocked()
		s.mu.Unlock()
		return err
	}
	s.phase = PhaseLoading
	from := s.state.current
	s.mu.Unlock()

	return s.advance(ctx, from, false)
}

func (s *Session) deleteCurrent(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || (s.phase != PhaseIdle && s.phase != PhaseCorrect && s.phase != PhaseIncorrect) {
		err := s.busyLocked()
		s.mu.Unlock()
		return err
	}
	card, ok := s.state.currentCard()
	if !ok {
		s.mu.Unlock()
		return ErrNotAllowed
	}
	prev := s.phase
	s.stopTimerLocked()
	s.phase = PhaseLoading
	s.mu.Unlock()

	if err := s.backend.DeleteFlashcard(ctx, card.ID); err != nil {
		s.logger.Error("Failed to delete card %s: %v", card.ID, err)
		s.mu.Lock()
		s.phase = prev
		if prev == PhaseCorrect {
			s.scheduleAdvanceLocked()
		}
		s.mu.Unlock()
		s.observer.Failed(fmt.Errorf("failed to delete card: %w", err), false)
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	idx, _, _ := s.state.remove(card.ID)
	s.logger.Info("Deleted card %s", card.ID)
	if len(s.state.cards) == 0 {
		s.mu.Unlock()
		return s.finish(ctx)
	}
	if idx >= len(s.state.cards) {
		idx = 0
	}
	s.mu.Unlock()

	return s.advance(ctx, idx, true)
}

func (s *Session) retry(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.phase != PhaseStalled || s.resume == nil {
		err := s.busyLocked()
		s.mu.Unlock()
		return err
	}
	resume := s.resume
	s.phase = PhaseLoading
	s.mu.Unlock()

	return resume(ctx)
}

// finish enters the terminal phase. Due-only runs also ask how many cards are
// due now; that lookup may fail without failing the session.
func (s *Session) finish(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseComplete {
		s.mu.Unlock()
		return nil
	}
	s.phase = PhaseComplete
	s.stopTimerLocked()
	s.state.current = -1
	summary := Summary{
		Score:   s.state.score,
		Total:   s.state.totalExpected,
		DueOnly: s.cfg.DueOnly,
	}
	s.mu.Unlock()

	if summary.DueOnly {
		n, err := s.backend.DueCount(ctx, s.cfg.DeckID)
		if err != nil {
			s.logger.Warn("Could not refresh due count for deck %s: %v", s.cfg.DeckID, err)
			summary.DueCountErr = err
		} else {
			summary.DueCount = &n
		}
	}

	s.mu.Lock()
	s.summary = &summary
	s.mu.Unlock()

	s.logger.Info("Session complete: %d/%d", summary.Score, summary.Total)
	s.observer.Completed(summary)
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}
