package session

import (
	"sort"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/pkg/models"
)

// State is the bookkeeping of one study run. The completed set is the only
// record of what has been answered; renderers read it, never write it.
//
// Invariants: score == len(completed) <= totalExpected, and while an
// uncompleted in-scope card exists, current points at one.
type State struct {
	deckID        string
	dueOnly       bool
	cards         []models.Card
	completed     map[string]struct{}
	score         int
	totalExpected int
	current       int
	page          int
	totalPages    int
	pageSize      int
}

func newState(deckID string, dueOnly bool, pageSize int) *State {
	return &State{
		deckID:    deckID,
		dueOnly:   dueOnly,
		completed: make(map[string]struct{}),
		current:   -1,
		pageSize:  pageSize,
	}
}

// Snapshot is a copy of the state for display and tests.
type Snapshot struct {
	DeckID        string
	DueOnly       bool
	Cards         []models.Card
	CompletedIDs  []string
	Score         int
	TotalExpected int
	CurrentIndex  int
	Page          int
	TotalPages    int
	PageSize      int
}

func (s *State) snapshot() Snapshot {
	cards := make([]models.Card, len(s.cards))
	copy(cards, s.cards)
	ids := make([]string, 0, len(s.completed))
	for id := range s.completed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Snapshot{
		DeckID:        s.deckID,
		DueOnly:       s.dueOnly,
		Cards:         cards,
		CompletedIDs:  ids,
		Score:         s.score,
		TotalExpected: s.totalExpected,
		CurrentIndex:  s.current,
		Page:          s.page,
		TotalPages:    s.totalPages,
		PageSize:      s.pageSize,
	}
}

// applyFirstPage seeds the state. The server's total replaces any guess.
func (s *State) applyFirstPage(p *api.StudyPage) {
	s.cards = append(s.cards[:0], p.Cards...)
	s.totalExpected = p.Total
	s.totalPages = p.TotalPages
	s.page = 1
	if p.PerPage > 0 {
		s.pageSize = p.PerPage
	}
}

// appendPage adds a later segment and returns where it starts.
func (s *State) appendPage(p *api.StudyPage, requested int) int {
	start := len(s.cards)
	s.cards = append(s.cards, p.Cards...)
	s.page = requested
	if p.TotalPages > 0 {
		s.totalPages = p.TotalPages
	}
	return start
}

func (s *State) isCompleted(id string) bool {
	_, ok := s.completed[id]
	return ok
}

// markCompleted adds id once. It reports whether the score moved.
func (s *State) markCompleted(id string) bool {
	if s.isCompleted(id) {
		return false
	}
	s.completed[id] = struct{}{}
	s.score++
	return true
}

func (s *State) applyProgress(id string, u *api.ProgressUpdate) {
	for i := range s.cards {
		if s.cards[i].ID != id {
			continue
		}
		s.cards[i].State = u.State
		if u.Retrievability != nil {
			s.cards[i].Retrievability = u.Retrievability
		}
		if u.DueDate != nil {
			s.cards[i].DueDate = u.DueDate
		}
		return
	}
}

// remove drops the card with id and reports its former index.
func (s *State) remove(id string) (index int, wasCompleted bool, ok bool) {
	for i := range s.cards {
		if s.cards[i].ID != id {
			continue
		}
		s.cards = append(s.cards[:i], s.cards[i+1:]...)
		wasCompleted = s.isCompleted(id)
		if !wasCompleted && s.totalExpected > s.score {
			s.totalExpected--
		}
		switch {
		case len(s.cards) == 0:
			s.current = -1
		case s.current > i:
			s.current--
		case s.current >= len(s.cards):
			s.current = len(s.cards) - 1
		}
		return i, wasCompleted, true
	}
	return -1, false, false
}

func (s *State) finished() bool {
	return len(s.completed) >= s.totalExpected
}

func (s *State) morePages() bool {
	return s.page < s.totalPages
}

// atSegmentBoundary reports whether the completed count just filled a page.
func (s *State) atSegmentBoundary() bool {
	return s.pageSize > 0 && len(s.completed) > 0 && len(s.completed)%s.pageSize == 0
}

func (s *State) currentCard() (models.Card, bool) {
	if s.current < 0 || s.current >= len(s.cards) {
		return models.Card{}, false
	}
	return s.cards[s.current], true
}
