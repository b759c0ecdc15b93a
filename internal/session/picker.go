package session

import "github.com/kpauljoseph/deckdrill/pkg/models"

// eligible: not answered this session, and not mastered when studying due cards.
func (s *State) eligible(i int) bool {
	c := s.cards[i]
	if s.isCompleted(c.ID) {
		return false
	}
	return !s.dueOnly || c.State != models.StateMastered
}

// nextAfter scans forward from current, wrapping, and never returns current
// itself. -1 means no eligible card is loaded.
func (s *State) nextAfter(current int) int {
	n := len(s.cards)
	if n == 0 {
		return -1
	}
	if current < 0 {
		return s.scanFrom(0)
	}
	for step := 1; step < n; step++ {
		i := (current + step) % n
		if s.eligible(i) {
			return i
		}
	}
	return -1
}

// scanFrom is nextAfter including start itself.
func (s *State) scanFrom(start int) int {
	n := len(s.cards)
	if n == 0 {
		return -1
	}
	if start < 0 || start >= n {
		start = 0
	}
	for step := 0; step < n; step++ {
		i := (start + step) % n
		if s.eligible(i) {
			return i
		}
	}
	return -1
}

// firstFrom looks only at cards[start:], the most recently appended segment.
func (s *State) firstFrom(start int) int {
	for i := start; i < len(s.cards); i++ {
		if s.eligible(i) {
			return i
		}
	}
	return -1
}

// Grade is an exact, case-sensitive comparison.
func Grade(selected, correct string) bool {
	return selected == correct
}
