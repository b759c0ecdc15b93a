package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/kpauljoseph/deckdrill/pkg/logger"
)

var (
	ErrEmpty    = errors.New("nothing selected")
	ErrSameDeck = errors.New("cards are already in that deck")
	ErrNoTarget = errors.New("target deck required")
)

// CardBulk is the part of the API client that acts on many cards at once.
type CardBulk interface {
	MoveFlashcards(ctx context.Context, cardIDs []string, targetDeckID string) (int, error)
	BulkDeleteFlashcards(ctx context.Context, cardIDs []string) (int, error)
}

type DeckBulk interface {
	BulkDeleteDecks(ctx context.Context, deckIDs []string) (int, error)
}

// Mover runs bulk card actions for the cards selected in one deck.
type Mover struct {
	api        CardBulk
	sourceDeck string
	selection  *Selection
	logger     *logger.Logger
}

func NewMover(api CardBulk, sourceDeck string, sel *Selection, log *logger.Logger) *Mover {
	if log == nil {
		log = logger.Discard()
	}
	return &Mover{api: api, sourceDeck: sourceDeck, selection: sel, logger: log}
}

// MoveTo moves every selected card to targetDeck. The selection is cleared only
// when the server accepted the move.
func (m *Mover) MoveTo(ctx context.Context, targetDeck string) (int, error) {
	ids := m.selection.IDs()
	switch {
	case len(ids) == 0:
		return 0, ErrEmpty
	case targetDeck == "":
		return 0, ErrNoTarget
	case targetDeck == m.sourceDeck:
		return 0, ErrSameDeck
	}

	moved, err := m.api.MoveFlashcards(ctx, ids, targetDeck)
	if err != nil {
		m.logger.Error("Moving %d cards to deck %s failed: %v", len(ids), targetDeck, err)
		return 0, fmt.Errorf("failed to move cards: %w", err)
	}
	m.logger.Info("Moved %d cards from deck %s to %s", moved, m.sourceDeck, targetDeck)
	m.selection.Clear()
	return moved, nil
}

func (m *Mover) Delete(ctx context.Context) (int, error) {
	ids := m.selection.IDs()
	if len(ids) == 0 {
		return 0, ErrEmpty
	}

	deleted, err := m.api.BulkDeleteFlashcards(ctx, ids)
	if err != nil {
		m.logger.Error("Deleting %d cards failed: %v", len(ids), err)
		return 0, fmt.Errorf("failed to delete cards: %w", err)
	}
	m.logger.Info("Deleted %d cards from deck %s", deleted, m.sourceDeck)
	m.selection.Clear()
	return deleted, nil
}

// DeleteDecks removes every selected deck along with its cards.
func DeleteDecks(ctx context.Context, api DeckBulk, sel *Selection, log *logger.Logger) (int, error) {
	if log == nil {
		log = logger.Discard()
	}
	ids := sel.IDs()
	if len(ids) == 0 {
		return 0, ErrEmpty
	}
	deleted, err := api.BulkDeleteDecks(ctx, ids)
	if err != nil {
		log.Error("Deleting %d decks failed: %v", len(ids), err)
		return 0, fmt.Errorf("failed to delete decks: %w", err)
	}
	log.Info("Deleted %d decks", deleted)
	sel.Clear()
	return deleted, nil
}
