package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/kpauljoseph/deckdrill/pkg/models"
)

func (c *Client) ListFlashcards(ctx context.Context, deckID string) ([]models.Card, error) {
	const op = "list flashcards"

	var resp struct {
		Flashcards json.RawMessage `json:"flashcards"`
	}
	path := "/deck/api/" + url.PathEscape(deckID) + "/flashcards"
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !isArray(resp.Flashcards) {
		return nil, &DataShapeError{Op: op, Field: "flashcards"}
	}
	var cards []models.Card
	if err := json.Unmarshal(resp.Flashcards, &cards); err != nil {
		return nil, &DataShapeError{Op: op, Field: "flashcards", Err: err}
	}
	c.warnUnparsedDates(op, cards)
	return cards, nil
}

func (c *Client) CreateFlashcard(ctx context.Context, in models.CardInput) (*models.Card, error) {
	return c.saveFlashcard(ctx, "create flashcard", "/flashcard/create", in)
}

func (c *Client) UpdateFlashcard(ctx context.Context, cardID string, in models.CardInput) (*models.Card, error) {
	return c.saveFlashcard(ctx, "edit flashcard", "/flashcard/edit/"+url.PathEscape(cardID), in)
}

func (c *Client) saveFlashcard(ctx context.Context, op, path string, in models.CardInput) (*models.Card, error) {
	if in.IncorrectAnswers == nil {
		in.IncorrectAnswers = []string{}
	}
	var resp struct {
		Flashcard *models.Card `json:"flashcard"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, path, in, &resp); err != nil {
		return nil, err
	}
	if resp.Flashcard == nil || resp.Flashcard.ID == "" {
		return nil, &DataShapeError{Op: op, Field: "flashcard"}
	}
	return resp.Flashcard, nil
}

func (c *Client) DeleteFlashcard(ctx context.Context, cardID string) error {
	return c.doJSON(ctx, "delete flashcard", http.MethodDelete, "/flashcard/delete/"+url.PathEscape(cardID), nil, nil)
}

// MoveFlashcards returns how many cards ended up in the target deck.
func (c *Client) MoveFlashcards(ctx context.Context, cardIDs []string, targetDeckID string) (int, error) {
	var resp struct {
		Moved int `json:"moved"`
	}
	body := map[string]interface{}{
		"flashcard_ids":  cardIDs,
		"target_deck_id": targetDeckID,
	}
	if err := c.doJSON(ctx, "move flashcards", http.MethodPost, "/flashcard/bulk-move", body, &resp); err != nil {
		return 0, err
	}
	return resp.Moved, nil
}

func (c *Client) BulkDeleteFlashcards(ctx context.Context, cardIDs []string) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	body := map[string][]string{"flashcard_ids": cardIDs}
	if err := c.doJSON(ctx, "bulk delete flashcards", http.MethodPost, "/flashcard/bulk-delete", body, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}
