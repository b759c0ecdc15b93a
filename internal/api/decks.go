package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/kpauljoseph/deckdrill/pkg/models"
)

func (c *Client) ListDecks(ctx context.Context) ([]models.Deck, error) {
	const op = "list decks"

	var resp struct {
		Decks json.RawMessage `json:"decks"`
	}
	if err := c.doJSON(ctx, op, http.MethodGet, "/deck/api/list", nil, &resp); err != nil {
		return nil, err
	}
	if !isArray(resp.Decks) {
		return nil, &DataShapeError{Op: op, Field: "decks"}
	}
	var decks []models.Deck
	if err := json.Unmarshal(resp.Decks, &decks); err != nil {
		return nil, &DataShapeError{Op: op, Field: "decks", Err: err}
	}
	return decks, nil
}

func (c *Client) CreateDeck(ctx context.Context, name string) (*models.Deck, error) {
	const op = "create deck"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ServerLogicError{Op: op, Message: "deck name is required"}
	}

	var resp struct {
		Deck *models.Deck `json:"deck"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/deck/create", map[string]string{"name": name}, &resp); err != nil {
		return nil, err
	}
	if resp.Deck == nil || resp.Deck.ID == "" {
		return nil, &DataShapeError{Op: op, Field: "deck"}
	}
	return resp.Deck, nil
}

func (c *Client) RenameDeck(ctx context.Context, deckID, name string) error {
	const op = "rename deck"

	name = strings.TrimSpace(name)
	if name == "" {
		return &ServerLogicError{Op: op, Message: "deck name is required"}
	}
	path := "/deck/rename/" + url.PathEscape(deckID)
	return c.doJSON(ctx, op, http.MethodPost, path, map[string]string{"name": name}, nil)
}

func (c *Client) DeleteDeck(ctx context.Context, deckID string) error {
	return c.doJSON(ctx, "delete deck", http.MethodDelete, "/deck/delete/"+url.PathEscape(deckID), nil, nil)
}

// BulkDeleteDecks returns how many decks the server removed.
func (c *Client) BulkDeleteDecks(ctx context.Context, deckIDs []string) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	body := map[string][]string{"deck_ids": deckIDs}
	if err := c.doJSON(ctx, "bulk delete decks", http.MethodPost, "/deck/bulk-delete", body, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}
