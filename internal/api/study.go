package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kpauljoseph/deckdrill/pkg/models"
)

// StudyPage fetches one segment of a deck's study queue. page is 1-based.
func (c *Client) StudyPage(ctx context.Context, deckID string, dueOnly bool, page, perPage int) (*StudyPage, error) {
	const op = "load study page"

	q := url.Values{}
	q.Set("due_only", strconv.FormatBool(dueOnly))
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	path := fmt.Sprintf("/deck/study/%s?%s", url.PathEscape(deckID), q.Encode())

	var resp struct {
		Flashcards json.RawMessage `json:"flashcards"`
		Pagination *struct {
			TotalPages int `json:"total_pages"`
			PerPage    int `json:"per_page"`
			Page       int `json:"page"`
		} `json:"pagination"`
		Total *int `json:"total"`
	}
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
	if resp.Pagination == nil {
		return nil, &DataShapeError{Op: op, Field: "pagination"}
	}
	if resp.Total == nil {
		return nil, &DataShapeError{Op: op, Field: "total"}
	}

	result := &StudyPage{
		Cards:      cards,
		Total:      *resp.Total,
		TotalPages: resp.Pagination.TotalPages,
		PerPage:    resp.Pagination.PerPage,
		Page:       resp.Pagination.Page,
	}
	if result.PerPage <= 0 {
		result.PerPage = perPage
	}
	if result.Page <= 0 {
		result.Page = page
	}
	return result, nil
}

// UpdateProgress records an answer and returns the card's new server state.
func (c *Client) UpdateProgress(ctx context.Context, cardID string, isCorrect bool) (*ProgressUpdate, error) {
	const op = "update progress"

	body := map[string]interface{}{
		"flashcard_id": cardID,
		"is_correct":   isCorrect,
	}
	var resp struct {
		State          *models.CardState `json:"state"`
		Retrievability *float64          `json:"retrievability"`
		DueDate        json.RawMessage   `json:"due_date"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/flashcard/update_progress", body, &resp); err != nil {
		return nil, err
	}
	if resp.State == nil {
		return nil, &DataShapeError{Op: op, Field: "state"}
	}
	due, unparsed := models.DecodeTime(resp.DueDate)
	if unparsed != "" {
		c.logger.Warn("%s: ignoring due date %q for card %s", op, unparsed, cardID)
	}
	return &ProgressUpdate{
		State:          *resp.State,
		Retrievability: resp.Retrievability,
		DueDate:        due,
	}, nil
}

// warnUnparsedDates logs due dates that were dropped while decoding cards.
func (c *Client) warnUnparsedDates(op string, cards []models.Card) {
	for _, card := range cards {
		if raw := card.UnparsedDueDate(); raw != "" {
			c.logger.Warn("%s: ignoring due date %q for card %s", op, raw, card.ID)
		}
	}
}

func (c *Client) DueCount(ctx context.Context, deckID string) (int, error) {
	const op = "load due count"

	var resp struct {
		DueCount *int `json:"due_count"`
	}
	path := "/deck/api/due-count/" + url.PathEscape(deckID)
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	if resp.DueCount == nil {
		return 0, &DataShapeError{Op: op, Field: "due_count"}
	}
	return *resp.DueCount, nil
}
