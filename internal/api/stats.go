package api

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) StatsOverview(ctx context.Context) (*Stats, error) {
	return c.stats(ctx, "load stats overview", "/stats/api/overview")
}

func (c *Client) DeckStats(ctx context.Context, deckID string) (*Stats, error) {
	return c.stats(ctx, "load deck stats", "/stats/api/deck/"+url.PathEscape(deckID))
}

func (c *Client) stats(ctx context.Context, op, path string) (*Stats, error) {
	var resp struct {
		Stats
		TotalCards *int `json:"total_cards"`
	}
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.TotalCards == nil {
		return nil, &DataShapeError{Op: op, Field: "total_cards"}
	}
	stats := resp.Stats
	stats.TotalCards = *resp.TotalCards
	return &stats, nil
}
