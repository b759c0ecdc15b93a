package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
)

type API interface {
	StatsOverview(ctx context.Context) (*api.Stats, error)
	DeckStats(ctx context.Context, deckID string) (*api.Stats, error)
}

type Snapshot struct {
	Overview *api.Stats
	Decks    map[string]*api.Stats
	LoadedAt time.Time
}

// Dashboard loads the overview and per-deck numbers side by side.
type Dashboard struct {
	api    API
	logger *logger.Logger

	mu   sync.RWMutex
	last *Snapshot
}

func NewDashboard(client API, log *logger.Logger) *Dashboard {
	if log == nil {
		log = logger.Discard()
	}
	return &Dashboard{api: client, logger: log}
}

// Load fetches everything concurrently. Any failure fails the whole load and
// the previous snapshot stays in place.
func (d *Dashboard) Load(ctx context.Context, deckIDs ...string) (*Snapshot, error) {
	snap := &Snapshot{Decks: make(map[string]*api.Stats, len(deckIDs))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overview, err := d.api.StatsOverview(gctx)
		if err != nil {
			return fmt.Errorf("failed to load overview: %w", err)
		}
		snap.Overview = overview
		return nil
	})
	for _, id := range deckIDs {
		id := id
		g.Go(func() error {
			s, err := d.api.DeckStats(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to load stats for deck %s: %w", id, err)
			}
			mu.Lock()
			snap.Decks[id] = s
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		d.logger.Warn("Stats refresh failed: %v", err)
		return nil, err
	}

	snap.LoadedAt = time.Now()
	d.mu.Lock()
	d.last = snap
	d.mu.Unlock()

	d.logger.Debug("Loaded stats: %d cards, %d due, %d decks", snap.Overview.TotalCards, snap.Overview.DueToday, len(snap.Decks))
	return snap, nil
}

func (d *Dashboard) Last() (*Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.last != nil
}
