package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
)

// Source serves study pages. *api.Client satisfies it.
type Source interface {
	StudyPage(ctx context.Context, deckID string, dueOnly bool, page, perPage int) (*api.StudyPage, error)
}

// Loader fetches a deck's study queue one segment at a time. Only one fetch
// may be outstanding; a second caller gets ErrBusy instead of a duplicate
// request.
type Loader struct {
	src     Source
	deckID  string
	dueOnly bool
	perPage int
	loading atomic.Bool
	logger  *logger.Logger
}

func NewLoader(src Source, deckID string, dueOnly bool, perPage int, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{
		src:     src,
		deckID:  deckID,
		dueOnly: dueOnly,
		perPage: perPage,
		logger:  log,
	}
}

func (l *Loader) LoadFirstPage(ctx context.Context) (*api.StudyPage, error) {
	return l.load(ctx, 1)
}

// LoadNextPage fetches page (1-based). The result is only ever appended by the
// caller; nothing already loaded changes.
func (l *Loader) LoadNextPage(ctx context.Context, page int) (*api.StudyPage, error) {
	return l.load(ctx, page)
}

func (l *Loader) Loading() bool {
	return l.loading.Load()
}

func (l *Loader) load(ctx context.Context, page int) (*api.StudyPage, error) {
	if !l.loading.CompareAndSwap(false, true) {
		l.logger.Debug("Page %d requested while another page is loading", page)
		return nil, ErrBusy
	}
	defer l.loading.Store(false)

	l.logger.Debug("Loading page %d of deck %s (due only: %v, per page: %d)", page, l.deckID, l.dueOnly, l.perPage)
	p, err := l.src.StudyPage(ctx, l.deckID, l.dueOnly, page, l.perPage)
	if err != nil {
		l.logger.Error("Loading page %d of deck %s failed: %v", page, l.deckID, err)
		return nil, fmt.Errorf("failed to load page %d: %w", page, err)
	}
	l.logger.Trace("Page %d brought %d cards (total %d, pages %d)", page, len(p.Cards), p.Total, p.TotalPages)
	return p, nil
}
