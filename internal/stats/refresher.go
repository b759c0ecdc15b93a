package stats

import (
	"context"
	"sync"
	"time"
)

const DefaultRefreshInterval = time.Minute

// Refresher reloads a dashboard on a fixed interval until stopped.
type Refresher struct {
	dash     *Dashboard
	interval time.Duration
	deckIDs  []string
	onUpdate func(*Snapshot, error)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewRefresher(d *Dashboard, interval time.Duration, onUpdate func(*Snapshot, error), deckIDs ...string) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if onUpdate == nil {
		onUpdate = func(*Snapshot, error) {}
	}
	return &Refresher{
		dash:     d,
		interval: interval,
		deckIDs:  deckIDs,
		onUpdate: onUpdate,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start loads once right away and then on every tick. Calling it again is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.run(ctx)
	})
}

func (r *Refresher) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		snap, err := r.dash.Load(ctx, r.deckIDs...)
		select {
		case <-r.stop:
			return
		default:
		}
		r.onUpdate(snap, err)

		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the refresh loop and waits for it. Safe to call more than once,
// and before Start.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	started := true
	r.startOnce.Do(func() {
		started = false
		close(r.done)
	})
	if started {
		<-r.done
	}
}
