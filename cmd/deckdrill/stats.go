package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/internal/stats"
	"github.com/kpauljoseph/deckdrill/pkg/utils"
)

func runStats(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	var decks listFlag
	fs.Var(&decks, "deck", "deck id to include (repeatable)")
	charts := fs.Bool("charts", false, "write PNG charts")
	chartDir := fs.String("chart-dir", a.cfg.Stats.ChartDir, "directory for -charts (a temp directory when empty)")
	watch := fs.Bool("watch", false, "keep refreshing until interrupted")
	interval := fs.Duration("interval", a.cfg.Stats.RefreshInterval, "refresh interval with -watch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*charts {
		*chartDir = ""
	} else if *chartDir == "" {
		*chartDir = utils.GetDefaultChartDir()
	}
	if *chartDir != "" {
		a.log.Info("Writing charts to %s", *chartDir)
	}

	dash := stats.NewDashboard(a.client, a.log)

	if !*watch {
		snap, err := dash.Load(ctx, decks...)
		if err != nil {
			return err
		}
		printSnapshot(os.Stdout, snap)
		return writeCharts(a, *chartDir, snap)
	}

	r := stats.NewRefresher(dash, *interval, func(snap *stats.Snapshot, err error) {
		if err != nil {
			if last, ok := dash.Last(); ok {
				a.log.Warn("Refresh failed, showing stats from %s: %v", last.LoadedAt.Format("15:04:05"), err)
			} else {
				a.log.Error("Refresh failed: %v", err)
			}
			return
		}
		printSnapshot(os.Stdout, snap)
		if err := writeCharts(a, *chartDir, snap); err != nil {
			a.log.Error("%v", err)
		}
	}, decks...)
	r.Start(ctx)
	<-ctx.Done()
	r.Stop()
	return nil
}

func printSnapshot(w io.Writer, snap *stats.Snapshot) {
	fmt.Fprintf(w, "\nStats at %s\n", snap.LoadedAt.Format("2006-01-02 15:04:05"))
	printStats(w, "All decks", snap.Overview)

	ids := make([]string, 0, len(snap.Decks))
	for id := range snap.Decks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		printStats(w, "Deck "+id, snap.Decks[id])
	}
}

func printStats(w io.Writer, title string, s *api.Stats) {
	c := s.StateCounts
	fmt.Fprintf(w, "%s: %d cards, %d due today\n", title, s.TotalCards, s.DueToday)
	fmt.Fprintf(w, "  new %d, learning %d, mastered %d, forgotten %d\n", c.New, c.Learning, c.Mastered, c.Forgotten)
	for _, day := range s.Reviews {
		fmt.Fprintf(w, "  %s: %d reviews, %.0f%% correct\n", day.Date, day.Total, day.Accuracy()*100)
	}
}

func writeCharts(a *app, dir string, snap *stats.Snapshot) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}

	charts := map[string]*api.Stats{"overview": snap.Overview}
	for id, s := range snap.Decks {
		charts["deck-"+id] = s
	}
	for name, s := range charts {
		s := s
		statePath := filepath.Join(dir, name+"-states.png")
		if err := stats.SaveChart(statePath, func(w io.Writer) error {
			return stats.RenderStateChart(w, s.StateCounts)
		}); err != nil {
			return err
		}
		reviewPath := filepath.Join(dir, name+"-reviews.png")
		if err := stats.SaveChart(reviewPath, func(w io.Writer) error {
			return stats.RenderReviewChart(w, s.Reviews)
		}); err != nil {
			return err
		}
		a.log.Debug("Wrote charts %s and %s", statePath, reviewPath)
	}
	return nil
}
