package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/kpauljoseph/deckdrill/internal/session"
	"github.com/kpauljoseph/deckdrill/internal/terminal"
)

func runStudy(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("study", flag.ContinueOnError)
	deckID := fs.String("deck", "", "deck id to study")
	all := fs.Bool("all", false, "study every card, not only the due ones")
	pageSize := fs.Int("page-size", a.cfg.Study.PageSize, "cards fetched per page")
	autoAdvance := fs.Duration("auto-advance", a.cfg.Study.AutoAdvance, "delay before moving on after a correct answer (0 waits for Enter)")
	width := fs.Int("width", terminal.DefaultWidth, "card box width")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *deckID == "" {
		return errors.New("-deck is required")
	}

	renderer := terminal.NewRenderer(os.Stdout, terminal.WithWidth(*width))
	s := session.New(a.client, session.Config{
		DeckID:      *deckID,
		DueOnly:     a.cfg.DueOnly() && !*all,
		PageSize:    *pageSize,
		AutoAdvance: *autoAdvance,
	}, renderer, a.log)

	return terminal.NewRunner(s, renderer, a.log).Run(ctx, os.Stdin)
}
