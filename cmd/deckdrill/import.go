package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kpauljoseph/deckdrill/internal/importer"
)

func runImport(ctx context.Context, a *app, args []string) error {
	sub, rest, err := splitSub("import", args)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("import "+sub, flag.ContinueOnError)
	deckID := fs.String("deck", "", "deck to add the cards to")
	chunkSize := fs.Int("chunk-size", a.cfg.Import.ChunkSize, "characters per text chunk")
	concurrency := fs.Int("concurrency", a.cfg.Import.Concurrency, "text chunks processed at once")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *deckID == "" {
		return errors.New("-deck is required")
	}

	im := importer.New(a.client, importer.Options{
		ChunkSize:   *chunkSize,
		Concurrency: *concurrency,
		MaxPDFPages: a.cfg.Import.MaxPDFPages,
		Progress: func(p importer.Progress) {
			a.log.Info("%s: %d/%d chunks, %d flashcards", p.File, p.Done, p.Total, p.FlashcardsCreated)
		},
	}, a.log)

	var report *importer.Report
	switch sub {
	case "file", "pdf", "dir":
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: import %s -deck <deck-id> <path>", sub)
		}
		path := fs.Arg(0)
		switch sub {
		case "file":
			report, err = im.ImportFile(ctx, *deckID, path)
		case "pdf":
			report, err = im.ImportPDF(ctx, *deckID, path)
		default:
			a.log.Info("Scanning directory: %s", path)
			report, err = im.ImportDir(ctx, *deckID, path)
		}

	case "text":
		text := strings.Join(fs.Args(), " ")
		if text == "" || text == "-" {
			data, readErr := io.ReadAll(os.Stdin)
			if readErr != nil {
				return fmt.Errorf("failed to read stdin: %w", readErr)
			}
			text = string(data)
		}
		report, err = im.ImportText(ctx, *deckID, "text", text)

	default:
		return fmt.Errorf("unknown import subcommand %q", sub)
	}

	if report != nil {
		report.Print(a.log)
	}
	return err
}

