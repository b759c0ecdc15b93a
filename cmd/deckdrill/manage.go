package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kpauljoseph/deckdrill/internal/selection"
	"github.com/kpauljoseph/deckdrill/pkg/models"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ", ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func splitSub(name string, args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s needs a subcommand", name)
	}
	return args[0], args[1:], nil
}

func runDecks(ctx context.Context, a *app, args []string) error {
	sub, rest, err := splitSub("decks", args)
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		decks, err := a.client.ListDecks(ctx)
		if err != nil {
			return err
		}
		if len(decks) == 0 {
			fmt.Println("No decks yet.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCARDS\tDUE")
		for _, d := range decks {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", d.ID, d.Name, d.CardCount, d.DueCount)
		}
		return w.Flush()

	case "create":
		if len(rest) != 1 {
			return errors.New("usage: decks create <name>")
		}
		deck, err := a.client.CreateDeck(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created deck %s (%s)\n", deck.Name, deck.ID)
		return nil

	case "rename":
		if len(rest) != 2 {
			return errors.New("usage: decks rename <deck-id> <name>")
		}
		if err := a.client.RenameDeck(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed deck %s to %s\n", rest[0], rest[1])
		return nil

	case "delete":
		if len(rest) != 1 {
			return errors.New("usage: decks delete <deck-id>")
		}
		if err := a.client.DeleteDeck(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted deck %s\n", rest[0])
		return nil

	case "bulk-delete":
		sel := selection.New()
		sel.Add(rest...)
		n, err := selection.DeleteDecks(ctx, a.client, sel, a.log)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d decks\n", n)
		return nil
	}
	return fmt.Errorf("unknown decks subcommand %q", sub)
}

func runCards(ctx context.Context, a *app, args []string) error {
	sub, rest, err := splitSub("cards", args)
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := flag.NewFlagSet("cards list", flag.ContinueOnError)
		deckID := fs.String("deck", "", "deck id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *deckID == "" {
			return errors.New("-deck is required")
		}
		cards, err := a.client.ListFlashcards(ctx, *deckID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tQUESTION\tANSWER")
		for _, c := range cards {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.State, c.Question, c.CorrectAnswer)
		}
		return w.Flush()

	case "add", "edit":
		fs := flag.NewFlagSet("cards "+sub, flag.ContinueOnError)
		deckID := fs.String("deck", "", "deck id")
		question := fs.String("q", "", "question text")
		correct := fs.String("answer", "", "correct answer")
		var wrong listFlag
		fs.Var(&wrong, "wrong", "an incorrect answer (repeatable)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		in := models.CardInput{
			DeckID:           *deckID,
			Question:         *question,
			CorrectAnswer:    *correct,
			IncorrectAnswers: wrong,
		}
		for _, problem := range in.Card().Validate() {
			a.log.Warn("Card check: %s", problem)
		}

		var card *models.Card
		if sub == "add" {
			if in.DeckID == "" {
				return errors.New("-deck is required")
			}
			card, err = a.client.CreateFlashcard(ctx, in)
		} else {
			if fs.NArg() != 1 {
				return errors.New("usage: cards edit [flags] <card-id>")
			}
			card, err = a.client.UpdateFlashcard(ctx, fs.Arg(0), in)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Saved card %s\n", card.ID)
		return nil

	case "delete":
		if len(rest) != 1 {
			return errors.New("usage: cards delete <card-id>")
		}
		if err := a.client.DeleteFlashcard(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted card %s\n", rest[0])
		return nil

	case "move", "bulk-delete":
		fs := flag.NewFlagSet("cards "+sub, flag.ContinueOnError)
		from := fs.String("deck", "", "deck the cards are in")
		to := fs.String("to", "", "target deck id (move only)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		sel := selection.New()
		sel.Add(fs.Args()...)
		mover := selection.NewMover(a.client, *from, sel, a.log)

		if sub == "move" {
			n, err := mover.MoveTo(ctx, *to)
			if err != nil {
				return err
			}
			fmt.Printf("Moved %d cards to %s\n", n, *to)
			return nil
		}
		n, err := mover.Delete(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d cards\n", n)
		return nil
	}
	return fmt.Errorf("unknown cards subcommand %q", sub)
}
