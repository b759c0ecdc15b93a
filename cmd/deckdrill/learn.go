package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/internal/learning"
	"github.com/kpauljoseph/deckdrill/internal/terminal"
)

var errQuit = errors.New("quit")

func runLearn(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("learn", flag.ContinueOnError)
	deckID := fs.String("deck", "", "deck whose learning path to follow")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *deckID == "" {
		return errors.New("-deck is required")
	}

	path, err := learning.Load(ctx, a.client, *deckID, a.log)
	if err != nil {
		return err
	}
	in := bufio.NewScanner(os.Stdin)

	for {
		step, ok := path.Current()
		if !ok {
			break
		}
		done, total := path.Progress()
		fmt.Printf("\n== Step %d/%d: %s ==\n", done+1, total, step.Title)

		switch step.Kind {
		case api.StepKindContent:
			err = showContent(ctx, path, step, in)
		case api.StepKindQuiz:
			err = takeQuiz(ctx, path, step, in)
		default:
			return fmt.Errorf("step %q has unknown kind %q", step.Title, step.Kind)
		}
		if errors.Is(err, errQuit) {
			fmt.Println("Bye.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	fmt.Println("Learning path complete.")
	return nil
}

func prompt(ctx context.Context, in *bufio.Scanner, format string, args ...interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Printf(format, args...)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", errQuit
	}
	line := strings.TrimSpace(in.Text())
	if line == "q" || line == "quit" {
		return "", errQuit
	}
	return line, nil
}

func showContent(ctx context.Context, path *learning.Path, step api.LearningStep, in *bufio.Scanner) error {
	content, err := path.Content(ctx, step)
	if err != nil {
		return err
	}
	for _, line := range terminal.Wrap(content, terminal.DefaultWidth) {
		fmt.Println(line)
	}
	_, err = prompt(ctx, in, "\nPress Enter to continue.")
	return err
}

func takeQuiz(ctx context.Context, path *learning.Path, step api.LearningStep, in *bufio.Scanner) error {
	for {
		quiz, err := path.StartQuiz(ctx, step)
		if err != nil {
			return err
		}

		for i, q := range quiz.Questions() {
			fmt.Printf("\n%d. %s\n", i+1, q.Prompt)
			for n, opt := range q.Options {
				fmt.Printf("  %d) %s\n", n+1, opt)
			}
			var selected string
			for selected == "" {
				line, err := prompt(ctx, in, "> ")
				if err != nil {
					return err
				}
				n, convErr := strconv.Atoi(line)
				if convErr != nil || n < 1 || n > len(q.Options) {
					fmt.Printf("Pick a number from 1 to %d.\n", len(q.Options))
					continue
				}
				selected = q.Options[n-1]
			}
			answer, err := quiz.Answer(q.ID, selected)
			if err != nil {
				return err
			}
			if answer.Correct {
				fmt.Println("Correct!")
			} else if correct, ok := quiz.CorrectAnswer(q.ID); ok {
				fmt.Printf("Wrong. The answer was: %s\n", correct)
			}
		}

		res, err := quiz.Submit(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nScore: %d/%d\n", res.Correct, res.Total)
		if res.Passed {
			fmt.Println("Quiz passed.")
			return nil
		}

		line, err := prompt(ctx, in, "Quiz not passed. Try again? (Y/n) ")
		if err != nil {
			return err
		}
		if strings.EqualFold(line, "n") {
			return errQuit
		}
	}
}
