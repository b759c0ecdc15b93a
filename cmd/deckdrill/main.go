package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/internal/config"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
)

type app struct {
	cfg    *config.Config
	client *api.Client
	log    *logger.Logger
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"study", "study a deck with the keyboard", runStudy},
	{"decks", "list, create, rename or delete decks", runDecks},
	{"cards", "list, add, edit, move or delete flashcards", runCards},
	{"import", "turn a file, text, PDF or directory into flashcards", runImport},
	{"learn", "walk a deck's learning path", runLearn},
	{"stats", "print stats and draw charts", runStats},
	{"version", "print version information", runVersion},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: deckdrill [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file")
	baseURL := flag.String("base-url", "", "study server URL (overrides config)")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	debug := flag.Bool("debug", false, "enable debug mode with trace logging")
	flag.Usage = usage
	flag.Parse()

	log := logger.New(logger.WithPrefix("[deckdrill] "))
	log.SetVerbose(*verbose)

	if *debug {
		log.SetLevel(logger.LevelTrace)
	}

	if *verbose {
		log.Debug("Verbose logging enabled")
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == flag.Arg(0) {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatal("Error loading env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Error loading config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal("Error reading environment: %v", err)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}

	client, err := api.New(api.Options{
		BaseURL: cfg.BaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.Timeout,
		Logger:  log,
	})
	if err != nil {
		log.Fatal("Error creating client: %v", err)
	}
	log.Debug("Using study server at %s", client.BaseURL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, client: client, log: log}
	err = cmd.run(ctx, a, flag.Args()[1:])
	if errors.Is(err, context.Canceled) {
		log.Info("Interrupted")
		return
	}
	if err != nil {
		stop()
		log.Fatal("%s: %v", cmd.name, err)
	}
}
