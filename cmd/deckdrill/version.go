package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/kpauljoseph/deckdrill/pkg/updater"
	"github.com/kpauljoseph/deckdrill/pkg/version"
)

func runVersion(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	check := fs.Bool("check", false, "check for a newer release")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println(version.GetDetailedVersionInfo())
	if !*check {
		return nil
	}

	info, err := updater.NewChecker(a.log, updater.WithManifestURL(a.cfg.Updates.ManifestURL)).CheckForUpdates(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}
	switch {
	case info == nil || !info.IsAvailable:
		fmt.Println("You are on the latest version.")
	default:
		fmt.Printf("Version %s is available (you have %s).\n", info.LatestVersion, info.CurrentVersion)
		if info.Required {
			fmt.Println("This version is no longer supported, please update.")
		}
		if info.Message != "" {
			fmt.Println(info.Message)
		}
		if info.DownloadURL != "" {
			fmt.Printf("Download: %s\n", info.DownloadURL)
		}
	}
	return nil
}
