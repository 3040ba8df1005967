package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pevans/newshound"
	"github.com/pevans/newshound/archive"
)

func handleFetch(args []string) {
	// Parse flags for fetch command
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	maxArticles := fs.Int("max-articles", 0, "Maximum articles per discovery stage")
	minQuality := fs.Int("quality", 0, "Minimum quality score for acceptance")
	respectRobots := fs.Bool("respect-robots", false, "Consult robots.txt before fetching article pages")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall pipeline timeout")
	format := fs.String("format", "table", "Output format: table, json")
	store := fs.Bool("archive", false, "Store accepted articles in the archive")
	verbose := fs.Bool("verbose", false, "Log pipeline events to stderr")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: a site URL is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newshound fetch [flags] <url>\n")
		os.Exit(1)
	}
	seedURL := fs.Arg(0)

	paths := mustResolveStorage()

	cfg := pipelineConfig(paths.file)
	if *maxArticles > 0 {
		cfg.MaxArticles = *maxArticles
	}
	if *minQuality > 0 {
		cfg.MinQualityScore = *minQuality
	}
	if *respectRobots {
		cfg.RespectRobots = true
	}
	if *verbose {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	agent, err := newshound.NewAgent(seedURL, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result := agent.FetchNews(ctx)

	// Release the browser before any exit path below.
	agent.Cleanup()

	switch *format {
	case "json":
		printResultJSON(result)
	default:
		printResultTable(result)
	}

	if *store && len(result.Accepted()) > 0 {
		archiveAccepted(paths.archive, result)
	}

	if !result.Success {
		os.Exit(1)
	}
}

// archiveAccepted stores the run's accepted articles, skipping URLs the
// archive already holds.
func archiveAccepted(dir string, result newshound.FetchResult) {
	arch, err := archive.New(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open archive: %v\n", err)
		os.Exit(1)
	}

	stored := 0
	for _, art := range result.Accepted() {
		seen, err := arch.HasURL(art.URL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: archive lookup failed for %s: %v\n", art.URL, err)
			continue
		}
		if seen {
			continue
		}

		if _, err := arch.Add(newshound.Record{Method: result.Method, Article: art}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to archive %s: %v\n", art.URL, err)
			continue
		}
		stored++
	}

	fmt.Printf("✓ Archived %d article(s) to %s\n", stored, dir)
}
