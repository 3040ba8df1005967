package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pevans/newshound"
	"github.com/pevans/newshound/archive"
)

func handleArticlesCommand(action string, args []string) {
	paths := mustResolveStorage()

	arch, err := archive.New(paths.archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open archive: %v\n", err)
		os.Exit(1)
	}

	switch action {
	case "list":
		handleArticlesList(arch, args)
	case "show":
		handleArticlesShow(arch, args)
	case "delete":
		handleArticlesDelete(arch, args)
	case "help", "--help", "-h":
		printArticlesUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown articles command: %s\n\n", action)
		printArticlesUsage()
		os.Exit(1)
	}
}

func printArticlesUsage() {
	fmt.Println("newshound articles - Browse the article archive")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newshound articles <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List archived articles")
	fmt.Println("  show       Show one article in full")
	fmt.Println("  delete     Delete an archived article")
	fmt.Println("  help       Show this help message")
}

func handleArticlesList(arch *archive.Archive, args []string) {
	fs := flag.NewFlagSet("articles list", flag.ExitOnError)
	method := fs.String("method", "", "Filter by discovery method (rss, sitemap, scraping, extraction)")
	source := fs.String("source", "", "Filter by source ID")
	since := fs.String("since", "", "Show articles fetched since duration (e.g., 24h, 7d)")
	limit := fs.Int("limit", 20, "Maximum number of articles to display")
	offset := fs.Int("offset", 0, "Number of articles to skip")
	format := fs.String("format", "table", "Output format: table, json, compact")
	fs.Parse(args)

	records, readErrs, err := arch.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list archive: %v\n", err)
		os.Exit(1)
	}

	// Report any partial failures after displaying results
	defer func() {
		if len(readErrs) > 0 {
			fmt.Fprintf(os.Stderr, "\nWarning: %d record(s) could not be read:\n", len(readErrs))
			for _, readErr := range readErrs {
				fmt.Fprintf(os.Stderr, "  %s\n", readErr.Error())
			}
		}
	}()

	var sourceID uuid.UUID
	if *source != "" {
		sourceID, err = uuid.Parse(*source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid source ID: %v\n", err)
			os.Exit(1)
		}
	}

	var cutoff time.Time
	if *since != "" {
		duration, err := parseDuration(*since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid duration format: %v\n", err)
			os.Exit(1)
		}
		cutoff = time.Now().Add(-duration)
	}

	// Apply filters
	var filtered []newshound.Record
	for _, rec := range records {
		if *method != "" && rec.Method != *method {
			continue
		}
		if *source != "" && (rec.SourceID == nil || *rec.SourceID != sourceID) {
			continue
		}
		if *since != "" && rec.FetchedAt.Before(cutoff) {
			continue
		}
		filtered = append(filtered, rec)
	}

	total := len(filtered)

	// Apply pagination
	if *offset >= len(filtered) {
		filtered = nil
	} else {
		filtered = filtered[*offset:]
	}
	if *limit > 0 && len(filtered) > *limit {
		filtered = filtered[:*limit]
	}

	switch *format {
	case "json":
		printArticlesJSON(filtered, total)
	case "compact":
		printArticlesCompact(filtered)
	default:
		printArticlesTable(filtered, total, *offset)
	}
}

func handleArticlesShow(arch *archive.Archive, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: article ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newshound articles show <article-id>\n")
		os.Exit(1)
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid article ID: %v\n", err)
		os.Exit(1)
	}

	rec, err := arch.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read article: %v\n", err)
		os.Exit(1)
	}
	if rec == nil {
		fmt.Fprintf(os.Stderr, "Error: no article with ID %s\n", id.String())
		os.Exit(1)
	}

	printArticleDetail(*rec)
}

func handleArticlesDelete(arch *archive.Archive, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: article ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newshound articles delete <article-id>\n")
		os.Exit(1)
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid article ID: %v\n", err)
		os.Exit(1)
	}

	if err := arch.Delete(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete article: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Deleted article: %s\n", id.String())
}
