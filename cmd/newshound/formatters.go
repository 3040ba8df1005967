package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pevans/newshound"
	"github.com/pevans/newshound/sources"
)

// printResultTable prints a pipeline run in human-readable form
func printResultTable(result newshound.FetchResult) {
	if !result.Success {
		fmt.Printf("✗ Fetch failed: %s\n", result.Error)
		return
	}

	accepted := result.Accepted()
	fmt.Printf("✓ Fetched %d article(s) via %s\n\n", len(accepted), result.Method)

	for _, article := range accepted {
		fmt.Printf("  %s\n", truncate(article.Title, 70))
		if article.Author != "" || article.PublishedAt != nil {
			line := "   "
			if article.Author != "" {
				line += article.Author
			}
			if article.PublishedAt != nil {
				if article.Author != "" {
					line += " | "
				}
				line += article.PublishedAt.Format("2006-01-02 15:04")
			}
			fmt.Println(line)
		}
		fmt.Printf("   URL: %s\n", article.URL)
		fmt.Printf("   %d paragraphs, %d characters", article.Trace.ParagraphsFound, article.Trace.ContentLength)
		if article.Trace.QualityScore != nil {
			fmt.Printf(", quality %d", *article.Trace.QualityScore)
		}
		fmt.Println()
		fmt.Println()
	}

	// Rejected candidates come last so the useful output leads.
	rejected := 0
	for _, article := range result.Articles {
		if article.ExtractionFailed {
			rejected++
		}
	}
	if rejected > 0 {
		fmt.Printf("%d candidate(s) rejected:\n", rejected)
		for _, article := range result.Articles {
			if !article.ExtractionFailed {
				continue
			}
			fmt.Printf("  %s  %s\n", article.Trace.FailureReason, truncate(article.URL, 70))
		}
	}
}

// printResultJSON prints a pipeline run as JSON
func printResultJSON(result newshound.FetchResult) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// printSourcesTable prints sources in table format
func printSourcesTable(list []sources.Source) {
	fmt.Printf("%-36s %-8s %-30s %s\n", "ID", "ENABLED", "NAME", "URL")
	fmt.Println(strings.Repeat("-", 100))

	for _, source := range list {
		enabled := "no"
		if source.IsEnabled() {
			enabled = "yes"
		}

		fmt.Printf("%-36s %-8s %-30s %s\n",
			source.SourceID.String(),
			enabled,
			truncate(source.Name, 30),
			truncate(source.URL, 50),
		)
	}
}

// printSourceDetail prints one source in full
func printSourceDetail(source *sources.Source) {
	fmt.Printf("ID:       %s\n", source.SourceID.String())
	fmt.Printf("Name:     %s\n", source.Name)
	fmt.Printf("URL:      %s\n", source.URL)

	if source.IsEnabled() {
		fmt.Printf("Enabled:  yes (since %s)\n", source.EnabledAt.Format("2006-01-02 15:04"))
	} else {
		fmt.Println("Enabled:  no")
	}

	if source.PollInterval != nil {
		fmt.Printf("Interval: %s\n", *source.PollInterval)
	}
	if source.LastFetchedAt != nil {
		fmt.Printf("Last fetch: %s", source.LastFetchedAt.Format("2006-01-02 15:04"))
		if source.LastMethod != nil {
			fmt.Printf(" via %s", *source.LastMethod)
		}
		fmt.Println()
	}
	if source.FetchErrorCount > 0 {
		fmt.Printf("Failures: %d\n", source.FetchErrorCount)
	}
	if source.LastError != nil {
		fmt.Printf("Last error: %s\n", *source.LastError)
	}

	if p := source.Profile; p != nil {
		fmt.Println("Profile:")
		if p.ContentSelector != "" {
			fmt.Printf("  content:  %s\n", p.ContentSelector)
		}
		if p.TitleSelector != "" {
			fmt.Printf("  title:    %s\n", p.TitleSelector)
		}
		if p.AuthorSelector != "" {
			fmt.Printf("  author:   %s\n", p.AuthorSelector)
		}
		if p.DateSelector != "" {
			fmt.Printf("  date:     %s\n", p.DateSelector)
			if p.DateFormat != "" {
				fmt.Printf("  format:   %s\n", p.DateFormat)
			}
		}
	}

	fmt.Printf("Created:  %s\n", source.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Updated:  %s\n", source.UpdatedAt.Format("2006-01-02 15:04"))
}

// printArticlesTable prints archived articles in table format
func printArticlesTable(records []newshound.Record, total, offset int) {
	if len(records) == 0 {
		fmt.Println("No articles to display.")
		return
	}

	fmt.Printf("Showing %d-%d of %d articles\n\n", offset+1, offset+len(records), total)

	for _, rec := range records {
		fmt.Printf("%s\n", truncate(rec.Article.Title, 70))
		fmt.Printf("   %s | %s | Fetched: %s\n",
			rec.Article.Source,
			rec.Method,
			rec.FetchedAt.Format("2006-01-02 15:04"),
		)
		fmt.Printf("   URL: %s\n", rec.Article.URL)
		fmt.Printf("   ID: %s\n", rec.ID.String())
		fmt.Println()
	}
}

// printArticlesJSON prints archived articles in JSON format
func printArticlesJSON(records []newshound.Record, total int) {
	output := map[string]any{
		"articles": records,
		"total":    total,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// printArticlesCompact prints archived articles one per line
func printArticlesCompact(records []newshound.Record) {
	if len(records) == 0 {
		fmt.Println("No articles to display.")
		return
	}

	for _, rec := range records {
		shortID := rec.ID.String()
		if len(shortID) > 8 {
			shortID = shortID[:8] + "..."
		}
		fmt.Printf("%s %s (%s)\n", shortID, rec.Article.Title, rec.Article.Source)
	}
}

// printArticleDetail prints one archived article in full
func printArticleDetail(rec newshound.Record) {
	fmt.Printf("%s\n", rec.Article.Title)
	fmt.Println(strings.Repeat("=", min(len(rec.Article.Title), 80)))
	fmt.Println()

	fmt.Printf("Source:    %s\n", rec.Article.Source)
	fmt.Printf("URL:       %s\n", rec.Article.URL)
	if rec.Article.Author != "" {
		fmt.Printf("Author:    %s\n", rec.Article.Author)
	}
	if rec.Article.PublishedAt != nil {
		fmt.Printf("Published: %s\n", rec.Article.PublishedAt.Format("2006-01-02 15:04"))
	}
	if rec.Article.Language != "" {
		fmt.Printf("Language:  %s\n", rec.Article.Language)
	}
	fmt.Printf("Fetched:   %s via %s\n", rec.FetchedAt.Format("2006-01-02 15:04"), rec.Method)
	if rec.SourceID != nil {
		fmt.Printf("Roster:    %s\n", rec.SourceID.String())
	}

	trace := rec.Article.Trace
	fmt.Printf("Trace:     %s fetch, %d paragraphs", trace.FetchMethod, trace.ParagraphsFound)
	if trace.RootSelector != "" {
		fmt.Printf(", root %q", trace.RootSelector)
	}
	if trace.QualityScore != nil {
		fmt.Printf(", quality %d", *trace.QualityScore)
	}
	fmt.Println()

	if rec.Article.Description != "" {
		fmt.Println()
		fmt.Println(wrapText(rec.Article.Description, 80))
	}

	fmt.Println()
	fmt.Println(wrapText(rec.Article.Content, 80))
}

// wrapText wraps text to a maximum line width
func wrapText(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var lines []string
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}

	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return strings.Join(lines, "\n")
}
