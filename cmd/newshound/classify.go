package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pevans/newshound/classify"
)

func handleClassify(args []string) {
	// Parse flags for classify command
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	format := fs.String("format", "table", "Output format: table, json")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: a seed URL is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newshound classify [flags] <seed-url> [url ...]\n")
		os.Exit(1)
	}

	seedURL := fs.Arg(0)
	classifier, err := classify.New(seedURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// With no further URLs, classify the seed itself.
	urls := fs.Args()[1:]
	if len(urls) == 0 {
		urls = []string{seedURL}
	}

	if *format == "json" {
		printClassificationsJSON(classifier, urls)
		return
	}

	fmt.Printf("%-10s %-6s %-8s %-9s %s\n", "TYPE", "CRAWL", "EXTRACT", "PRIORITY", "URL")
	for _, u := range urls {
		c := classifier.Classify(u)
		fmt.Printf("%-10s %-6v %-8v %-9d %s\n", c.Type, c.ShouldCrawl, c.ShouldExtract, c.Priority, u)
	}
}

func printClassificationsJSON(classifier *classify.Classifier, urls []string) {
	type entry struct {
		URL            string                  `json:"url"`
		Classification classify.Classification `json:"classification"`
	}

	out := make([]entry, 0, len(urls))
	for _, u := range urls {
		out = append(out, entry{URL: u, Classification: classifier.Classify(u)})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
