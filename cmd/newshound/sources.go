package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pevans/newshound/sources"
)

func handleSourcesCommand(action string, args []string) {
	paths := mustResolveStorage()

	store, err := sources.Open(paths.roster)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open roster: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch action {
	case "list":
		handleSourcesList(store, args)
	case "add":
		handleSourcesAdd(store, args)
	case "show":
		handleSourcesShow(store, args)
	case "enable":
		handleSourcesSetEnabled(store, args, true)
	case "disable":
		handleSourcesSetEnabled(store, args, false)
	case "delete":
		handleSourcesDelete(store, args)
	case "help", "--help", "-h":
		printSourcesUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown sources command: %s\n\n", action)
		printSourcesUsage()
		os.Exit(1)
	}
}

func printSourcesUsage() {
	fmt.Println("newshound sources - Manage the source roster")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newshound sources <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List all sources")
	fmt.Println("  add        Add a new source")
	fmt.Println("  show       Show one source in full")
	fmt.Println("  enable     Enable a source")
	fmt.Println("  disable    Disable a source")
	fmt.Println("  delete     Delete a source")
	fmt.Println("  help       Show this help message")
}

func handleSourcesList(store *sources.Store, args []string) {
	fs := flag.NewFlagSet("sources list", flag.ExitOnError)
	enabledOnly := fs.Bool("enabled", false, "Show only enabled sources")
	fs.Parse(args)

	filter := sources.Filter{}
	if *enabledOnly {
		enabled := true
		filter.Enabled = &enabled
	}

	list, err := store.List(filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list sources: %v\n", err)
		os.Exit(1)
	}

	if len(list) == 0 {
		fmt.Println("No sources configured.")
		return
	}

	printSourcesTable(list)
}

func handleSourcesAdd(store *sources.Store, args []string) {
	fs := flag.NewFlagSet("sources add", flag.ExitOnError)
	url := fs.String("url", "", "Site URL (required)")
	name := fs.String("name", "", "Source name (required)")
	interval := fs.String("interval", "", "Poll interval, e.g. 30m or 2h")
	disabled := fs.Bool("disabled", false, "Create the source disabled")
	contentSel := fs.String("content-selector", "", "CSS selector for the article body")
	titleSel := fs.String("title-selector", "", "CSS selector for the title")
	authorSel := fs.String("author-selector", "", "CSS selector for the author")
	dateSel := fs.String("date-selector", "", "CSS selector for the publication date")
	dateFormat := fs.String("date-format", "", "Go reference layout for the date text")
	fs.Parse(args)

	if *url == "" {
		fmt.Fprintf(os.Stderr, "Error: --url is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *name == "" {
		fmt.Fprintf(os.Stderr, "Error: --name is required\n")
		fs.Usage()
		os.Exit(1)
	}
	if *interval != "" {
		if _, err := time.ParseDuration(*interval); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --interval: %v\n", err)
			os.Exit(1)
		}
	}

	var profile *sources.ScrapeProfile
	if *contentSel != "" || *titleSel != "" || *authorSel != "" || *dateSel != "" {
		profile = &sources.ScrapeProfile{
			ContentSelector: *contentSel,
			TitleSelector:   *titleSel,
			AuthorSelector:  *authorSel,
			DateSelector:    *dateSel,
			DateFormat:      *dateFormat,
		}
	}

	var enabledAt *time.Time
	if !*disabled {
		now := time.Now()
		enabledAt = &now
	}

	source, err := store.Create(*url, *name, profile, enabledAt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create source: %v\n", err)
		os.Exit(1)
	}

	if *interval != "" {
		if err := store.Update(source.SourceID, sources.Update{PollInterval: interval}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to set poll interval: %v\n", err)
			os.Exit(1)
		}
		source.PollInterval = interval
	}

	fmt.Printf("✓ Created source: %s\n", source.SourceID.String())
	fmt.Printf("  Name: %s\n", source.Name)
	fmt.Printf("  URL: %s\n", source.URL)
	if source.PollInterval != nil {
		fmt.Printf("  Interval: %s\n", *source.PollInterval)
	}
	if profile != nil {
		fmt.Printf("  Profile: content=%q title=%q author=%q date=%q\n",
			profile.ContentSelector, profile.TitleSelector, profile.AuthorSelector, profile.DateSelector)
	}
}

func handleSourcesShow(store *sources.Store, args []string) {
	source := mustGetSource(store, args, "newshound sources show <source-id>")
	printSourceDetail(source)
}

func handleSourcesSetEnabled(store *sources.Store, args []string, enable bool) {
	source := mustGetSource(store, args, "newshound sources enable|disable <source-id>")

	update := sources.Update{}
	if enable {
		now := time.Now()
		update.EnabledAt = &now
	} else {
		update.ClearEnabledAt = true
	}

	if err := store.Update(source.SourceID, update); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to update source: %v\n", err)
		os.Exit(1)
	}

	if enable {
		fmt.Printf("✓ Enabled source: %s\n", source.SourceID.String())
	} else {
		fmt.Printf("✓ Disabled source: %s\n", source.SourceID.String())
	}
}

func handleSourcesDelete(store *sources.Store, args []string) {
	source := mustGetSource(store, args, "newshound sources delete <source-id>")

	if err := store.Delete(source.SourceID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete source: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Deleted source: %s\n", source.SourceID.String())
}

// mustGetSource parses the ID argument and loads the source, or exits.
func mustGetSource(store *sources.Store, args []string, usage string) *sources.Source {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: source ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
		os.Exit(1)
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid source ID: %v\n", err)
		os.Exit(1)
	}

	source, err := store.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return source
}
