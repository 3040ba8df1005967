package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]

	switch subcommand {
	case "fetch":
		handleFetch(os.Args[2:])
	case "sources":
		if len(os.Args) < 3 {
			printSourcesUsage()
			os.Exit(1)
		}
		handleSourcesCommand(os.Args[2], os.Args[3:])
	case "articles":
		if len(os.Args) < 3 {
			printArticlesUsage()
			os.Exit(1)
		}
		handleArticlesCommand(os.Args[2], os.Args[3:])
	case "classify":
		handleClassify(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("newshound - news acquisition pipeline CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newshound <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  fetch      Run the pipeline against a site")
	fmt.Println("  sources    Manage the source roster")
	fmt.Println("  articles   Browse the article archive")
	fmt.Println("  classify   Classify URLs the way the pipeline would")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEWSHOUND_ROSTER_DSN   Path to roster database (default: ~/.newshound/roster.db)")
	fmt.Println("  NEWSHOUND_ARCHIVE_DIR  Path to article archive (default: ~/.newshound/archive)")
	fmt.Println()
	fmt.Println("Paths and pipeline defaults can also be set in ~/.newshound/config.yaml.")
}
