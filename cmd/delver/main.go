// Package main provides the delver CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rfharris/delver/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider  string
	mode      string
	clientKey string
	dbPath    string
	verbose   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "delver",
		Short: "Autonomous web research agent",
		Long: `A query-answering agent that plans a web action, executes it, and
synthesizes an answer from what it gathered.

Answers are cached in SQLite so repeated questions return instantly.
Deployment modes (demo, production, development) tune iteration counts,
tool timeouts, and response lengths.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "cerebras", "LLM provider (cerebras, openai, anthropic, gemini)")
	rootCmd.PersistentFlags().StringVarP(&mode, "mode", "m", "production", "Deployment mode (demo, production, development)")
	rootCmd.PersistentFlags().StringVar(&clientKey, "client-key", "", "Rate limit client key")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Cache database path (overrides CACHE_DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:  provider,
		Mode:      mode,
		ClientKey: clientKey,
		DBPath:    dbPath,
		Verbose:   verbose,
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Long: `Answer a single question with one research pass.

The agent picks a tool (search, fetch, or search_and_fetch), runs it
against the web, and composes an answer from the gathered text.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), strings.Join(args, " "), options())
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question-answering session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), options())
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Stats(context.Background(), options())
		},
	}
}
