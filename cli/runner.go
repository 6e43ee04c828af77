// Command execution for CLI commands.
//
// Information Hiding:
// - Agent and tool wiring hidden
// - Output formatting hidden
// - Provider construction hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rfharris/delver/agent"
	"github.com/rfharris/delver/cache"
	"github.com/rfharris/delver/config"
	"github.com/rfharris/delver/llm"
	"github.com/rfharris/delver/ratelimit"
	"github.com/rfharris/delver/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider  string
	Mode      string
	ClientKey string
	DBPath    string
	Verbose   bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		Provider: "cerebras",
		Mode:     "production",
	}
}

// Ask answers a single query and prints the result.
func Ask(ctx context.Context, query string, opts Options) error {
	a, settings, cleanup, err := buildAgent(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := a.Run(ctx, query)
	if err != nil {
		// Advisory answers still carry useful text for the user.
		if result.Answer != "" {
			fmt.Printf("%s\n", result.Answer)
		}
		return err
	}

	fmt.Printf("%s\n", result.Answer)

	if opts.Verbose || settings.Loop.Verbose {
		printResultDetails(result)
	}
	return nil
}

// Chat starts an interactive question-answering session.
func Chat(ctx context.Context, opts Options) error {
	a, settings, cleanup, err := buildAgent(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	verbose := opts.Verbose || settings.Loop.Verbose

	fmt.Printf("Ask me anything. Type 'exit' to quit.\n\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		result, err := a.Run(ctx, input)
		if err != nil && result.Answer == "" {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			continue
		}

		fmt.Printf("\n%s\n\n", result.Answer)
		if verbose {
			printResultDetails(result)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return scanner.Err()
}

// Stats prints cache statistics for the configured database.
func Stats(ctx context.Context, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	path := settings.Cache.Path
	if opts.DBPath != "" {
		path = opts.DBPath
	}

	store, err := cache.Open(path, settings.Cache.MaxEntries, settings.Cache.TTL)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	fmt.Printf("Cache: %s\n", path)
	fmt.Printf("  Entries: %d\n", stats.Entries)
	fmt.Printf("  Avg quality score: %.2f\n", stats.AvgQualityScore)
	fmt.Printf("  Avg access count: %.2f\n", stats.AvgAccessCount)
	fmt.Printf("  Duplicate responses: %d\n", stats.DuplicateResponses)
	return nil
}

// Helper functions

func loadSettings(opts Options) (config.Settings, error) {
	mode, err := config.ParseMode(opts.Mode)
	if err != nil {
		return config.Settings{}, err
	}
	return config.New(opts.Provider, mode)
}

// buildAgent wires settings into a ready-to-run agent. The returned cleanup
// closes the cache store and must always be called.
func buildAgent(opts Options) (*agent.Agent, config.Settings, func(), error) {
	noop := func() {}

	settings, err := loadSettings(opts)
	if err != nil {
		return nil, config.Settings{}, noop, err
	}

	provider, err := createProvider(opts.Provider, settings)
	if err != nil {
		return nil, config.Settings{}, noop, err
	}

	executor := tools.NewExecutor(
		tools.NewDuckDuckGoSearch(),
		tools.NewHTTPFetcher(settings.Loop.ToolTimeout),
		tools.ExecutorConfig{
			SearchTimeout:    settings.Loop.ToolTimeout,
			FetchTimeout:     settings.Loop.ToolTimeout,
			MaxSearchResults: settings.Loop.MaxSearchResults,
			MaxFetchChars:    settings.Loop.MaxFetchChars,
		},
	)

	a := agent.New(agent.Config{
		MaxIterations:    settings.Loop.MaxIterations,
		MaxResponseChars: settings.Loop.MaxResponseChars,
		RateLimit:        settings.RateLimit.Limit,
		RateWindow:       settings.RateLimit.Window,
		ClientKey:        opts.ClientKey,
		Verbose:          opts.Verbose || settings.Loop.Verbose,
	}, provider, executor)

	a = a.WithRateLimiter(ratelimit.New())

	cleanup := noop
	if settings.Cache.Enabled {
		path := settings.Cache.Path
		if opts.DBPath != "" {
			path = opts.DBPath
		}
		store, err := cache.Open(path, settings.Cache.MaxEntries, settings.Cache.TTL)
		if err != nil {
			// The loop works without a cache; warn and continue.
			fmt.Fprintf(os.Stderr, "Warning: caching disabled, failed to open database: %v\n", err)
		} else {
			a = a.WithCache(store)
			cleanup = func() { _ = store.Close() }
		}
	}

	return a, settings, cleanup, nil
}

func createProvider(providerName string, settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

func printResultDetails(result agent.Result) {
	if result.Cached {
		fmt.Printf("(cached, %s)\n", result.Duration.Round(time.Millisecond))
		return
	}
	fmt.Printf("(%s: %s, %s)\n",
		result.Plan.Kind, result.Plan.Input,
		result.Duration.Round(time.Millisecond))
}
