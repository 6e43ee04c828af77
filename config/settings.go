// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup
// - Deployment mode presets

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig
	Loop      LoopConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// LoopConfig holds reasoning loop configuration.
type LoopConfig struct {
	MaxIterations    int
	MaxResponseChars int
	ToolTimeout      time.Duration
	MaxSearchResults int
	MaxFetchChars    int
	Verbose          bool
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	Enabled    bool
	Path       string
	MaxEntries int
	TTL        time.Duration
}

// RateLimitConfig holds admission control configuration.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// Mode is a deployment preset tuning the loop for its environment.
type Mode string

const (
	// ModeDemo favors speed: shortest answers, tightest tool limits.
	ModeDemo Mode = "demo"
	// ModeProduction balances quality and latency.
	ModeProduction Mode = "production"
	// ModeDevelopment favors completeness and disables caching so every
	// run exercises the full loop.
	ModeDevelopment Mode = "development"
)

// ParseMode parses a deployment mode (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "demo":
		return ModeDemo, nil
	case "production", "prod", "":
		return ModeProduction, nil
	case "development", "dev":
		return ModeDevelopment, nil
	default:
		return "", fmt.Errorf("unknown mode: %q", s)
	}
}

// preset holds the per-mode tuning values.
type preset struct {
	maxIterations    int
	maxResponseChars int
	toolTimeout      time.Duration
	maxSearchResults int
	maxFetchChars    int
	cachingEnabled   bool
	verbose          bool
}

var presets = map[Mode]preset{
	ModeDemo:        {2, 1500, 10 * time.Second, 2, 1000, true, true},
	ModeProduction:  {3, 2000, 15 * time.Second, 3, 1500, true, false},
	ModeDevelopment: {5, 3000, 30 * time.Second, 5, 2000, false, true},
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"cerebras":  {"CEREBRAS_MODEL", "llama3.1-8b", "CEREBRAS_API_KEY"},
	"openai":    {"OPENAI_MODEL", "gpt-4o-mini", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-haiku-4-20250514", "ANTHROPIC_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-3-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"llama":  "cerebras",
	"gpt":    "openai",
	"claude": "anthropic",
	"google": "gemini",
}

// New creates settings for the specified provider and mode, loading values
// from environment variables. Env vars override the mode preset.
// Returns an error if the provider or mode is unknown or environment
// variables contain invalid values.
func New(provider string, mode Mode) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	p, ok := presets[mode]
	if !ok {
		return Settings{}, fmt.Errorf("unknown mode: %q", mode)
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 1024)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	maxIterations, err := getEnvInt("LOOP_MAX_ITERATIONS", p.maxIterations)
	if err != nil {
		return Settings{}, err
	}

	cacheEntries, err := getEnvInt("CACHE_MAX_ENTRIES", 1000)
	if err != nil {
		return Settings{}, err
	}

	cacheTTLHours, err := getEnvInt("CACHE_TTL_HOURS", 24)
	if err != nil {
		return Settings{}, err
	}

	rateLimit, err := getEnvInt("RATE_LIMIT_PER_MINUTE", 20)
	if err != nil {
		return Settings{}, err
	}

	// Get model from environment or use default
	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	cachePath := os.Getenv("CACHE_DB_PATH")
	if cachePath == "" {
		cachePath = "delver_cache.db"
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Loop: LoopConfig{
			MaxIterations:    maxIterations,
			MaxResponseChars: p.maxResponseChars,
			ToolTimeout:      p.toolTimeout,
			MaxSearchResults: p.maxSearchResults,
			MaxFetchChars:    p.maxFetchChars,
			Verbose:          p.verbose,
		},
		Cache: CacheConfig{
			Enabled:    p.cachingEnabled,
			Path:       cachePath,
			MaxEntries: cacheEntries,
			TTL:        time.Duration(cacheTTLHours) * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Limit:  rateLimit,
			Window: time.Minute,
		},
	}, nil
}

// MustNew creates settings for the specified provider and mode.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string, mode Mode) Settings {
	settings, err := New(provider, mode)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
