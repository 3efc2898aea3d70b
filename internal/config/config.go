// Package config loads the server's runtime configuration from CLI
// flags, environment variables, and an optional YAML tunables file, in
// that order of precedence (flags/env win, YAML supplies defaults for
// values nothing else set).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved set of values the orchestrator needs to
// start. Secrets (API keys) are read from the environment only and are
// never accepted from the YAML tunables file, so they can't accidentally
// end up committed alongside it.
type Config struct {
	Host string
	Port int

	FinnhubAPIKey     string
	AlphaVantageKey   string
	SerperAPIKey      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string

	RedisAddr string
	RedisDB   int

	DevMode         bool
	ForcePurePython bool
	LogFile         string

	Tunables Tunables
}

// Tunables holds the non-secret knobs that are safe to check into a
// YAML file alongside the binary (spec.md §9 design note: these are
// deliberately split from credentials).
type Tunables struct {
	MaxDebateRounds      int           `yaml:"max_debate_rounds"`
	MaxRiskRounds        int           `yaml:"max_risk_rounds"`
	MaxToolIterations    int           `yaml:"max_tool_iterations"`
	MaxGraphSteps        int           `yaml:"max_graph_steps"`
	ToolTimeout          time.Duration `yaml:"tool_timeout"`
	NodeTimeout          time.Duration `yaml:"node_timeout"`
	CircuitBreakerTrips  int           `yaml:"circuit_breaker_trips"`
	CircuitBreakerCooldown time.Duration `yaml:"circuit_breaker_cooldown"`
	RateLimitPerSecond   float64       `yaml:"rate_limit_per_second"`
	FundamentalsCacheTTL time.Duration `yaml:"fundamentals_cache_ttl"`
	IndicatorsCacheTTL   time.Duration `yaml:"indicators_cache_ttl"`
}

// DefaultTunables mirrors the constants named in spec.md §4–§5: 3 debate
// rounds, a 200-step execution cap, a 5-failure/60s circuit breaker, a
// 15s tool timeout, and the two cache TTLs from the key layout table.
func DefaultTunables() Tunables {
	return Tunables{
		MaxDebateRounds:        3,
		MaxRiskRounds:          1,
		MaxToolIterations:      8,
		MaxGraphSteps:          200,
		ToolTimeout:            15 * time.Second,
		NodeTimeout:            60 * time.Second,
		CircuitBreakerTrips:    5,
		CircuitBreakerCooldown: 60 * time.Second,
		RateLimitPerSecond:     5,
		FundamentalsCacheTTL:   90 * 24 * time.Hour,
		IndicatorsCacheTTL:     24 * time.Hour,
	}
}

// Flags returns the urfave/cli flag set for the server command, each
// flag backed by the environment variable named in spec.md §6.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Value: "0.0.0.0", EnvVars: []string{"TRADINGAGENTS_HOST"}},
		&cli.IntFlag{Name: "port", Value: 8000, EnvVars: []string{"API_PORT"}},
		&cli.StringFlag{Name: "finnhub-api-key", EnvVars: []string{"FINNHUB_API_KEY"}},
		&cli.StringFlag{Name: "alpha-vantage-api-key", EnvVars: []string{"ALPHA_VANTAGE_API_KEY"}},
		&cli.StringFlag{Name: "serper-api-key", EnvVars: []string{"SERPER_API_KEY"}},
		&cli.StringFlag{Name: "openai-api-key", EnvVars: []string{"OPENAI_API_KEY"}},
		&cli.StringFlag{Name: "openai-base-url", Value: "https://api.openai.com/v1", EnvVars: []string{"OPENAI_BASE_URL"}},
		&cli.StringFlag{Name: "openai-model", Value: "gpt-4o-mini", EnvVars: []string{"OPENAI_MODEL"}},
		&cli.StringFlag{Name: "redis-addr", Value: "", EnvVars: []string{"REDIS_ADDR"}},
		&cli.IntFlag{Name: "redis-db", Value: 0, EnvVars: []string{"REDIS_DB"}},
		&cli.BoolFlag{Name: "dev", EnvVars: []string{"LANGGRAPH_ENV", "IS_LANGGRAPH_DEV"}},
		&cli.BoolFlag{Name: "force-pure-python", EnvVars: []string{"FORCE_PURE_PYTHON"}},
		&cli.StringFlag{Name: "log-file", EnvVars: []string{"TRADINGAGENTS_LOG_FILE"}},
		&cli.StringFlag{Name: "tunables-file", Usage: "path to a YAML file overriding DefaultTunables", EnvVars: []string{"TRADINGAGENTS_TUNABLES_FILE"}},
	}
}

// FromCLI resolves a Config from a cli.Context populated by Flags. It
// loads tunables from c.String("tunables-file") when set, falling back
// to DefaultTunables otherwise.
func FromCLI(c *cli.Context) (Config, error) {
	tunables := DefaultTunables()
	if path := c.String("tunables-file"); path != "" {
		loaded, err := LoadTunables(path)
		if err != nil {
			return Config{}, fmt.Errorf("loading tunables file %s: %w", path, err)
		}
		tunables = loaded
	}

	return Config{
		Host:            c.String("host"),
		Port:            c.Int("port"),
		FinnhubAPIKey:   c.String("finnhub-api-key"),
		AlphaVantageKey: c.String("alpha-vantage-api-key"),
		SerperAPIKey:    c.String("serper-api-key"),
		OpenAIAPIKey:    c.String("openai-api-key"),
		OpenAIBaseURL:   c.String("openai-base-url"),
		OpenAIModel:     c.String("openai-model"),
		RedisAddr:       c.String("redis-addr"),
		RedisDB:         c.Int("redis-db"),
		DevMode:         c.Bool("dev"),
		ForcePurePython: c.Bool("force-pure-python"),
		LogFile:         c.String("log-file"),
		Tunables:        tunables,
	}, nil
}

// LoadTunables reads and unmarshals a YAML tunables file on top of
// DefaultTunables, so a partial file only overrides the fields it sets.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tunables{}, fmt.Errorf("parsing yaml: %w", err)
	}
	return t, nil
}
