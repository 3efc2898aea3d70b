// Command server runs the tradingagents HTTP/SSE API: it wires the data
// collectors, the LLM provider, the tool registry, and the analysis
// graph into an orchestrator.Orchestrator and serves it over chi.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"tradingagents/internal/analysts"
	"tradingagents/internal/api"
	"tradingagents/internal/blackboard"
	"tradingagents/internal/collectors"
	"tradingagents/internal/config"
	"tradingagents/internal/events"
	"tradingagents/internal/llm"
	"tradingagents/internal/logger"
	"tradingagents/internal/memory"
	"tradingagents/internal/orchestrator"
	"tradingagents/internal/tools"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "tradingagents",
		Usage:   "Multi-agent stock analysis orchestrator",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the analysis API server",
				Flags:  config.Flags(),
				Action: runServer,
			},
			{
				Name:   "graph",
				Usage:  "Print the registered analysis graph's node list",
				Flags:  config.Flags(),
				Action: runGraph,
			},
			{
				Name:   "status",
				Usage:  "Print upstream circuit-breaker and cache state",
				Flags:  config.Flags(),
				Action: runStatus,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// collectorSet bundles the cache and fallback chains build assembles, so
// runStatus can inspect the same circuit-breaker/cache state a real
// analysis run would see without standing up the whole orchestrator.
type collectorSet struct {
	cache       *collectors.Cache
	priceChain  *collectors.FallbackChain
	cryptoChain *collectors.FallbackChain

	fundamentals *collectors.FundamentalsCollector
	indicators   *collectors.IndicatorCollector
	crypto       *collectors.CryptoCollector
	serper       *collectors.SerperClient
	httpClient   *http.Client
}

// buildCollectors wires the shared HTTP client, Redis cache, and
// per-upstream fallback chains for fundamentals, indicators, and crypto
// pricing (spec.md §4.2-§4.3). Both build and runStatus start here so the
// status command reports on the exact same chains a server run uses.
func buildCollectors(cfg config.Config, log *zap.Logger) collectorSet {
	httpClient := collectors.NewPooledClient(32, 5*time.Second, cfg.Tunables.ToolTimeout)
	cache := collectors.NewCache(cfg.RedisAddr, cfg.RedisDB, log)

	finnhub := collectors.NewFinnhubFetcher(cfg.FinnhubAPIKey, httpClient)
	alphaVantage := collectors.NewAlphaVantageFetcher(cfg.AlphaVantageKey, httpClient)
	serper := collectors.NewSerperClient(cfg.SerperAPIKey, httpClient)

	fundamentals := collectors.NewFundamentalsCollector(finnhub, alphaVantage, cache, cfg.Tunables.FundamentalsCacheTTL, log)

	priceChain := collectors.NewFallbackChain(
		[]collectors.Upstream{finnhub.PriceUpstream()},
		cfg.Tunables.CircuitBreakerTrips, cfg.Tunables.CircuitBreakerCooldown, cfg.Tunables.RateLimitPerSecond,
	)
	indicators := collectors.NewIndicatorCollector(priceChain, cache, cfg.Tunables.IndicatorsCacheTTL, log)

	cryptoChain := collectors.NewFallbackChain(
		[]collectors.Upstream{finnhub.CryptoPriceUpstream()},
		cfg.Tunables.CircuitBreakerTrips, cfg.Tunables.CircuitBreakerCooldown, cfg.Tunables.RateLimitPerSecond,
	)
	crypto := collectors.NewCryptoCollector(cryptoChain, cache, cfg.Tunables.IndicatorsCacheTTL)

	return collectorSet{
		cache:        cache,
		priceChain:   priceChain,
		cryptoChain:  cryptoChain,
		fundamentals: fundamentals,
		indicators:   indicators,
		crypto:       crypto,
		serper:       serper,
		httpClient:   httpClient,
	}
}

// build assembles the orchestrator.Deps from a resolved config.Config:
// an HTTPProvider talks to any OpenAI-compatible chat completions
// endpoint; the tool registry binds the single news-analyst tool.
func build(cfg config.Config, log *zap.Logger) (*orchestrator.Orchestrator, error) {
	cs := buildCollectors(cfg, log)

	provider := llm.NewHTTPProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cs.httpClient)

	registry := tools.NewRegistry()
	newsTool := tools.NewNewsSearchTool(cs.serper)
	registry.Register(newsTool)
	registry.Allow(blackboard.AnalystNews, newsTool.Name())

	executor := tools.NewExecutor(registry, cfg.Tunables.ToolTimeout, log)

	social := []analysts.SocialSource{
		analysts.NewRedditSource(cs.serper),
		analysts.NewTwitterSource(cs.serper),
		analysts.NewStockTwitsSource(cs.serper),
	}

	deps := orchestrator.Deps{
		Collectors: orchestrator.Collectors{
			Fundamentals: cs.fundamentals,
			Crypto:       cs.crypto,
			Indicators:   cs.indicators,
		},
		Provider: provider,
		Registry: registry,
		Executor: executor,
		Social:   social,
		Memory:   memory.NewInMemoryStore(20),
		Model:    cfg.OpenAIModel,
		Tunables: cfg.Tunables,
		Log:      log,
	}

	emitter := events.NewDispatcher(log)
	return orchestrator.Build(deps, emitter), nil
}

func newLogger(cfg config.Config) *zap.Logger {
	if cfg.DevMode {
		return logger.NewDevelopmentLogger()
	}
	return logger.NewProductionLogger()
}

func runServer(c *cli.Context) error {
	cfg, err := config.FromCLI(c)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	orch, err := build(cfg, log)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	server := &api.Server{Runner: orch, Log: log}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runGraph builds the orchestrator and prints its registered node names,
// a quick way to confirm the full intake -> ... -> trader sequence is
// wired without starting the server.
func runGraph(c *cli.Context) error {
	cfg, err := config.FromCLI(c)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	orch, err := build(cfg, log)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Node"})
	for _, name := range orch.Nodes() {
		table.Append([]string{name})
	}
	table.Render()
	return nil
}

// runStatus builds the same collector chains a server run would use and
// renders their circuit-breaker and cache state, for operators checking
// on upstream health without starting the server.
func runStatus(c *cli.Context) error {
	cfg, err := config.FromCLI(c)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	cs := buildCollectors(cfg, log)

	breakerTable := tablewriter.NewWriter(os.Stdout)
	breakerTable.SetHeader([]string{"Chain", "Upstream", "Breaker"})
	for name, open := range cs.priceChain.Statuses() {
		breakerTable.Append([]string{"price", name, breakerLabel(open)})
	}
	for name, open := range cs.cryptoChain.Statuses() {
		breakerTable.Append([]string{"crypto", name, breakerLabel(open)})
	}
	breakerTable.Render()

	cacheTable := tablewriter.NewWriter(os.Stdout)
	cacheTable.SetHeader([]string{"Cache", "Hit Rate"})
	cacheTable.Append([]string{cacheLabel(cs.cache.Enabled()), fmt.Sprintf("%.1f%%", cs.cache.HitRate()*100)})
	cacheTable.Render()

	return nil
}

func breakerLabel(open bool) string {
	if open {
		return "OPEN"
	}
	return "closed"
}

func cacheLabel(enabled bool) string {
	if enabled {
		return "redis (enabled)"
	}
	return "disabled"
}
