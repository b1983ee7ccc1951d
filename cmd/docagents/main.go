// Command docagents wires the agent execution substrate end to end: config
// load, provider clients, rate limiter, retry/breaker policy, worker pool,
// meter, concrete agents, and the fallback dispatcher. Grounded on the
// teacher's cmd/agentflow/main.go entrypoint shape (flag-based subcommands,
// zap logger construction, a "serve" command exposing health + metrics).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docagents/substrate/agent"
	"github.com/docagents/substrate/agents"
	"github.com/docagents/substrate/chatclient"
	"github.com/docagents/substrate/config"
	"github.com/docagents/substrate/dispatch"
	"github.com/docagents/substrate/external"
	"github.com/docagents/substrate/metering"
	"github.com/docagents/substrate/providers"
	"github.com/docagents/substrate/ratelimit"
	"github.com/docagents/substrate/resilience"
	"github.com/docagents/substrate/types"
	"github.com/docagents/substrate/workerpool"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	addr := fs.String("addr", ":8080", "Listen address for health/metrics")
	fs.Parse(args)

	logger := initLogger()
	defer logger.Sync()

	logger.Info("starting docagents substrate",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
		cfg = loaded
	}

	substrate, err := Build(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("failed to build substrate", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	_ = substrate // wired and ready; inbound task submission is the library API (agent.Agent.Process / dispatch.Dispatcher.Dispatch)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)

	logger.Info("docagents substrate stopped")
}

func printVersion() {
	fmt.Printf("docagents %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`docagents - agent execution substrate

Usage:
  docagents <command> [options]

Commands:
  serve     Start the substrate's health/metrics server
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)
  --addr <addr>     Listen address for health/metrics (default :8080)`)
}

func initLogger() *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller())
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// Substrate bundles every constructed component so callers embedding this
// module (rather than running it as a server) can reach the dispatcher and
// shared infrastructure directly.
type Substrate struct {
	Config     config.Config
	Limiter    *ratelimit.Limiter
	Breaker    *resilience.Breaker
	Retry      *resilience.Policy
	Pool       *workerpool.Pool
	Meter      *metering.Process
	Tokenizer  *metering.Tokenizer
	Dispatcher *dispatch.Dispatcher
}

// Build constructs the full stack described in SPEC_FULL.md §4 from a
// config, wiring a primary agent and a local-provider fallback twin for
// every agent kind that has a concrete implementation.
func Build(cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Substrate, error) {
	limiterConfigs := make(map[types.Provider]ratelimit.Config)
	for _, p := range cfg.Providers {
		limiterConfigs[p.Kind] = ratelimit.Config{
			MaxConcurrent:     p.MaxConcurrent,
			RequestsPerMinute: p.RequestsPerMinute,
			TokensPerMinute:   p.TokensPerMinute,
		}
	}
	limiter := ratelimit.NewLimiter(limiterConfigs, logger)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenDuration:     cfg.Breaker.OpenDuration,
		HalfOpenProbe:    cfg.Breaker.HalfOpenProbe,
	}, logger)

	retry := resilience.NewPolicy(resilience.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		JitterRatio: cfg.Retry.JitterRatio,
	}, breaker, logger)

	pool := workerpool.New(workerpool.Config{
		CoreSize:      cfg.Pool.CoreSize,
		MaxSize:       cfg.Pool.MaxSize,
		QueueCapacity: cfg.Pool.QueueCapacity,
	})

	meter := metering.NewProcess(reg, "docagents", logger)

	tok, err := metering.NewTokenizer()
	if err != nil {
		return nil, fmt.Errorf("build tokenizer: %w", err)
	}

	rates := metering.DefaultRateTable()
	for _, p := range cfg.Providers {
		rates[p.Kind] = metering.Rate{In: int64(p.CostInPer1M * 1_000_000), Out: int64(p.CostOutPer1M * 1_000_000)}
	}

	search := external.Search(nil) // wired by the embedding application; nil disables discovery/citation/metadata agents

	d := dispatch.New(dispatch.Config{LocalProviderEnabled: cfg.LocalProviderEnabled}, logger)

	registerKind := func(kind types.AgentKind, logic agent.Logic, provider types.Provider, binder chatclient.Binder) {
		instanceMeter := metering.NewInstance(kind, provider, meter, rates)
		base := agent.NewBase(kind, provider, logic, binder, limiter, retry, instanceMeter, pool, tok, logger)
		d.RegisterPrimary(base)

		if !cfg.LocalProviderEnabled {
			return
		}
		localEntry, ok := cfg.ProviderByKind(types.ProviderLocal)
		if !ok {
			return
		}
		localMeter := metering.NewInstance(kind, types.ProviderLocal, meter, rates)
		localBinder := func() (chatclient.ChatClient, error) {
			return chatclient.NewLocalClient(chatclient.LocalConfig{BaseConfig: chatclient.BaseConfig{
				BaseURL: localEntry.BaseURL,
				Model:   localEntry.ModelName,
			}}, nil), nil
		}
		fallback := agent.NewBase(kind, types.ProviderLocal, agents.NewSummarizer(providers.NewLocalShaper()), localBinder, limiter, nil, localMeter, pool, tok, logger)
		d.RegisterFallback(fallback)
	}

	openAIBinder := providerBinder(cfg, types.ProviderPrimaryCloudA, func(entry config.ProviderEntry) (chatclient.ChatClient, error) {
		return chatclient.NewOpenAIClient(chatclient.OpenAIConfig{BaseConfig: chatclient.BaseConfig{
			APIKey: entry.APIKey(), BaseURL: entry.BaseURL, Model: entry.ModelName,
		}}, nil), nil
	})
	anthropicBinder := providerBinder(cfg, types.ProviderPrimaryCloudB, func(entry config.ProviderEntry) (chatclient.ChatClient, error) {
		return chatclient.NewAnthropicClient(chatclient.AnthropicConfig{BaseConfig: chatclient.BaseConfig{
			APIKey: entry.APIKey(), BaseURL: entry.BaseURL, Model: entry.ModelName,
		}}, nil), nil
	})
	perplexityBinder := providerBinder(cfg, types.ProviderResearchCloud, func(entry config.ProviderEntry) (chatclient.ChatClient, error) {
		return chatclient.NewPerplexityClient(chatclient.PerplexityConfig{BaseConfig: chatclient.BaseConfig{
			APIKey: entry.APIKey(), BaseURL: entry.BaseURL, Model: entry.ModelName,
		}}, nil), nil
	})

	registerKind(types.KindStructureExtractor, agents.NewStructureExtractor(providers.NewOpenAIShaper()), types.ProviderPrimaryCloudA, openAIBinder)
	registerKind(types.KindSummarizer, agents.NewSummarizer(providers.NewOpenAIShaper()), types.ProviderPrimaryCloudA, openAIBinder)
	registerKind(types.KindConceptExplainer, agents.NewConceptExplainer(pool, providers.NewAnthropicShaper()), types.ProviderPrimaryCloudB, anthropicBinder)
	registerKind(types.KindCitationVerifier, agents.NewCitationVerifier(search, providers.NewPerplexityShaper()), types.ProviderResearchCloud, perplexityBinder)
	registerKind(types.KindMetadataEnhancer, agents.NewMetadataEnhancer(pool, search, providers.NewPerplexityShaper()), types.ProviderResearchCloud, perplexityBinder)
	registerKind(types.KindDiscovery, agents.NewDiscoveryAgent(search, providers.NewPerplexityShaper()), types.ProviderResearchCloud, perplexityBinder)

	return &Substrate{
		Config:     cfg,
		Limiter:    limiter,
		Breaker:    breaker,
		Retry:      retry,
		Pool:       pool,
		Meter:      meter,
		Tokenizer:  tok,
		Dispatcher: d,
	}, nil
}

// providerBinder builds a lazy Binder from a config entry, matching spec
// §4.1's "construction never fails, re-bind on first use" contract: a
// missing provider entry is only an error once something actually tries to
// call it, not at wiring time.
func providerBinder(cfg config.Config, kind types.Provider, build func(config.ProviderEntry) (chatclient.ChatClient, error)) chatclient.Binder {
	return func() (chatclient.ChatClient, error) {
		entry, ok := cfg.ProviderByKind(kind)
		if !ok {
			return nil, fmt.Errorf("no provider entry configured for %s", kind)
		}
		return build(entry)
	}
}
