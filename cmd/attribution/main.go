package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polyperf/config"
	"github.com/alejandrodnm/polyperf/internal/adapters/decisions"
	"github.com/alejandrodnm/polyperf/internal/adapters/notify"
	"github.com/alejandrodnm/polyperf/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyperf/internal/adapters/storage"
	"github.com/alejandrodnm/polyperf/internal/attribution"
	"github.com/alejandrodnm/polyperf/internal/cache"
	"github.com/alejandrodnm/polyperf/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	decisionsPath := flag.String("decisions", "", "path to decision log (overrides config)")
	out := flag.String("out", "", "write results JSON to this path")
	force := flag.Bool("force", false, "refetch price history even for closed markets")
	breakdown := flag.Bool("breakdown", false, "print per-event/per-market breakdown tables")
	normalize := flag.String("normalize", "", "capital normalization: none|legacy|kelly (overrides config)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *decisionsPath != "" {
		cfg.Decisions.Path = *decisionsPath
	}
	if *normalize != "" {
		cfg.Attribution.Normalize = *normalize
	}
	setupLogger(cfg.Log)

	slog.Info("polyperf starting",
		"config", *configPath,
		"decisions", cfg.Decisions.Path,
		"cache_backend", cfg.Cache.Backend,
		"normalize", cfg.Attribution.Normalize,
		"force", *force,
	)

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open cache store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, polymarket.DefaultRetryPolicy())
	clock := ports.SystemClock{}

	cacheClient := cache.New(client, store, clock, cache.Config{
		ClosureThreshold: cfg.ClosureThreshold(),
		HistoryDays:      cfg.Cache.HistoryDays,
	})

	runner := attribution.NewRunner(
		cacheClient,
		decisions.NewFileSource(cfg.Decisions.Path),
		client,
		clock,
		attribution.Config{
			Normalize:          cfg.Attribution.Normalize,
			BrierMode:          cfg.Attribution.BrierMode,
			CustomHorizonDays:  cfg.Attribution.CustomHorizonsDays,
			CumulativeBaseline: cfg.CumulativeBaseline(),
			ForceRefresh:       *force,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := runner.Run(ctx)
	if err != nil {
		slog.Error("attribution run failed", "err", err)
		os.Exit(1)
	}

	console := notify.NewConsole(*breakdown)
	if err := console.Report(ctx, result); err != nil {
		slog.Warn("console report error", "err", err)
	}

	if *out != "" {
		writer := notify.NewJSONFile(*out)
		if err := writer.Report(ctx, result); err != nil {
			slog.Error("failed to write results", "err", err, "path", *out)
			os.Exit(1)
		}
		slog.Info("results written", "path", *out)
	}

	slog.Info("polyperf finished", "models", len(result.Performances))
}

// openStore construye el backend de caché configurado.
func openStore(cfg *config.Config) (ports.CacheStore, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		return storage.NewSQLiteStore(cfg.Cache.DSN)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewFSStore(cfg.Cache.Dir)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
