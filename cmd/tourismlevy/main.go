// Tourismlevy - Upper Austrian tourism levy service.
// Copyright (c) 2025 Law Digital Twin
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lawdigitaltwin/tourismlevy/internal/api"
	"github.com/lawdigitaltwin/tourismlevy/internal/assessment"
	"github.com/lawdigitaltwin/tourismlevy/internal/bus"
	"github.com/lawdigitaltwin/tourismlevy/internal/cache"
	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
	"github.com/lawdigitaltwin/tourismlevy/internal/refdata"
	"github.com/lawdigitaltwin/tourismlevy/internal/repository"
	"github.com/lawdigitaltwin/tourismlevy/internal/rules"
	"github.com/lawdigitaltwin/tourismlevy/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := domain.LoadConfig()

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting tourismlevy",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	data, err := loadReferenceData(ctx, cfg.Reference, repo)
	if err != nil {
		slog.Error("failed to load reference data", "error", err)
		os.Exit(1)
	}

	ref, err := levy.NewReference(data)
	if err != nil {
		slog.Error("reference data rejected", "error", err)
		os.Exit(1)
	}
	svc := levy.NewService(ref)
	slog.Info("reference data loaded",
		"classes", len(ref.Schedule.Classes()),
		"municipalities", ref.Municipalities.Len(),
		"activities", ref.Activities.Len(),
		"max_revenue_cap", ref.Schedule.MaxRevenueCap(),
	)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	engine, err := rules.NewEngine(cfg.Worker.MaxWorkers)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadRules(ctx, repo, engine, data.Rules); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, assessment.NewAssessor(svc, engine))

		workerCfg := worker.Config{
			Concurrency: cfg.Worker.MaxWorkers,
			CacheTTL:    cfg.Cache.AssessmentTTL,
		}
		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		}
	}

	srv := api.NewServer(cfg.Server, svc, engine, repo, cacheImpl, busImpl, Version)
	srv.Handler().AssessmentTTL = cfg.Cache.AssessmentTTL

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("tourismlevy is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// stop accepting requests before draining the worker
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	slog.Info("tourismlevy shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
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
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadReferenceData picks the lookup tables. A configured file wins over the
// repository; an empty repository falls back to the embedded dataset. The
// chosen dataset is written to the repository when seeding is enabled.
func loadReferenceData(ctx context.Context, cfg domain.ReferenceConfig, repo domain.Repository) (*domain.ReferenceData, error) {
	if cfg.File == "" {
		data, err := repo.LoadReference(ctx)
		if err == nil {
			slog.Info("reference data loaded from repository")
			return data, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		slog.Info("repository holds no reference data, using embedded dataset")
	}

	data, err := refdata.Load(cfg.File)
	if err != nil {
		return nil, err
	}

	if cfg.SeedRepository {
		// validate before persisting
		if _, err := levy.NewReference(data); err != nil {
			return nil, err
		}
		if err := repo.SaveReference(ctx, data); err != nil {
			return nil, fmt.Errorf("failed to seed repository: %w", err)
		}
		slog.Info("repository seeded with reference data",
			"source", sourceName(cfg.File),
			"municipalities", len(data.Municipalities),
			"activities", len(data.Activities),
			"rules", len(data.Rules),
		)
	}

	return data, nil
}

func sourceName(file string) string {
	if file == "" {
		return "embedded"
	}
	return file
}

// loadRules loads the stored rules. The dataset's rules are used when the
// repository has none.
func loadRules(ctx context.Context, repo domain.Repository, engine *rules.Engine, fallback []*domain.RuleConfig) error {
	stored, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
	}

	if len(stored) > 0 {
		slog.Info("loading rules from database", "count", len(stored))
		return engine.LoadRules(stored)
	}

	if len(fallback) > 0 {
		slog.Info("loading rules from reference data", "count", len(fallback))
		return engine.LoadRules(fallback)
	}

	slog.Info("no assessment rules configured - add them via POST /rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  Tourismlevy - Upper Austrian tourism levy service")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /levy/calculate           - Levy for a municipality and activity")
	fmt.Println("    POST /levy/compute             - Levy for a class and group")
	fmt.Println("    POST /levy/requests            - Queue a levy request")
	fmt.Println("    GET  /assessments/{id}         - Get assessment by ID")
	fmt.Println("    GET  /municipalities/{name}    - Municipality class")
	fmt.Println("    GET  /activities/{label}       - Contribution groups of an activity")
	fmt.Println("    GET  /rates                    - Rate and minimum schedules")
	fmt.Println("    GET  /rules                    - List assessment rules")
	fmt.Println("    POST /rules                    - Create a rule")
	fmt.Println("    POST /rules/reload             - Hot-reload rules from database")
	fmt.Println("    POST /reference/reload         - Hot-reload reference data")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
