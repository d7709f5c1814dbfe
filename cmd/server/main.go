// Package main is the entry point for the journey orchestration server.
//
// Import Path: github.com/redbadger/journey-dynamics/cmd/server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/redbadger/journey-dynamics/internal/api"
	"github.com/redbadger/journey-dynamics/internal/config"
	"github.com/redbadger/journey-dynamics/internal/decision"
	"github.com/redbadger/journey-dynamics/internal/domain"
	"github.com/redbadger/journey-dynamics/internal/eventstore"
	"github.com/redbadger/journey-dynamics/internal/facade"
	"github.com/redbadger/journey-dynamics/internal/infrastructure"
	"github.com/redbadger/journey-dynamics/internal/pkg/logger"
	"github.com/redbadger/journey-dynamics/internal/pkg/worker"
	"github.com/redbadger/journey-dynamics/internal/projection"
	"github.com/redbadger/journey-dynamics/internal/validate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting journey orchestration server",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize:  cfg.Worker.GeneralPoolSize,
		DecisionPoolSize: cfg.Worker.DecisionPoolSize,
	})
	if err != nil {
		return fmt.Errorf("init worker pools: %w", err)
	}
	defer pools.Shutdown()

	store := eventstore.New()
	projector := projection.New()

	workers := river.NewWorkers()
	river.AddWorker(workers, projection.NewProjectEventsWorker(db.Pool, store, projector))

	if err := db.InitRiverClient(workers, cfg.River); err != nil {
		return fmt.Errorf("init river client: %w", err)
	}
	if err := db.RiverClient.Start(ctx); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}
	defer db.RiverClient.Stop(context.Background()) //nolint:errcheck

	decisionEngine, err := buildDecisionEngine(ctx, cfg.Decision, pools)
	if err != nil {
		return fmt.Errorf("init decision engine: %w", err)
	}

	validator, err := buildValidator(cfg.Schema)
	if err != nil {
		return fmt.Errorf("init schema validator: %w", err)
	}

	svcFunc := func(context.Context) domain.Services {
		return domain.Services{
			Validator: validator,
			Decision:  decisionEngine,
		}
	}

	f := facade.New(db.Pool, store, db.RiverClient, svcFunc)
	handlers := api.NewHandlers(f)
	router := api.NewRouter(cfg, handlers)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("Shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// buildDecisionEngine selects the decision-graph adapter named by
// cfg.Engine. "simple" needs no artifact; "rego" compiles the policy at
// cfg.PolicyPath once at startup and evaluates it on the decision pool.
func buildDecisionEngine(ctx context.Context, cfg config.DecisionConfig, pools *worker.Pools) (domain.DecisionEngine, error) {
	switch cfg.Engine {
	case "", "simple":
		return decision.SimpleEngine{}, nil
	case "rego":
		policy, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("read rego policy: %w", err)
		}
		return decision.NewRegoEngine(ctx, string(policy), pools.Decision)
	default:
		return nil, fmt.Errorf("unknown decision engine %q", cfg.Engine)
	}
}

// buildValidator selects the schema-validation adapter named by cfg.Engine.
// "permissive" accepts every Capture payload unconditionally; "json_schema"
// compiles the document at cfg.SchemaPath once at startup and validates
// every Capture payload against it.
func buildValidator(cfg config.SchemaConfig) (domain.Validator, error) {
	switch cfg.Engine {
	case "", "permissive":
		return validate.Permissive{}, nil
	case "json_schema":
		raw, err := os.ReadFile(cfg.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("read json schema: %w", err)
		}
		return validate.NewSchemaValidator(raw)
	default:
		return nil, fmt.Errorf("unknown schema engine %q", cfg.Engine)
	}
}
