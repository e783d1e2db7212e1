// Package main runs the live decision cycle, once or on a schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/lev-meanrev-bot/internal/alert"
	"github.com/your-org/lev-meanrev-bot/internal/config"
	"github.com/your-org/lev-meanrev-bot/internal/datastore"
	"github.com/your-org/lev-meanrev-bot/internal/engine"
	"github.com/your-org/lev-meanrev-bot/internal/http/handler"
	"github.com/your-org/lev-meanrev-bot/internal/indicator"
	"github.com/your-org/lev-meanrev-bot/internal/metrics"
	"github.com/your-org/lev-meanrev-bot/internal/position"
	"github.com/your-org/lev-meanrev-bot/internal/rules"
	"github.com/your-org/lev-meanrev-bot/internal/runlock"
	decision "github.com/your-org/lev-meanrev-bot/internal/signal"
	"github.com/your-org/lev-meanrev-bot/internal/state"
	"github.com/your-org/lev-meanrev-bot/pkg/logger"
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	rulesPath := flag.String("rules", "", "Rule document (JSON or YAML); overrides rules_path")
	resetState := flag.Bool("reset-state", false, "Replace a corrupted persisted state with a fresh allocation")
	serve := flag.Bool("serve", false, "Run cycles on a schedule and serve the HTTP API")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *rulesPath != "" {
		cfg.RulesPath = *rulesPath
	}

	// --- Logger ---
	logger.SetGlobalLogLevel(cfg.LogLevel)
	zapLogger, err := logger.NewZap(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("Failed to initialize Zap logger: %v", err)
	}
	defer func() {
		if err := zapLogger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to sync zap logger: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cycle, cleanup, err := build(ctx, cfg, *resetState, zapLogger)
	if err != nil {
		logger.Errorf("Failed to set up live cycle: %v", err)
		stop()
		os.Exit(1)
	}
	defer cleanup()

	if !*serve {
		if _, err := cycle.Run(ctx); err != nil {
			cleanup()
			stop()
			os.Exit(1)
		}
		return
	}
	if err := daemon(ctx, cfg, cycle); err != nil {
		logger.Errorf("Live daemon stopped: %v", err)
	}
}

// build wires the cycle from config. cleanup releases what build opened.
func build(ctx context.Context, cfg *config.Config, reset bool, zl *zap.Logger) (*engine.Cycle, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	src, err := cfg.MarketData.NewSource()
	if err != nil {
		return nil, cleanup, err
	}
	calc, err := indicator.NewCalculator(cfg.Indicators)
	if err != nil {
		return nil, cleanup, err
	}

	var window *decision.TradingWindow
	if tw := cfg.Live.TradingWindow; tw.Enabled {
		if window, err = decision.NewTradingWindow(tw.Timezone, tw.Open, tw.Close); err != nil {
			return nil, cleanup, err
		}
	}

	cycle := &engine.Cycle{
		Universe:       cfg.Universe.Universe(),
		Source:         src,
		Calculator:     calc,
		Rules:          rules.FileSource{Path: cfg.RulesPath},
		Machine:        position.NewMachine(cfg.Backtest.TransactionCost),
		Window:         window,
		InitialCapital: cfg.Live.InitialCapital,
		LookbackDays:   cfg.Live.LookbackDays,
		ResetState:     reset,
		Metrics:        metrics.New(),
	}

	var store state.Store = state.NewFileStore(cfg.Live.StatePath)
	if cfg.Database.Enabled {
		if err := datastore.Migrate(cfg.Database.URL(), zl); err != nil {
			return nil, cleanup, err
		}
		pool, err := pgxpool.New(ctx, cfg.Database.URL())
		if err != nil {
			return nil, cleanup, fmt.Errorf("unable to connect to database: %w", err)
		}
		closers = append(closers, pool.Close)
		store = datastore.NewPositionStore(pool, "live")
		cycle.Decisions = datastore.NewRepository(pool, zl)
	}
	cycle.Store = store

	lockers := runlock.Chain{runlock.NewFileLocker(cfg.Live.LockPath, cfg.Live.Interval)}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		closers = append(closers, func() { _ = client.Close() })
		lockers = append(lockers, runlock.NewRedisLocker(client, cfg.Redis.LockKey, cfg.Redis.LockTTL))
	}
	cycle.Locker = lockers

	notifier, err := newNotifier(cfg.Live, zl)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, func() { _ = notifier.Close() })
	cycle.Notifier = notifier

	return cycle, cleanup, nil
}

func newNotifier(cfg config.LiveConfig, zl *zap.Logger) (alert.Notifier, error) {
	if !cfg.Notify {
		return alert.NewNoOpNotifier(), nil
	}
	sink := alert.NewLogNotifier(zl.Named("notify"))
	if cfg.NotifyInterval == 0 {
		return sink, nil
	}
	return alert.NewBufferedNotifier(sink, cfg.NotifyInterval, zl.Named("notify"))
}

// tracked records when the last cycle completed, whichever path ran it.
type tracked struct {
	*engine.Cycle
	last atomic.Int64
}

func (t *tracked) Run(ctx context.Context) (engine.Outcome, error) {
	out, err := t.Cycle.Run(ctx)
	if !errors.Is(err, runlock.ErrLocked) {
		t.last.Store(time.Now().UnixNano())
	}
	return out, err
}

func (t *tracked) lastCycle() time.Time {
	if n := t.last.Load(); n != 0 {
		return time.Unix(0, n)
	}
	return time.Time{}
}

// daemon runs a cycle every interval and serves the HTTP API until ctx ends.
// Scheduled and manual cycles share the cycle's run lock.
func daemon(ctx context.Context, cfg *config.Config, cycle *engine.Cycle) error {
	runner := &tracked{Cycle: cycle}
	routes := handler.Routes{
		Health:  &handler.HealthHandler{LastCycle: runner.lastCycle, MaxCycleAge: 3 * cfg.Live.Interval},
		State:   handler.NewStateHandler(cycle.Store, runner),
		Metrics: cycle.Metrics.Handler(),
	}
	if repo, ok := cycle.Decisions.(*datastore.Repository); ok {
		routes.Runs = handler.NewRunHandler(repo)
	}

	srv := &http.Server{Addr: cfg.Live.ListenAddr, Handler: handler.NewRouter(routes), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server starting on %s", cfg.Live.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(cfg.Live.Interval)
	defer ticker.Stop()
	logger.Infof("Live daemon started. Will run every %v.", cfg.Live.Interval)
	_, _ = runner.Run(ctx)

	for {
		select {
		case <-ticker.C:
			_, _ = runner.Run(ctx)
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case <-ctx.Done():
			logger.Info("Shutting down live daemon.")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
