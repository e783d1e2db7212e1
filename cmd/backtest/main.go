// Package main runs a historical simulation of the mean-reversion rule.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/lev-meanrev-bot/internal/backtest"
	"github.com/your-org/lev-meanrev-bot/internal/config"
	"github.com/your-org/lev-meanrev-bot/internal/csvwriter"
	"github.com/your-org/lev-meanrev-bot/internal/datastore"
	"github.com/your-org/lev-meanrev-bot/internal/indicator"
	"github.com/your-org/lev-meanrev-bot/internal/marketdata"
	"github.com/your-org/lev-meanrev-bot/internal/report"
	"github.com/your-org/lev-meanrev-bot/internal/rules"
	"github.com/your-org/lev-meanrev-bot/pkg/logger"
)

type options struct {
	RulesPath string
	OutDir    string
	Save      bool
}

func main() {
	// --- Configuration ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	rulesPath := flag.String("rules", "", "Rule document (JSON or YAML); overrides rules_path")
	outDir := flag.String("out", "", "Directory for CSV and JSON exports")
	save := flag.Bool("save", false, "Persist the run to Postgres")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
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

	res, m, err := run(ctx, cfg, options{RulesPath: *rulesPath, OutDir: *outDir, Save: *save}, zapLogger)
	if err != nil {
		logger.Errorf("Backtest failed: %v", err)
		stop()
		os.Exit(1)
	}
	logSummary(res, m)
}

// run executes the whole historical pipeline once.
func run(ctx context.Context, cfg *config.Config, opts options, zl *zap.Logger) (backtest.Result, report.Metrics, error) {
	start, end, err := cfg.Backtest.Range()
	if err != nil {
		return backtest.Result{}, report.Metrics{}, err
	}
	if opts.RulesPath == "" {
		opts.RulesPath = cfg.RulesPath
	}
	th, err := rules.FileSource{Path: opts.RulesPath}.Fetch(ctx)
	if err != nil {
		return backtest.Result{}, report.Metrics{}, err
	}

	src, err := cfg.MarketData.NewSource()
	if err != nil {
		return backtest.Result{}, report.Metrics{}, err
	}
	series, err := marketdata.FetchUniverse(ctx, src, cfg.Universe.Universe(), start, end)
	if err != nil {
		return backtest.Result{}, report.Metrics{}, err
	}
	rows, err := marketdata.Align(series)
	if err != nil {
		return backtest.Result{}, report.Metrics{}, err
	}
	calc, err := indicator.NewCalculator(cfg.Indicators)
	if err != nil {
		return backtest.Result{}, report.Metrics{}, err
	}
	snaps, err := calc.Calculate(rows)
	if err != nil {
		return backtest.Result{}, report.Metrics{}, err
	}
	logger.Infof("Loaded %d aligned rows, %d snapshots after warm-up", len(rows), len(snaps))

	res, err := backtest.Run(snaps, th, backtest.Options{
		InitialCapital:  cfg.Backtest.InitialCapital,
		TransactionCost: cfg.Backtest.TransactionCost,
	})
	if err != nil {
		return backtest.Result{}, report.Metrics{}, err
	}
	m := report.Calculate(res.Curve, res.Trades, report.Options{
		InitialCapital: cfg.Backtest.InitialCapital,
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
	})

	if opts.OutDir != "" {
		if err := export(opts.OutDir, res, m, zl); err != nil {
			return res, m, err
		}
		logger.Infof("Exported results to %s", opts.OutDir)
	}
	if opts.Save {
		if err := persist(ctx, cfg, res, m, th, zl); err != nil {
			return res, m, err
		}
	}
	return res, m, nil
}

func export(dir string, res backtest.Result, m report.Metrics, zl *zap.Logger) error {
	if err := csvwriter.WriteEquityCurve(filepath.Join(dir, "equity_curve.csv"), res.Curve, zl); err != nil {
		return err
	}
	if err := csvwriter.WriteTrades(filepath.Join(dir, "trades.csv"), res.Trades, zl); err != nil {
		return err
	}
	if err := csvwriter.WriteRoundTrips(filepath.Join(dir, "round_trips.csv"), m.RoundTrips, zl); err != nil {
		return err
	}
	b, err := json.MarshalIndent(struct {
		RunID   string         `json:"run_id"`
		Metrics report.Metrics `json:"metrics"`
	}{res.RunID.String(), m}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "metrics.json"), b, 0o644)
}

func persist(ctx context.Context, cfg *config.Config, res backtest.Result, m report.Metrics, th rules.Thresholds, zl *zap.Logger) error {
	if !cfg.Database.Enabled {
		return errors.New("-save needs database.enabled")
	}
	url := cfg.Database.URL()
	if err := datastore.Migrate(url, zl); err != nil {
		return err
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer pool.Close()

	repo := datastore.NewRepository(pool, zl)
	if err := repo.SaveRun(ctx, datastore.Run{
		ID:              res.RunID,
		Start:           m.StartDate,
		End:             m.EndDate,
		InitialCapital:  cfg.Backtest.InitialCapital,
		TransactionCost: cfg.Backtest.TransactionCost,
		Thresholds:      th,
		Params:          cfg.Indicators,
		Curve:           res.Curve,
		Trades:          res.Trades,
		Metrics:         m,
	}); err != nil {
		return err
	}

	if days := cfg.Database.RetentionDays; days > 0 {
		n, err := repo.DeleteRunsBefore(ctx, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Infof("Pruned %d backtest run(s) older than %d days", n, days)
		}
	}
	return nil
}

func logSummary(res backtest.Result, m report.Metrics) {
	logger.Info("--- Backtest Summary ---")
	logger.Infof("Run ID:            %s", res.RunID)
	logger.Infof("Period:            %s .. %s", m.StartDate.Format(config.DateLayout), m.EndDate.Format(config.DateLayout))
	logger.Infof("Final equity:      %.2f (initial %.2f)", m.FinalEquity, m.InitialCapital)
	logger.Infof("Total return:      %.2f%%  CAGR: %.2f%%", m.TotalReturn*100, m.CAGR*100)
	logger.Infof("Sharpe / Sortino:  %.3f / %.3f", m.SharpeRatio, m.SortinoRatio)
	logger.Infof("Max drawdown:      %.2f%%", m.MaxDrawdown*100)
	logger.Infof("Round trips:       %d (win rate %.1f%%)", m.TotalTrades, m.WinRate)
	logger.Infof("Total profit:      %s", m.TotalProfit.StringFixed(2))
	logger.Infof("Profit/loss ratio: %s  Profit factor: %s", report.FormatRatio(m.ProfitLossRatio), report.FormatRatio(m.ProfitFactor))
	logger.Infof("Buy and hold:      %.2f%% (excess %.2f%%)", m.BuyAndHoldReturn*100, m.ReturnVsBuyAndHold*100)
}
