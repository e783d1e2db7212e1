// Package datastore persists backtest runs, live decisions and the live
// position in Postgres.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/lev-meanrev-bot/internal/indicator"
	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/internal/report"
	"github.com/your-org/lev-meanrev-bot/internal/rules"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("datastore: not found")

// DB is the subset of pgxpool.Pool (and pgx.Tx) the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Run is one backtest with everything it produced.
type Run struct {
	ID              uuid.UUID
	Start, End      time.Time
	InitialCapital  float64
	TransactionCost float64
	Thresholds      rules.Thresholds
	Params          indicator.Params
	Curve           []model.EquityPoint
	Trades          []model.TradeRecord
	Metrics         report.Metrics
}

// RunSummary is the stored headline of a run.
type RunSummary struct {
	ID              uuid.UUID
	CreatedAt       time.Time
	Start, End      time.Time
	FinalEquity     float64
	TotalReturn     float64
	SharpeRatio     float64
	MaxDrawdown     float64
	TotalTrades     int
	TotalProfit     decimal.Decimal
	ProfitLossRatio *float64
	EquityPoints    int
}

// Repository writes to and reads from Postgres.
type Repository struct {
	db     DB
	logger *zap.Logger
}

// NewRepository creates a new Repository.
func NewRepository(db DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

// SaveRun stores a run, its curve, ledger and metrics in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run Run) (err error) {
	thresholds, err := json.Marshal(run.Thresholds)
	if err != nil {
		return fmt.Errorf("datastore: encode thresholds: %w", err)
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("datastore: encode params: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("datastore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.Error("Failed to roll back run insert", zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.Exec(ctx, `
        INSERT INTO backtest_runs (run_id, start_date, end_date, initial_capital, transaction_cost, thresholds, indicator_params)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Start, run.End, run.InitialCapital, run.TransactionCost, thresholds, params,
	); err != nil {
		return fmt.Errorf("datastore: insert run: %w", err)
	}

	if _, err = tx.CopyFrom(ctx,
		pgx.Identifier{"equity_points"},
		[]string{"run_id", "date", "equity", "held", "benchmark_close"},
		pgx.CopyFromRows(equityRows(run.ID, run.Curve)),
	); err != nil {
		return fmt.Errorf("datastore: copy equity points: %w", err)
	}

	if _, err = tx.CopyFrom(ctx,
		pgx.Identifier{"backtest_trades"},
		[]string{"run_id", "seq", "date", "action", "instrument", "shares", "price", "cost", "equity_at_event", "reason"},
		pgx.CopyFromRows(tradeRows(run.ID, run.Trades)),
	); err != nil {
		return fmt.Errorf("datastore: copy trades: %w", err)
	}

	m := run.Metrics
	if _, err = tx.Exec(ctx, `
        INSERT INTO run_metrics (
            run_id, final_equity, total_return, cagr, sharpe_ratio, sortino_ratio, calmar_ratio,
            max_drawdown, total_trades, win_rate, total_profit, profit_loss_ratio, profit_factor, buy_and_hold
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID, m.FinalEquity, m.TotalReturn, m.CAGR, m.SharpeRatio, m.SortinoRatio, m.CalmarRatio,
		m.MaxDrawdown, m.TotalTrades, m.WinRate, m.TotalProfit, m.ProfitLossRatio, m.ProfitFactor, m.BuyAndHoldReturn,
	); err != nil {
		return fmt.Errorf("datastore: insert metrics: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("datastore: commit run: %w", err)
	}
	r.logger.Info("Saved backtest run",
		zap.String("run_id", run.ID.String()),
		zap.Int("equity_points", len(run.Curve)),
		zap.Int("trades", len(run.Trades)))
	return nil
}

// FetchRunSummary reads the headline numbers of a stored run.
func (r *Repository) FetchRunSummary(ctx context.Context, id uuid.UUID) (RunSummary, error) {
	s := RunSummary{ID: id}
	err := r.db.QueryRow(ctx, `
        SELECT b.created_at, b.start_date, b.end_date, m.final_equity, m.total_return, m.sharpe_ratio,
               m.max_drawdown, m.total_trades, m.total_profit, m.profit_loss_ratio,
               (SELECT count(*) FROM equity_points e WHERE e.run_id = b.run_id)
        FROM backtest_runs b
        JOIN run_metrics m ON m.run_id = b.run_id
        WHERE b.run_id = $1`, id,
	).Scan(&s.CreatedAt, &s.Start, &s.End, &s.FinalEquity, &s.TotalReturn, &s.SharpeRatio,
		&s.MaxDrawdown, &s.TotalTrades, &s.TotalProfit, &s.ProfitLossRatio, &s.EquityPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("datastore: run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunSummary{}, fmt.Errorf("datastore: fetch run %s: %w", id, err)
	}
	return s, nil
}

// SaveDecision appends a live decision to the audit log.
func (r *Repository) SaveDecision(ctx context.Context, at time.Time, snapshotDate time.Time, d model.Decision) error {
	var errText *string
	if d.IsError() {
		errText = &d.Err
	}
	var snapDate *time.Time
	if !snapshotDate.IsZero() {
		snapDate = &snapshotDate
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO live_decisions (decided_at, snapshot_date, action, target, reason, confidence, error)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		at, snapDate, string(d.Action), d.Target.String(), d.Reason, d.Confidence, errText,
	)
	if err != nil {
		r.logger.Error("Failed to insert live decision", zap.Error(err), zap.Stringer("decision", d))
		return fmt.Errorf("datastore: insert decision: %w", err)
	}
	return nil
}

// DeleteRunsBefore removes runs created before t, cascading to their rows.
func (r *Repository) DeleteRunsBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM backtest_runs WHERE created_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("datastore: delete runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func equityRows(id uuid.UUID, curve []model.EquityPoint) [][]interface{} {
	rows := make([][]interface{}, len(curve))
	for i, p := range curve {
		rows[i] = []interface{}{id, p.Date, p.Equity, p.Held.String(), p.BenchmarkClose}
	}
	return rows
}

func tradeRows(id uuid.UUID, trades []model.TradeRecord) [][]interface{} {
	rows := make([][]interface{}, len(trades))
	for i, t := range trades {
		rows[i] = []interface{}{id, i, t.Date, string(t.Action), t.Instrument.String(), t.Shares, t.Price, t.Cost, t.EquityAtEvent, t.Reason}
	}
	return rows
}
