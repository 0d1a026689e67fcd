package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"marketsignal/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// migrations and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Debug("sqlite run store opened", "path", dbPath)
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at         INTEGER NOT NULL,
			strategy           TEXT NOT NULL,
			symbol             TEXT NOT NULL,
			source             TEXT,
			start_ts           INTEGER NOT NULL,
			end_ts             INTEGER NOT NULL,
			cash               REAL,
			commission         REAL,
			sharpe             REAL,
			equity_final       REAL,
			equity_peak        REAL,
			return_pct         REAL,
			buy_hold_pct       REAL,
			return_ann_pct     REAL,
			volatility_ann_pct REAL,
			cagr_pct           REAL,
			sharpe_ratio       REAL,
			sortino_ratio      REAL,
			calmar_ratio       REAL,
			max_drawdown_pct   REAL,
			exposure_pct       REAL,
			num_trades         INTEGER,
			win_rate_pct       REAL,
			profit_factor      REAL,
			sqn                REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol, created_at)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			side        TEXT NOT NULL,
			qty         INTEGER NOT NULL,
			entry_ts    INTEGER NOT NULL,
			exit_ts     INTEGER NOT NULL,
			entry_index INTEGER,
			exit_index  INTEGER,
			entry_price REAL,
			exit_price  REAL,
			pnl         REAL,
			return_pct  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts the run and its trades in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	st := run.Stats
	res, err := tx.ExecContext(ctx, `INSERT INTO runs
		(created_at, strategy, symbol, source, start_ts, end_ts, cash, commission, sharpe,
		 equity_final, equity_peak, return_pct, buy_hold_pct, return_ann_pct, volatility_ann_pct,
		 cagr_pct, sharpe_ratio, sortino_ratio, calmar_ratio, max_drawdown_pct, exposure_pct,
		 num_trades, win_rate_pct, profit_factor, sqn)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.CreatedAt.UnixMilli(), run.Strategy, run.Symbol, run.Source,
		run.Start.UnixMilli(), run.End.UnixMilli(), run.Cash, run.Commission, nullable(run.Sharpe),
		nullable(st.EquityFinal), nullable(st.EquityPeak), nullable(st.ReturnPct),
		nullable(st.BuyAndHoldReturnPct), nullable(st.ReturnAnnPct), nullable(st.VolatilityAnnPct),
		nullable(st.CAGRPct), nullable(st.SharpeRatio), nullable(st.SortinoRatio),
		nullable(st.CalmarRatio), nullable(st.MaxDrawdownPct), nullable(st.ExposureTimePct),
		st.NumTrades, nullable(st.WinRatePct), nullable(st.ProfitFactor), nullable(st.SQN),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for _, t := range run.Trades {
		_, err := tx.ExecContext(ctx, `INSERT INTO trades
			(run_id, side, qty, entry_ts, exit_ts, entry_index, exit_index,
			 entry_price, exit_price, pnl, return_pct)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			id, string(t.Side), t.Qty, t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(),
			t.EntryIndex, t.ExitIndex, t.EntryPrice, t.ExitPrice, t.PnL, t.ReturnPct,
		)
		if err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	run.ID = id
	return nil
}

// ListRuns returns recorded runs, newest first. Trades are not loaded; use
// GetRunTrades.
func (s *SQLiteStore) ListRuns(ctx context.Context, symbol string, limit int) ([]domain.Run, error) {
	query := `SELECT id, created_at, strategy, symbol, source, start_ts, end_ts, cash, commission, sharpe,
		equity_final, equity_peak, return_pct, buy_hold_pct, return_ann_pct, volatility_ann_pct,
		cagr_pct, sharpe_ratio, sortino_ratio, calmar_ratio, max_drawdown_pct, exposure_pct,
		num_trades, win_rate_pct, profit_factor, sqn
		FROM runs`
	var args []any
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var (
			r                        domain.Run
			created, start, end      int64
			source                   sql.NullString
			sharpe                   sql.NullFloat64
			eqFinal, eqPeak, ret, bh sql.NullFloat64
			retAnn, vol, cagr        sql.NullFloat64
			sr, sortino, calmar      sql.NullFloat64
			maxDD, exposure          sql.NullFloat64
			winRate, pf, sqn         sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &created, &r.Strategy, &r.Symbol, &source, &start, &end,
			&r.Cash, &r.Commission, &sharpe,
			&eqFinal, &eqPeak, &ret, &bh, &retAnn, &vol,
			&cagr, &sr, &sortino, &calmar, &maxDD, &exposure,
			&r.Stats.NumTrades, &winRate, &pf, &sqn,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		r.Start = time.UnixMilli(start).UTC()
		r.End = time.UnixMilli(end).UTC()
		r.Source = source.String
		r.Sharpe = orNaN(sharpe)
		r.Stats.Start, r.Stats.End = r.Start, r.End
		r.Stats.EquityFinal = orNaN(eqFinal)
		r.Stats.EquityPeak = orNaN(eqPeak)
		r.Stats.ReturnPct = orNaN(ret)
		r.Stats.BuyAndHoldReturnPct = orNaN(bh)
		r.Stats.ReturnAnnPct = orNaN(retAnn)
		r.Stats.VolatilityAnnPct = orNaN(vol)
		r.Stats.CAGRPct = orNaN(cagr)
		r.Stats.SharpeRatio = orNaN(sr)
		r.Stats.SortinoRatio = orNaN(sortino)
		r.Stats.CalmarRatio = orNaN(calmar)
		r.Stats.MaxDrawdownPct = orNaN(maxDD)
		r.Stats.ExposureTimePct = orNaN(exposure)
		r.Stats.WinRatePct = orNaN(winRate)
		r.Stats.ProfitFactor = orNaN(pf)
		r.Stats.SQN = orNaN(sqn)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunTrades returns the trades of a run in the order they were closed.
func (s *SQLiteStore) GetRunTrades(ctx context.Context, runID int64) ([]domain.Trade, error) {
	var symbol string
	err := s.db.QueryRowContext(ctx, `SELECT symbol FROM runs WHERE id = ?`, runID).Scan(&symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup run %d: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT side, qty, entry_ts, exit_ts, entry_index, exit_index,
		entry_price, exit_price, pnl, return_pct
		FROM trades WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t           domain.Trade
			side        string
			entry, exit int64
		)
		if err := rows.Scan(&side, &t.Qty, &entry, &exit, &t.EntryIndex, &t.ExitIndex,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &t.ReturnPct); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Symbol = symbol
		t.Side = domain.PositionSide(side)
		t.EntryTime = time.UnixMilli(entry).UTC()
		t.ExitTime = time.UnixMilli(exit).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// nullable maps NaN and ±Inf to SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
