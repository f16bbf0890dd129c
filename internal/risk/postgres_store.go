package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"satellite-trading-bot/internal/logging"
)

// PostgresStore persists the daily ledger in a single-row-per-day table.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

const statsSchema = `
CREATE TABLE IF NOT EXISTS daily_stats (
	date            TEXT PRIMARY KEY,
	initial_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
	trades_count    INTEGER NOT NULL DEFAULT 0,
	daily_pnl       DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_halted       BOOLEAN NOT NULL DEFAULT FALSE,
	halt_reason     TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// NewPostgresStore connects, verifies the connection, and ensures the schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := pool.Exec(ctx, statsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating daily_stats table: %w", err)
	}

	return &PostgresStore{
		pool: pool,
		log:  logging.DatabaseContext("migrate", "daily_stats"),
	}, nil
}

// Load returns the most recent ledger row, if any.
func (s *PostgresStore) Load() (DailyStats, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stats DailyStats
	err := s.pool.QueryRow(ctx, `
		SELECT date, initial_balance, current_balance, trades_count, daily_pnl, is_halted, halt_reason
		FROM daily_stats
		ORDER BY date DESC
		LIMIT 1`).
		Scan(&stats.Date, &stats.InitialBalance, &stats.CurrentBalance,
			&stats.TradesCount, &stats.DailyPnL, &stats.IsHalted, &stats.HaltReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DailyStats{}, false, nil
		}
		return DailyStats{}, false, fmt.Errorf("loading daily stats: %w", err)
	}
	return stats, true, nil
}

// Save upserts the day's row.
func (s *PostgresStore) Save(stats DailyStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_stats (date, initial_balance, current_balance, trades_count, daily_pnl, is_halted, halt_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (date) DO UPDATE SET
			initial_balance = EXCLUDED.initial_balance,
			current_balance = EXCLUDED.current_balance,
			trades_count    = EXCLUDED.trades_count,
			daily_pnl       = EXCLUDED.daily_pnl,
			is_halted       = EXCLUDED.is_halted,
			halt_reason     = EXCLUDED.halt_reason,
			updated_at      = NOW()`,
		stats.Date, stats.InitialBalance, stats.CurrentBalance,
		stats.TradesCount, stats.DailyPnL, stats.IsHalted, stats.HaltReason)
	if err != nil {
		return fmt.Errorf("saving daily stats: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
