package statsink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/chess-insight/internal/domain"
)

// PostgresSink writes game stats rows to the insight_games table.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens and pings the database.
func NewPostgresSink(databaseURL string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (p *PostgresSink) Record(ctx context.Context, stats domain.GameStats) error {
	const query = `
		INSERT INTO insight_games (
			identity,
			report_id,
			opening,
			result,
			white_acpl,
			black_acpl,
			white_accuracy,
			black_accuracy,
			white_blunders,
			black_blunders,
			move_count,
			graded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (report_id) DO NOTHING`

	if _, err := p.db.ExecContext(
		ctx,
		query,
		stats.Identity,
		stats.ReportID,
		stats.Opening,
		stats.Result,
		stats.WhiteACPL,
		stats.BlackACPL,
		stats.WhiteAccuracy,
		stats.BlackAccuracy,
		stats.WhiteBlunders,
		stats.BlackBlunders,
		stats.MoveCount,
		stats.GradedAt,
	); err != nil {
		return fmt.Errorf("insert game stats: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *PostgresSink) Close() error {
	return p.db.Close()
}
