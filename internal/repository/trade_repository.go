package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradejournal/internal/domain"
)

// TradeRepositoryImpl implements the TradeRepository interface
type TradeRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db *pgxpool.Pool) domain.TradeRepository {
	return &TradeRepositoryImpl{db: db}
}

const tradeColumns = `
	id, user_id, pair, timeframe, direction, entry, tp, sl,
	reasons, status, exit_price, pnl, created_at, closed_at
`

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	trade := &domain.Trade{}
	err := row.Scan(
		&trade.ID,
		&trade.UserID,
		&trade.Pair,
		&trade.Timeframe,
		&trade.Direction,
		&trade.Entry,
		&trade.TP,
		&trade.SL,
		&trade.Reasons,
		&trade.Status,
		&trade.ExitPrice,
		&trade.PnL,
		&trade.CreatedAt,
		&trade.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// Create inserts a trade in a single statement
func (r *TradeRepositoryImpl) Create(ctx context.Context, trade *domain.Trade) error {
	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}

	query := `
		INSERT INTO trades (
			id, user_id, pair, timeframe, direction, entry, tp, sl,
			reasons, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.Exec(ctx, query,
		trade.ID,
		trade.UserID,
		trade.Pair,
		trade.Timeframe,
		trade.Direction,
		trade.Entry,
		trade.TP,
		trade.SL,
		trade.Reasons,
		trade.Status,
		trade.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	return nil
}

// ListByUser retrieves the trades of a user, newest first
func (r *TradeRepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// GetByID retrieves a trade by ID
func (r *TradeRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	trade, err := scanTrade(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trade by ID: %w", err)
	}

	return trade, nil
}

// Update applies a status change and returns the updated row
func (r *TradeRepositoryImpl) Update(ctx context.Context, id uuid.UUID, update domain.TradeUpdate, closedAt *time.Time) (*domain.Trade, error) {
	query := `
		UPDATE trades
		SET status = $1, exit_price = $2, pnl = $3, closed_at = $4
		WHERE id = $5
		RETURNING ` + tradeColumns

	trade, err := scanTrade(r.db.QueryRow(ctx, query,
		update.Status,
		update.ExitPrice,
		update.PnL,
		closedAt,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update trade: %w", err)
	}

	return trade, nil
}

// Delete removes a trade
func (r *TradeRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
