package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradejournal/internal/domain"
)

// DefaultTradeListLimit caps GET /api/trades
const DefaultTradeListLimit = 500

// TradeService reads and edits journalled trades. Callers authorize ownership first.
type TradeService struct {
	trades domain.TradeRepository
	now    func() time.Time
}

// NewTradeService creates a new TradeService
func NewTradeService(trades domain.TradeRepository) *TradeService {
	return &TradeService{trades: trades, now: time.Now}
}

// List returns the trades of userID, newest first
func (s *TradeService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Trade, error) {
	trades, err := s.trades.ListByUser(ctx, userID, DefaultTradeListLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: list trades: %v", domain.ErrUpstream, err)
	}
	return trades, nil
}

// Get loads one trade
func (s *TradeService) Get(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	trade, err := s.trades.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "load trade")
	}
	return trade, nil
}

// Update changes status and exit figures. closed_at is stamped when the trade closes.
func (s *TradeService) Update(ctx context.Context, id uuid.UUID, update domain.TradeUpdate) (*domain.Trade, error) {
	if err := validateStruct(&update); err != nil {
		return nil, err
	}
	if err := update.CheckPrices(); err != nil {
		return nil, err
	}

	var closedAt *time.Time
	if update.Status == domain.TradeStatusClosed {
		now := s.now().UTC()
		closedAt = &now
	}

	trade, err := s.trades.Update(ctx, id, update, closedAt)
	if err != nil {
		return nil, storeError(err, "update trade")
	}
	return trade, nil
}

// Delete removes one trade
func (s *TradeService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.trades.Delete(ctx, id); err != nil {
		return storeError(err, "delete trade")
	}
	return nil
}

// storeError keeps not-found and conflict results and marks everything else upstream
func storeError(err error, op string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return domain.ErrConflict
	default:
		return fmt.Errorf("%w: %s: %v", domain.ErrUpstream, op, err)
	}
}
