package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the side of a signal
type Direction string

// Direction constants (case-sensitive on the wire)
const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// TradeStatus constants
const (
	TradeStatusOpen      = "open"
	TradeStatusClosed    = "closed"
	TradeStatusCancelled = "cancelled"
)

// reasonsPrefix marks the line of a signal message that carries the trade rationale
const reasonsPrefix = "Reasons:"

// maxPrice bounds price magnitudes to what a NUMERIC(30,10) column holds
var maxPrice = decimal.New(1, 20)

func checkPrice(field string, d *decimal.Decimal, signed bool) error {
	if d == nil {
		return nil
	}
	if !signed && !d.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrValidation, field)
	}
	if d.Abs().GreaterThanOrEqual(maxPrice) {
		return fmt.Errorf("%w: %s is out of range", ErrValidation, field)
	}
	return nil
}

// TradeSignal is the payload pushed by a trading client
type TradeSignal struct {
	Pair      string           `json:"pair" validate:"required,max=32"`
	Timeframe string           `json:"timeframe" validate:"required,max=16"`
	Direction Direction        `json:"direction" validate:"required,oneof=BUY SELL"`
	Entry     *decimal.Decimal `json:"entry" validate:"required"`
	TP        *decimal.Decimal `json:"tp,omitempty"`
	SL        *decimal.Decimal `json:"sl,omitempty"`
	Message   string           `json:"message,omitempty" validate:"max=4096"`
}

// Trade is a journalled trade owned by one user
type Trade struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Pair      string           `json:"pair"`
	Timeframe string           `json:"timeframe"`
	Direction Direction        `json:"direction"`
	Entry     decimal.Decimal  `json:"entry"`
	TP        *decimal.Decimal `json:"tp,omitempty"`
	SL        *decimal.Decimal `json:"sl,omitempty"`
	Reasons   string           `json:"reasons"`
	Status    string           `json:"status"`
	ExitPrice *decimal.Decimal `json:"exit_price,omitempty"`
	PnL       *decimal.Decimal `json:"pnl,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ClosedAt  *time.Time       `json:"closed_at,omitempty"`
}

// TradeUpdate carries the mutable fields of a trade
type TradeUpdate struct {
	Status    string           `json:"status" validate:"required,oneof=open closed cancelled"`
	ExitPrice *decimal.Decimal `json:"exit_price,omitempty"`
	PnL       *decimal.Decimal `json:"pnl,omitempty"`
}

// CheckPrices rejects non-positive or oversized entry, tp and sl
func (s *TradeSignal) CheckPrices() error {
	if err := checkPrice("entry", s.Entry, false); err != nil {
		return err
	}
	if err := checkPrice("tp", s.TP, false); err != nil {
		return err
	}
	return checkPrice("sl", s.SL, false)
}

// CheckPrices bounds exit_price and pnl; only pnl may be negative
func (u *TradeUpdate) CheckPrices() error {
	if err := checkPrice("exit_price", u.ExitPrice, false); err != nil {
		return err
	}
	return checkPrice("pnl", u.PnL, true)
}

// NewTradeFromSignal builds an open trade for userID from a validated signal
func NewTradeFromSignal(userID uuid.UUID, s *TradeSignal, now time.Time) *Trade {
	t := &Trade{
		ID:        uuid.New(),
		UserID:    userID,
		Pair:      s.Pair,
		Timeframe: s.Timeframe,
		Direction: s.Direction,
		TP:        s.TP,
		SL:        s.SL,
		Reasons:   ExtractReasons(s.Message),
		Status:    TradeStatusOpen,
		CreatedAt: now,
	}
	if s.Entry != nil {
		t.Entry = *s.Entry
	}
	return t
}

// ExtractReasons returns the trimmed remainder of the first line starting with
// "Reasons:", or the whole message when no such line exists.
func ExtractReasons(message string) string {
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if rest, ok := strings.CutPrefix(line, reasonsPrefix); ok {
			if reasons := strings.TrimSpace(rest); reasons != "" {
				return reasons
			}
			break
		}
	}
	return message
}
