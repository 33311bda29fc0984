package http

import (
	"github.com/labstack/echo/v4"

	"tradejournal/internal/domain"
	"tradejournal/internal/middleware"
	"tradejournal/internal/policy"
	"tradejournal/internal/usecase"
)

// TradeHandler serves the caller's journal
type TradeHandler struct {
	trades *usecase.TradeService
	auth   *middleware.Authorizer
}

// NewTradeHandler creates a new TradeHandler
func NewTradeHandler(trades *usecase.TradeService, auth *middleware.Authorizer) *TradeHandler {
	return &TradeHandler{trades: trades, auth: auth}
}

// List returns the caller's trades
// GET /api/trades
func (h *TradeHandler) List(c echo.Context) error {
	principal, err := h.auth.Require(c, policy.Authenticated(policy.ActionReadTrades))
	if err != nil {
		return err
	}

	trades, err := h.trades.List(c.Request().Context(), principal.UserID)
	if err != nil {
		return err
	}
	if trades == nil {
		trades = []*domain.Trade{}
	}
	return SuccessResponse(c, trades)
}

// Update changes the status and exit figures of a trade
// PATCH /api/trades/:id
func (h *TradeHandler) Update(c echo.Context) error {
	trade, err := h.owned(c, policy.ActionUpdateTrade)
	if err != nil {
		return err
	}

	var update domain.TradeUpdate
	if err := bind(c, &update); err != nil {
		return err
	}

	updated, err := h.trades.Update(c.Request().Context(), trade.ID, update)
	if err != nil {
		return err
	}
	return SuccessResponse(c, updated)
}

// Delete removes a trade
// DELETE /api/trades/:id
func (h *TradeHandler) Delete(c echo.Context) error {
	trade, err := h.owned(c, policy.ActionDeleteTrade)
	if err != nil {
		return err
	}

	if err := h.trades.Delete(c.Request().Context(), trade.ID); err != nil {
		return err
	}
	return SuccessMessageResponse(c, "Trade deleted", nil)
}

// owned authenticates the caller, loads the trade named in the path and checks ownership
func (h *TradeHandler) owned(c echo.Context, kind policy.ActionKind) (*domain.Trade, error) {
	principal, err := h.auth.Require(c, policy.Authenticated(kind))
	if err != nil {
		return nil, err
	}
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}

	ctx := c.Request().Context()
	trade, err := h.trades.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := h.auth.Enforce(ctx, principal, policy.OnTrade(kind, trade.UserID)); err != nil {
		return nil, err
	}
	return trade, nil
}
