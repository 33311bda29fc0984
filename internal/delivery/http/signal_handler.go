package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tradejournal/internal/delivery/http/dto"
	"tradejournal/internal/identity"
	"tradejournal/internal/usecase"
)

// SignalHandler receives trade signals from bots and charting alerts
type SignalHandler struct {
	ingestion *usecase.IngestionService
}

// NewSignalHandler creates a new SignalHandler
func NewSignalHandler(ingestion *usecase.IngestionService) *SignalHandler {
	return &SignalHandler{ingestion: ingestion}
}

// Trades handles POST /api/trades; the body key field is apiKey
func (h *SignalHandler) Trades(c echo.Context) error {
	return h.ingest(c, identity.BodyFieldAPIKey)
}

// Notify handles POST /api/notify; the body key field is personalApiKey
func (h *SignalHandler) Notify(c echo.Context) error {
	return h.ingest(c, identity.BodyFieldPersonal)
}

func (h *SignalHandler) ingest(c echo.Context, keyField string) error {
	body, err := usecase.ReadBody(c.Request().Body)
	if err != nil {
		return err
	}

	result, err := h.ingestion.Ingest(c.Request().Context(), usecase.SignalRequest{
		HTTP:         c.Request(),
		Body:         body,
		BodyKeyField: keyField,
	})
	if err != nil {
		return err
	}

	if result.Disabled {
		return c.JSON(http.StatusOK, dto.SignalResponse{Success: true, Message: result.Message})
	}
	return c.JSON(http.StatusOK, dto.SignalResponse{
		Success:      true,
		Trade:        result.Trade,
		Message:      result.Message,
		Notification: result.Notification,
	})
}
