package dto

import "tradejournal/internal/domain"

// SignalResponse is the webhook acknowledgement
type SignalResponse struct {
	Success      bool          `json:"success"`
	Trade        *domain.Trade `json:"trade,omitempty"`
	Message      string        `json:"message,omitempty"`
	Notification string        `json:"notification,omitempty"`
}

// TradeViewModel represents one row of the dashboard trade table
type TradeViewModel struct {
	Pair      string
	Timeframe string
	Direction string
	SideClass string // CSS class
	Entry     string
	TP        string
	SL        string
	Reasons   string
	Status    string
	Opened    string // local time
}
