package domain

import "context"

// Notifier forwards journalled trades to an external chat channel
type Notifier interface {
	// SendTrade delivers a formatted trade message. A non-nil error means the message was not accepted.
	SendTrade(ctx context.Context, trade *Trade, message string) error
}
