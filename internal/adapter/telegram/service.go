package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/configs"
	"tradejournal/internal/domain"
	"tradejournal/internal/utils"
)

// ErrNotConfigured is returned when no bot token or chat id is set
var ErrNotConfigured = errors.New("telegram is not configured")

// markdownEscaper escapes the entities of Telegram's legacy Markdown parse mode
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// codeSpan strips backticks, which cannot be escaped inside a legacy Markdown code span
var codeSpan = strings.NewReplacer("`", "")

// NotificationService forwards journalled trades to a Telegram chat
type NotificationService struct {
	apiURL     string
	botToken   string
	chatID     string
	location   *time.Location
	httpClient *http.Client
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(cfg configs.TelegramConfig) *NotificationService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}

	return &NotificationService{
		apiURL:   apiURL,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		location: utils.LoadLocation(cfg.Timezone),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled reports whether a bot token and chat id are configured
func (s *NotificationService) Enabled() bool {
	return s.botToken != "" && s.chatID != ""
}

// SendTrade sends a trade signal notification to Telegram
func (s *NotificationService) SendTrade(ctx context.Context, trade *domain.Trade, message string) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	return s.sendMessage(ctx, s.FormatTrade(trade, message))
}

// FormatTrade renders the Markdown body of a trade notification
func (s *NotificationService) FormatTrade(trade *domain.Trade, message string) string {
	sideEmoji := "🟢"
	if trade.Direction == domain.DirectionSell {
		sideEmoji = "🔴"
	}

	text := fmt.Sprintf(
		"%s *%s SIGNAL*\n\n"+
			"📊 *Pair:* `%s`\n"+
			"⏰ *Timeframe:* `%s`\n"+
			"🎯 *Entry:* `%s`\n"+
			"✅ *Take Profit:* `%s`\n"+
			"🛑 *Stop Loss:* `%s`\n"+
			"🕒 *Time:* `%s`",
		sideEmoji,
		trade.Direction,
		codeSpan.Replace(trade.Pair),
		codeSpan.Replace(trade.Timeframe),
		trade.Entry.String(),
		price(trade.TP),
		price(trade.SL),
		utils.FormatLocal(trade.CreatedAt, s.location),
	)
	if message = strings.TrimSpace(message); message != "" {
		text += "\n\n" + markdownEscaper.Replace(message)
	}
	return text
}

func price(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

// sendMessage sends a message to Telegram using the Bot API
func (s *NotificationService) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken)

	payload := telegramMessage{
		ChatID:    s.chatID,
		Text:      text,
		ParseMode: "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// redact drops the request URL, which carries the bot token, from transport errors
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s telegram api: %w", ue.Op, ue.Err)
	}
	return err
}
