package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"tradejournal/internal/domain"
	"tradejournal/internal/identity"
	"tradejournal/internal/infra"
	"tradejournal/internal/policy"
	"tradejournal/internal/utils"
)

// MaxSignalBodyBytes bounds the raw webhook body
const MaxSignalBodyBytes = 64 << 10

// Stage is a step of the signal pipeline
type Stage string

// Pipeline stages, in order
const (
	StageReceived              Stage = "received"
	StageBodyParsed            Stage = "body_parsed"
	StageAuthenticated         Stage = "authenticated"
	StagePreferenceChecked     Stage = "preference_checked"
	StageValidated             Stage = "validated"
	StagePersisted             Stage = "persisted"
	StageNotificationForwarded Stage = "notification_forwarded"
	StageAcknowledged          Stage = "acknowledged"
)

// Notification outcomes reported to the caller
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// Messages returned in acknowledgements
const (
	MessageLogged   = "Trade logged successfully"
	MessageDisabled = "disabled"
)

// StageError is a terminal rejection of the pipeline
type StageError struct {
	Stage Stage
	Err   error
	// Received echoes a bounded prefix of an unparseable body
	Received string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("signal rejected at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SignalRequest is one inbound webhook call
type SignalRequest struct {
	HTTP *http.Request
	// Body is the raw body as read from the wire
	Body []byte
	// BodyKeyField is the JSON field this endpoint accepts an API key in
	BodyKeyField string
}

// IngestResult is the acknowledgement of an accepted signal
type IngestResult struct {
	Trade        *domain.Trade
	Message      string
	Notification string
	// Disabled is set when journalling is off for the user; nothing was stored
	Disabled bool
}

// IngestionService runs trade signals through authentication, preference gates,
// validation, persistence and notification
type IngestionService struct {
	resolver      *identity.Resolver
	guard         *policy.Guard
	accessor      *policy.Accessor
	trades        domain.TradeRepository
	notifier      domain.Notifier
	notifyTimeout time.Duration
	metrics       *infra.Metrics
	logger        logrus.FieldLogger
	now           func() time.Time
}

// NewIngestionService creates a new IngestionService. notifier and metrics may be nil.
func NewIngestionService(
	resolver *identity.Resolver,
	guard *policy.Guard,
	accessor *policy.Accessor,
	trades domain.TradeRepository,
	notifier domain.Notifier,
	notifyTimeout time.Duration,
	metrics *infra.Metrics,
	logger logrus.FieldLogger,
) *IngestionService {
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	return &IngestionService{
		resolver:      resolver,
		guard:         guard,
		accessor:      accessor,
		trades:        trades,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// ReadBody reads at most MaxSignalBodyBytes from r
func ReadBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxSignalBodyBytes+1))
	if err != nil {
		return nil, &StageError{Stage: StageReceived, Err: fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)}
	}
	if len(body) > MaxSignalBodyBytes {
		return nil, &StageError{Stage: StageReceived, Err: domain.ErrPayloadTooLarge}
	}
	return body, nil
}

// Ingest runs one signal through the pipeline. Rejections are returned as *StageError.
func (s *IngestionService) Ingest(ctx context.Context, req SignalRequest) (*IngestResult, error) {
	log := s.logger.WithField("remote_ip", remoteIP(req.HTTP))

	// BodyParsed: the body must be a JSON object before anything else is looked at
	if err := parseObject(req.Body); err != nil {
		log.WithError(err).Warn("Signal body is not valid JSON")
		s.metrics.SignalOutcome("malformed")
		return nil, &StageError{
			Stage:    StageBodyParsed,
			Err:      fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err),
			Received: utils.TruncateRunes(string(req.Body), identity.MaxEchoedInputSize),
		}
	}

	// Authenticated
	principal, err := s.resolver.Resolve(ctx, req.HTTP, req.Body, identity.Options{BodyKeyField: req.BodyKeyField})
	if err != nil {
		s.rejectAuth(log, err)
		return nil, &StageError{Stage: StageAuthenticated, Err: err}
	}
	log = log.WithFields(logrus.Fields{"user_id": principal.UserID, "auth_method": principal.Method})

	decision := s.guard.Authorize(ctx, &principal, policy.Authenticated(policy.ActionIngestSignal))
	if !decision.Allowed() {
		s.rejectAuth(log, decision.Err())
		return nil, &StageError{Stage: StageAuthenticated, Err: decision.Err()}
	}

	// PreferenceChecked
	prefs, err := s.accessor.PreferencesOf(ctx, principal.UserID)
	if err != nil {
		log.WithError(err).Error("Failed to load preferences")
		s.metrics.SignalOutcome("error")
		return nil, &StageError{Stage: StagePreferenceChecked, Err: err}
	}
	if !prefs.EnableJournalling {
		log.Info("Journalling disabled, signal dropped")
		s.metrics.SignalOutcome("disabled")
		return &IngestResult{Message: MessageDisabled, Notification: NotificationSkipped, Disabled: true}, nil
	}

	// Validated
	signal, err := decodeSignal(req.Body)
	if err != nil {
		log.WithError(err).Info("Signal failed validation")
		s.metrics.SignalOutcome("invalid")
		return nil, &StageError{Stage: StageValidated, Err: err}
	}

	// Persisted
	trade := domain.NewTradeFromSignal(principal.UserID, signal, s.now().UTC())
	if err := s.trades.Create(ctx, trade); err != nil {
		log.WithError(err).Error("Failed to persist trade")
		s.metrics.SignalOutcome("error")
		return nil, &StageError{Stage: StagePersisted, Err: fmt.Errorf("%w: %v", domain.ErrUpstream, err)}
	}
	log = log.WithFields(logrus.Fields{"trade_id": trade.ID, "pair": trade.Pair, "direction": trade.Direction})
	log.Info("Trade journalled")

	// NotificationForwarded
	notification := NotificationSkipped
	if prefs.EnableTelegramNotifications && s.notifier != nil {
		notification = s.forward(ctx, log, trade, signal.Message)
	}
	s.metrics.Notification(notification)

	// Acknowledged
	s.metrics.SignalOutcome("persisted")
	return &IngestResult{Trade: trade, Message: MessageLogged, Notification: notification}, nil
}

// forward sends the trade to the notifier; failures never undo the stored trade
func (s *IngestionService) forward(ctx context.Context, log logrus.FieldLogger, trade *domain.Trade, message string) string {
	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	if err := s.notifier.SendTrade(notifyCtx, trade, message); err != nil {
		log.WithError(err).Warn("Telegram notification failed, trade kept")
		return NotificationFailed
	}
	return NotificationSent
}

func (s *IngestionService) rejectAuth(log logrus.FieldLogger, err error) {
	reason := "unauthorized"
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		reason = "missing_credential"
	case errors.Is(err, domain.ErrInvalidCredential):
		reason = "invalid_credential"
	case errors.Is(err, domain.ErrForbidden):
		reason = "forbidden"
	case errors.Is(err, domain.ErrUpstream):
		reason = "upstream"
		log.WithError(err).Error("Signal authentication failed upstream")
	}
	if reason != "upstream" {
		log.WithField("reason", reason).Warn("Signal rejected during authentication")
	}
	s.metrics.AuthRejected("webhook", reason)
	s.metrics.SignalOutcome("rejected")
}

// parseObject checks that body is a single JSON object
func parseObject(body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty body")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("body must be a JSON object")
	}
	return nil
}

// decodeSignal maps the body onto a TradeSignal and validates it. Type mismatches
// are validation failures, not parse failures: the body is known to be JSON by now.
func decodeSignal(body []byte) (*domain.TradeSignal, error) {
	var signal domain.TradeSignal
	if err := json.Unmarshal(body, &signal); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %s has the wrong type", domain.ErrValidation, typeErr.Field)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := validateStruct(&signal); err != nil {
		return nil, err
	}
	if err := signal.CheckPrices(); err != nil {
		return nil, err
	}
	return &signal, nil
}

func remoteIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
