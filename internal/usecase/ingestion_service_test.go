package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tradejournal/internal/domain"
	"tradejournal/internal/identity"
	"tradejournal/internal/policy"
	"tradejournal/internal/testutil"
)

type noSessions struct{}

func (noSessions) VerifySession(ctx context.Context, token string) (uuid.UUID, error) {
	return uuid.Nil, domain.ErrInvalidCredential
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []*domain.Trade
	err   error
	block time.Duration
}

func (n *recordingNotifier) SendTrade(ctx context.Context, trade *domain.Trade, message string) error {
	n.mu.Lock()
	n.calls = append(n.calls, trade)
	n.mu.Unlock()
	if n.block > 0 {
		select {
		case <-time.After(n.block):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type IngestionSuite struct {
	suite.Suite
	store    *testutil.Store
	keys     *APIKeyService
	notifier *recordingNotifier
	svc      *IngestionService
	hook     *test.Hook
	user     *domain.User
	apiKey   string
}

func (s *IngestionSuite) SetupTest() {
	s.store = testutil.NewStore()
	logger, hook := test.NewNullLogger()
	s.hook = hook

	s.keys = NewAPIKeyService(s.store.APIKeys(), logger)
	accessor := policy.NewAccessor(s.store.Users(), s.store.Preferences())
	resolver := identity.NewResolver(s.keys, noSessions{})
	s.notifier = &recordingNotifier{}
	s.svc = NewIngestionService(resolver, policy.NewGuard(accessor), accessor, s.store.Trades(), s.notifier, 200*time.Millisecond, nil, logger)

	s.user = s.store.AddUser("trader@example.com", domain.RoleUser)
	key, err := s.keys.Generate(context.Background(), s.user.ID)
	s.Require().NoError(err)
	s.apiKey = key.Key
}

func (s *IngestionSuite) request(body string, headerKey string) SignalRequest {
	r := httptest.NewRequest(http.MethodPost, "/api/trades", strings.NewReader(body))
	if headerKey != "" {
		r.Header.Set(identity.HeaderAPIKey, headerKey)
	}
	return SignalRequest{HTTP: r, Body: []byte(body), BodyKeyField: identity.BodyFieldAPIKey}
}

const validSignal = `{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY","entry":"100.5","tp":110,"sl":95,"message":"Setup\nReasons:  breakout retest \nok"}`

func (s *IngestionSuite) setPrefs(journal, telegram bool) {
	_, err := s.store.Preferences().Upsert(context.Background(), &domain.Preferences{
		UserID:                      s.user.ID,
		EnableJournalling:           journal,
		EnableTelegramNotifications: telegram,
	})
	s.Require().NoError(err)
}

func stageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func (s *IngestionSuite) TestAcceptedSignal() {
	res, err := s.svc.Ingest(context.Background(), s.request(validSignal, s.apiKey))
	s.Require().NoError(err)

	s.Equal(MessageLogged, res.Message)
	s.Equal(NotificationSent, res.Notification)
	s.Require().NotNil(res.Trade)
	s.Equal(s.user.ID, res.Trade.UserID)
	s.Equal(domain.TradeStatusOpen, res.Trade.Status)
	s.Equal("breakout retest", res.Trade.Reasons)
	s.Equal("100.5", res.Trade.Entry.String())
	s.Equal(1, s.store.TradeCount())
	s.Equal(1, s.notifier.count())
}

func (s *IngestionSuite) TestBodyKeyAccepted() {
	body := `{"apiKey":"` + s.apiKey + `","pair":"ETHUSDT","timeframe":"1h","direction":"SELL","entry":2500}`
	res, err := s.svc.Ingest(context.Background(), s.request(body, ""))
	s.Require().NoError(err)
	s.Equal(domain.DirectionSell, res.Trade.Direction)
	s.Equal("", res.Trade.Reasons)
}

func (s *IngestionSuite) TestNoCredentialRejectedBeforeSideEffects() {
	_, err := s.svc.Ingest(context.Background(), s.request(validSignal, ""))
	s.ErrorIs(err, domain.ErrMissingCredential)
	s.Equal(StageAuthenticated, stageOf(err))
	s.Zero(s.store.TradeCount())
	s.Zero(s.notifier.count())
}

func (s *IngestionSuite) TestUnknownKeyIsInvalid() {
	_, err := s.svc.Ingest(context.Background(), s.request(validSignal, "deadbeef"))
	s.ErrorIs(err, domain.ErrInvalidCredential)
	s.Zero(s.store.TradeCount())
}

func (s *IngestionSuite) TestBannedUserForbidden() {
	s.store.Ban(s.user.ID)
	_, err := s.svc.Ingest(context.Background(), s.request(validSignal, s.apiKey))
	s.ErrorIs(err, domain.ErrForbidden)
	s.Zero(s.store.TradeCount())
	s.Zero(s.notifier.count())
}

func (s *IngestionSuite) TestLowercaseDirectionRejected() {
	body := `{"pair":"BTCUSDT","timeframe":"15m","direction":"buy","entry":1}`
	_, err := s.svc.Ingest(context.Background(), s.request(body, s.apiKey))
	s.ErrorIs(err, domain.ErrValidation)
	s.Equal(StageValidated, stageOf(err))
	s.Zero(s.store.TradeCount())
	s.Zero(s.notifier.count())
}

func (s *IngestionSuite) TestMissingFieldsRejected() {
	for _, body := range []string{
		`{"timeframe":"15m","direction":"BUY","entry":1}`,
		`{"pair":"BTCUSDT","direction":"BUY","entry":1}`,
		`{"pair":"BTCUSDT","timeframe":"15m","entry":1}`,
		`{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY"}`,
		`{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY","entry":0}`,
		`{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY","entry":"abc"}`,
		`{"pair":7,"timeframe":"15m","direction":"BUY","entry":1}`,
	} {
		_, err := s.svc.Ingest(context.Background(), s.request(body, s.apiKey))
		s.ErrorIs(err, domain.ErrValidation, body)
	}
	s.Zero(s.store.TradeCount())
}

func (s *IngestionSuite) TestPricesOutOfRangeRejected() {
	for _, body := range []string{
		`{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY","entry":"100000000000000000000"}`,
		`{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY","entry":-5}`,
		`{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY","entry":1,"tp":1e25}`,
		`{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY","entry":1,"sl":0}`,
	} {
		_, err := s.svc.Ingest(context.Background(), s.request(body, s.apiKey))
		s.ErrorIs(err, domain.ErrValidation, body)
		s.Equal(StageValidated, stageOf(err), body)
	}
	s.Zero(s.store.TradeCount())

	body := `{"pair":"BTCUSDT","timeframe":"15m","direction":"BUY","entry":"99999999999999999999.9999999999"}`
	_, err := s.svc.Ingest(context.Background(), s.request(body, s.apiKey))
	s.NoError(err)
}

func (s *IngestionSuite) TestMalformedBody() {
	garbage := "pair=BTC&" + strings.Repeat("z", 900)
	_, err := s.svc.Ingest(context.Background(), s.request(garbage, s.apiKey))
	s.ErrorIs(err, domain.ErrMalformedPayload)

	var se *StageError
	s.Require().True(errors.As(err, &se))
	s.Equal(StageBodyParsed, se.Stage)
	s.Len(se.Received, identity.MaxEchoedInputSize)

	_, err = s.svc.Ingest(context.Background(), s.request("", s.apiKey))
	s.ErrorIs(err, domain.ErrMalformedPayload)

	_, err = s.svc.Ingest(context.Background(), s.request("[1,2]", s.apiKey))
	s.ErrorIs(err, domain.ErrMalformedPayload)
}

func (s *IngestionSuite) TestJournallingDisabled() {
	s.setPrefs(false, true)
	res, err := s.svc.Ingest(context.Background(), s.request(validSignal, s.apiKey))
	s.Require().NoError(err)
	s.True(res.Disabled)
	s.Equal(MessageDisabled, res.Message)
	s.Nil(res.Trade)
	s.Zero(s.store.TradeCount())
	s.Zero(s.notifier.count())
}

func (s *IngestionSuite) TestTelegramDisabled() {
	s.setPrefs(true, false)
	res, err := s.svc.Ingest(context.Background(), s.request(validSignal, s.apiKey))
	s.Require().NoError(err)
	s.Equal(NotificationSkipped, res.Notification)
	s.Equal(1, s.store.TradeCount())
	s.Zero(s.notifier.count())
}

func (s *IngestionSuite) TestTransportFailureKeepsTrade() {
	s.notifier.err = errors.New("telegram API error (status 502)")
	res, err := s.svc.Ingest(context.Background(), s.request(validSignal, s.apiKey))
	s.Require().NoError(err)
	s.Equal(NotificationFailed, res.Notification)
	s.Equal(1, s.store.TradeCount())

	var warned bool
	for _, e := range s.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "Telegram notification failed") {
			warned = true
		}
	}
	s.True(warned)
}

func (s *IngestionSuite) TestSlowTransportTimesOut() {
	s.notifier.block = 5 * time.Second
	start := time.Now()
	res, err := s.svc.Ingest(context.Background(), s.request(validSignal, s.apiKey))
	s.Require().NoError(err)
	s.Equal(NotificationFailed, res.Notification)
	s.Less(time.Since(start), 2*time.Second)
	s.Equal(1, s.store.TradeCount())
}

func (s *IngestionSuite) TestCancelledRequestLeavesNoRow() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.svc.Ingest(ctx, s.request(validSignal, s.apiKey))
	s.Error(err)
	s.Zero(s.store.TradeCount())
	s.Zero(s.notifier.count())
}

func (s *IngestionSuite) TestKeyStoreFailureIsUpstream() {
	s.store.Fail = func(op string) error {
		if op == "api_keys.resolve" {
			return testutil.ErrInjected
		}
		return nil
	}
	_, err := s.svc.Ingest(context.Background(), s.request(validSignal, s.apiKey))
	s.ErrorIs(err, domain.ErrUpstream)
	s.NotErrorIs(err, domain.ErrInvalidCredential)
	s.Zero(s.store.TradeCount())
}

func (s *IngestionSuite) TestPersistFailureIsUpstream() {
	s.store.Fail = func(op string) error {
		if op == "trades.create" {
			return testutil.ErrInjected
		}
		return nil
	}
	_, err := s.svc.Ingest(context.Background(), s.request(validSignal, s.apiKey))
	s.ErrorIs(err, domain.ErrUpstream)
	s.Equal(StagePersisted, stageOf(err))
	s.Zero(s.notifier.count())
}

func TestIngestionSuite(t *testing.T) {
	suite.Run(t, new(IngestionSuite))
}

func TestReadBodyBounds(t *testing.T) {
	body, err := ReadBody(strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	_, err = ReadBody(strings.NewReader(strings.Repeat("x", MaxSignalBodyBytes+1)))
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)

	body, err = ReadBody(strings.NewReader(strings.Repeat("x", MaxSignalBodyBytes)))
	require.NoError(t, err)
	assert.Len(t, body, MaxSignalBodyBytes)
}
