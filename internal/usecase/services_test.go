package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tradejournal/internal/domain"
	"tradejournal/internal/policy"
	"tradejournal/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestTradeUpdateStampsClosedAt(t *testing.T) {
	store := testutil.NewStore()
	svc := NewTradeService(store.Trades())
	fixed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	trade := &domain.Trade{ID: uuid.New(), UserID: uuid.New(), Pair: "BTCUSDT", Status: domain.TradeStatusOpen, CreatedAt: fixed}
	require.NoError(t, store.Trades().Create(ctx, trade))

	exit := decimal.RequireFromString("101")
	updated, err := svc.Update(ctx, trade.ID, domain.TradeUpdate{Status: domain.TradeStatusClosed, ExitPrice: &exit})
	require.NoError(t, err)
	require.NotNil(t, updated.ClosedAt)
	assert.Equal(t, fixed, *updated.ClosedAt)

	reopened, err := svc.Update(ctx, trade.ID, domain.TradeUpdate{Status: domain.TradeStatusOpen})
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)

	_, err = svc.Update(ctx, trade.ID, domain.TradeUpdate{Status: "won"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	loss := decimal.RequireFromString("-250.5")
	_, err = svc.Update(ctx, trade.ID, domain.TradeUpdate{Status: domain.TradeStatusClosed, ExitPrice: &exit, PnL: &loss})
	require.NoError(t, err)
	huge := decimal.New(1, 21)
	_, err = svc.Update(ctx, trade.ID, domain.TradeUpdate{Status: domain.TradeStatusClosed, PnL: &huge})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Update(ctx, trade.ID, domain.TradeUpdate{Status: domain.TradeStatusClosed, ExitPrice: &loss})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Update(ctx, uuid.New(), domain.TradeUpdate{Status: domain.TradeStatusCancelled})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, trade.ID))
	assert.ErrorIs(t, svc.Delete(ctx, trade.ID), domain.ErrNotFound)
}

func TestTradeListIsScopedToUser(t *testing.T) {
	store := testutil.NewStore()
	svc := NewTradeService(store.Trades())
	ctx := context.Background()
	mine, theirs := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Trades().Create(ctx, &domain.Trade{UserID: mine, CreatedAt: time.Now().Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, store.Trades().Create(ctx, &domain.Trade{UserID: theirs, CreatedAt: time.Now()}))

	trades, err := svc.List(ctx, mine)
	require.NoError(t, err)
	assert.Len(t, trades, 3)
	for _, tr := range trades {
		assert.Equal(t, mine, tr.UserID)
	}
	assert.True(t, trades[0].CreatedAt.After(trades[2].CreatedAt))
}

func TestAdminService(t *testing.T) {
	store := testutil.NewStore()
	logger, _ := test.NewNullLogger()
	svc := NewAdminService(store.Users(), logger)
	ctx := context.Background()
	root := store.AddUser("root@example.com", domain.RoleSuperadmin)
	u := store.AddUser("u@example.com", domain.RoleUser)
	store.AddUser("taken@example.com", domain.RoleUser)

	require.NoError(t, svc.SetBan(ctx, root.ID, u.ID, true))
	got, err := store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBanned())

	require.NoError(t, svc.SetBan(ctx, root.ID, u.ID, false))
	got, _ = store.Users().GetByID(ctx, u.ID)
	assert.False(t, got.IsBanned())

	require.NoError(t, svc.ChangeRole(ctx, root.ID, u.ID, RoleChange{Role: domain.RoleAdmin}))
	got, _ = store.Users().GetByID(ctx, u.ID)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.ErrorIs(t, svc.ChangeRole(ctx, root.ID, u.ID, RoleChange{Role: "owner"}), domain.ErrValidation)

	assert.ErrorIs(t, svc.UpdateEmail(ctx, root.ID, u.ID, EmailChange{Email: "not-an-email"}), domain.ErrValidation)
	assert.ErrorIs(t, svc.UpdateEmail(ctx, root.ID, u.ID, EmailChange{Email: "taken@example.com"}), domain.ErrConflict)
	require.NoError(t, svc.UpdateEmail(ctx, root.ID, u.ID, EmailChange{Email: " new@example.com "}))
	got, _ = store.Users().GetByID(ctx, u.ID)
	assert.Equal(t, "new@example.com", got.Email)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	require.NoError(t, svc.DeleteUser(ctx, root.ID, u.ID))
	assert.ErrorIs(t, svc.DeleteUser(ctx, root.ID, u.ID), domain.ErrNotFound)
}

func TestPreferenceServiceRequiresBothFlags(t *testing.T) {
	store := testutil.NewStore()
	svc := NewPreferenceService(policy.NewAccessor(store.Users(), store.Preferences()), store.Preferences())
	ctx := context.Background()
	userID := uuid.New()

	prefs, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPreferences(userID), prefs)

	_, err = svc.Set(ctx, userID, PreferenceUpdate{EnableJournalling: ptr(false)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	stored, err := svc.Set(ctx, userID, PreferenceUpdate{EnableJournalling: ptr(false), EnableTelegramNotifications: ptr(true)})
	require.NoError(t, err)
	assert.False(t, stored.EnableJournalling)

	prefs, err = svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, prefs.EnableJournalling)
	assert.True(t, prefs.EnableTelegramNotifications)
}

func TestProfileService(t *testing.T) {
	store := testutil.NewStore()
	svc := NewProfileService(store.Profiles())
	ctx := context.Background()
	userID := uuid.New()

	empty, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, empty.Name)

	_, err = svc.Update(ctx, userID, ProfileUpdate{Telephone: ptr("+62 812 3456 7890 1234")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Update(ctx, userID, ProfileUpdate{Name: ptr(string(long))})
	assert.ErrorIs(t, err, domain.ErrValidation)

	p, err := svc.Update(ctx, userID, ProfileUpdate{Name: ptr("  Ada "), Country: ptr("ID"), Telephone: ptr("  ")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", *p.Name)
	assert.Nil(t, p.Telephone)
}

func TestAuthService(t *testing.T) {
	store := testutil.NewStore()
	logger, _ := test.NewNullLogger()
	svc := NewAuthService(store.Users(), logger)
	svc.cost = 4
	ctx := context.Background()

	_, err := svc.Register(ctx, Credentials{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	user, err := svc.Register(ctx, Credentials{Email: "a@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)

	_, err = svc.Register(ctx, Credentials{Email: "A@example.com", Password: "another pass"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := svc.Authenticate(ctx, Credentials{Email: "a@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, Credentials{Email: "a@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	_, err = svc.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	require.NoError(t, svc.PromoteSuperadmin(ctx, "a@example.com"))
	promoted, _ := store.Users().GetByID(ctx, user.ID)
	assert.Equal(t, domain.RoleSuperadmin, promoted.Role)
	require.NoError(t, svc.PromoteSuperadmin(ctx, "missing@example.com"))
}

func TestAuthenticateUnknownEmailStillCompares(t *testing.T) {
	store := testutil.NewStore()
	logger, _ := test.NewNullLogger()
	svc := NewAuthService(store.Users(), logger)
	svc.cost = 4

	var hashes [][]byte
	svc.compare = func(hash, password []byte) error {
		hashes = append(hashes, hash)
		return bcrypt.CompareHashAndPassword(hash, password)
	}

	_, err := svc.Authenticate(context.Background(), Credentials{Email: "ghost@example.com", Password: "whatever pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	require.Len(t, hashes, 1)
	cost, err := bcrypt.Cost(hashes[0])
	require.NoError(t, err)
	assert.Equal(t, 4, cost)
}

func TestAccountServiceMe(t *testing.T) {
	store := testutil.NewStore()
	logger, _ := test.NewNullLogger()
	accessor := policy.NewAccessor(store.Users(), store.Preferences())
	keys := NewAPIKeyService(store.APIKeys(), logger)
	svc := NewAccountService(accessor, NewProfileService(store.Profiles()), keys)
	ctx := context.Background()
	u := store.AddUser("me@example.com", domain.RoleAdmin)

	me, err := svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.User.ID)
	assert.False(t, me.HasAPIKey)
	assert.True(t, me.Preferences.EnableJournalling)

	_, err = keys.Generate(ctx, u.ID)
	require.NoError(t, err)
	me, err = svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, me.HasAPIKey)

	assert.Equal(t, domain.RoleAdmin, svc.Role(ctx, u.ID))
	assert.Equal(t, domain.RoleUser, svc.Role(ctx, uuid.New()))
}
