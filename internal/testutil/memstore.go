// Package testutil provides an in-memory store satisfying every repository
// interface, with the same uniqueness and upsert semantics as the SQL schema.
package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradejournal/internal/domain"
)

// ErrInjected is returned by a store whose Fail hook is set
var ErrInjected = errors.New("injected store failure")

// Store is a mutex-guarded in-memory database
type Store struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*domain.User
	trades      map[uuid.UUID]*domain.Trade
	keysByUser  map[uuid.UUID]*domain.APIKey
	prefs       map[uuid.UUID]*domain.Preferences
	profiles    map[uuid.UUID]*domain.Profile
	revocations map[string]time.Time

	// Fail, when non-nil, is consulted before every operation; a non-nil result is returned as the error.
	Fail func(op string) error
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]*domain.User),
		trades:      make(map[uuid.UUID]*domain.Trade),
		keysByUser:  make(map[uuid.UUID]*domain.APIKey),
		prefs:       make(map[uuid.UUID]*domain.Preferences),
		profiles:    make(map[uuid.UUID]*domain.Profile),
		revocations: make(map[string]time.Time),
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

// Users returns the store as a domain.UserRepository
func (s *Store) Users() domain.UserRepository { return userRepo{s} }

// Trades returns the store as a domain.TradeRepository
func (s *Store) Trades() domain.TradeRepository { return tradeRepo{s} }

// APIKeys returns the store as a domain.APIKeyRepository
func (s *Store) APIKeys() domain.APIKeyRepository { return keyRepo{s} }

// Preferences returns the store as a domain.PreferencesRepository
func (s *Store) Preferences() domain.PreferencesRepository { return prefRepo{s} }

// Profiles returns the store as a domain.ProfileRepository
func (s *Store) Profiles() domain.ProfileRepository { return profileRepo{s} }

// Revocations returns the store as a domain.SessionRevocationRepository
func (s *Store) Revocations() domain.SessionRevocationRepository { return revocationRepo{s} }

// AddUser inserts a user with role and returns it
func (s *Store) AddUser(email string, role domain.Role) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	u := &domain.User{ID: uuid.New(), Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	return cloneUser(u)
}

// Ban marks a user banned
func (s *Store) Ban(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		now := time.Now()
		u.BannedAt = &now
	}
}

// TradeCount returns the number of stored trades
func (s *Store) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// KeyCount returns the number of stored API keys
func (s *Store) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keysByUser)
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *domain.User) error {
	if err := r.s.fail("users.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := r.s.fail("users.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := r.s.fail("users.get_by_email"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r userRepo) ListWithProfiles(ctx context.Context) ([]*domain.UserWithProfile, error) {
	if err := r.s.fail("users.list"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.UserWithProfile, 0, len(r.s.users))
	for _, u := range r.s.users {
		item := &domain.UserWithProfile{User: *u}
		if p, ok := r.s.profiles[u.ID]; ok {
			pc := *p
			item.Profile = &pc
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r userRepo) mutate(id uuid.UUID, op string, fn func(u *domain.User)) error {
	if err := r.s.fail(op); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (r userRepo) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	return r.mutate(id, "users.update_role", func(u *domain.User) { u.Role = role })
}

func (r userRepo) SetBannedAt(ctx context.Context, id uuid.UUID, bannedAt *time.Time) error {
	return r.mutate(id, "users.set_banned_at", func(u *domain.User) { u.BannedAt = bannedAt })
}

func (r userRepo) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	r.s.mu.Lock()
	for otherID, u := range r.s.users {
		if otherID != id && strings.EqualFold(u.Email, email) {
			r.s.mu.Unlock()
			return domain.ErrConflict
		}
	}
	r.s.mu.Unlock()
	return r.mutate(id, "users.update_email", func(u *domain.User) { u.Email = email })
}

func (r userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.s.fail("users.delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.users, id)
	delete(r.s.keysByUser, id)
	delete(r.s.prefs, id)
	delete(r.s.profiles, id)
	for tid, t := range r.s.trades {
		if t.UserID == id {
			delete(r.s.trades, tid)
		}
	}
	return nil
}

type tradeRepo struct{ s *Store }

func cloneTrade(t *domain.Trade) *domain.Trade {
	c := *t
	return &c
}

func (r tradeRepo) Create(ctx context.Context, trade *domain.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.s.fail("trades.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}
	r.s.trades[trade.ID] = cloneTrade(trade)
	return nil
}

func (r tradeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Trade, error) {
	if err := r.s.fail("trades.list"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Trade
	for _, t := range r.s.trades {
		if t.UserID == userID {
			out = append(out, cloneTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r tradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	if err := r.s.fail("trades.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trades[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTrade(t), nil
}

func (r tradeRepo) Update(ctx context.Context, id uuid.UUID, update domain.TradeUpdate, closedAt *time.Time) (*domain.Trade, error) {
	if err := r.s.fail("trades.update"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trades[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	t.Status = update.Status
	t.ExitPrice = update.ExitPrice
	t.PnL = update.PnL
	t.ClosedAt = closedAt
	return cloneTrade(t), nil
}

func (r tradeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.s.fail("trades.delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.trades[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.trades, id)
	return nil
}

type keyRepo struct{ s *Store }

// Upsert mirrors INSERT ... ON CONFLICT (user_id) DO UPDATE with a unique index on key
func (r keyRepo) Upsert(ctx context.Context, key *domain.APIKey) (*domain.APIKey, error) {
	if err := r.s.fail("api_keys.upsert"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for uid, k := range r.s.keysByUser {
		if uid != key.UserID && k.Key == key.Key {
			return nil, domain.ErrConflict
		}
	}
	stored := *key
	if existing, ok := r.s.keysByUser[key.UserID]; ok {
		stored.ID = existing.ID
	} else if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	r.s.keysByUser[key.UserID] = &stored
	out := stored
	return &out, nil
}

func (r keyRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.APIKey, error) {
	if err := r.s.fail("api_keys.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k, ok := r.s.keysByUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *k
	return &out, nil
}

func (r keyRepo) GetUserIDByKey(ctx context.Context, key string) (uuid.UUID, error) {
	if err := r.s.fail("api_keys.resolve"); err != nil {
		return uuid.Nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for uid, k := range r.s.keysByUser {
		if k.Key == key {
			return uid, nil
		}
	}
	return uuid.Nil, domain.ErrNotFound
}

type prefRepo struct{ s *Store }

func (r prefRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	if err := r.s.fail("preferences.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prefs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r prefRepo) Upsert(ctx context.Context, prefs *domain.Preferences) (*domain.Preferences, error) {
	if err := r.s.fail("preferences.upsert"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *prefs
	r.s.prefs[prefs.UserID] = &stored
	out := stored
	return &out, nil
}

type profileRepo struct{ s *Store }

func (r profileRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if err := r.s.fail("profiles.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r profileRepo) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	if err := r.s.fail("profiles.upsert"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *profile
	stored.UpdatedAt = time.Now()
	r.s.profiles[profile.UserID] = &stored
	out := stored
	return &out, nil
}

type revocationRepo struct{ s *Store }

func (r revocationRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := r.s.fail("revocations.revoke"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.revocations[jti] = expiresAt
	return nil
}

func (r revocationRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if err := r.s.fail("revocations.check"); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.revocations[jti]
	return ok, nil
}

func (r revocationRepo) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := r.s.fail("revocations.prune"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for jti, exp := range r.s.revocations {
		if !exp.After(now) {
			delete(r.s.revocations, jti)
			n++
		}
	}
	return n, nil
}
