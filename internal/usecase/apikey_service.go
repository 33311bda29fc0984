package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tradejournal/internal/domain"
)

const (
	apiKeyBytes         = 32
	maxGenerateAttempts = 3
)

// APIKeyService manages the single active API key of each user
type APIKeyService struct {
	repo    domain.APIKeyRepository
	logger  logrus.FieldLogger
	entropy io.Reader
	now     func() time.Time
}

// NewAPIKeyService creates a new APIKeyService
func NewAPIKeyService(repo domain.APIKeyRepository, logger logrus.FieldLogger) *APIKeyService {
	return &APIKeyService{
		repo:    repo,
		logger:  logger,
		entropy: rand.Reader,
		now:     time.Now,
	}
}

// Generate issues a fresh key for userID, replacing any previous key in one statement
func (s *APIKeyService) Generate(ctx context.Context, userID uuid.UUID) (*domain.APIKey, error) {
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		raw, err := s.newKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate api key: %w", err)
		}

		key, err := s.repo.Upsert(ctx, &domain.APIKey{
			ID:        uuid.New(),
			UserID:    userID,
			Key:       raw,
			Label:     domain.DefaultAPIKeyLabel,
			CreatedAt: s.now().UTC(),
		})
		if err == nil {
			s.logger.WithField("user_id", userID).Info("API key generated")
			return key, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: store api key: %v", domain.ErrUpstream, err)
		}
		s.logger.WithFields(logrus.Fields{"user_id": userID, "attempt": attempt}).Warn("API key collision, regenerating")
	}
	return nil, fmt.Errorf("%w: api key collided %d times", domain.ErrUpstream, maxGenerateAttempts)
}

// Lookup returns the current key of userID. domain.ErrNotFound means the user has none yet.
func (s *APIKeyService) Lookup(ctx context.Context, userID uuid.UUID) (*domain.APIKey, error) {
	key, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: load api key: %v", domain.ErrUpstream, err)
	}
	return key, nil
}

// ResolveUser returns the owner of key. An unknown key is domain.ErrNotFound;
// store failures are domain.ErrUpstream so callers never mistake them for a bad key.
func (s *APIKeyService) ResolveUser(ctx context.Context, key string) (uuid.UUID, error) {
	userID, err := s.repo.GetUserIDByKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return uuid.Nil, domain.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("%w: resolve api key: %v", domain.ErrUpstream, err)
	}
	return userID, nil
}

func (s *APIKeyService) newKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
