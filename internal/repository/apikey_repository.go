package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradejournal/internal/domain"
)

// APIKeyRepositoryImpl implements the APIKeyRepository interface
type APIKeyRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *pgxpool.Pool) domain.APIKeyRepository {
	return &APIKeyRepositoryImpl{db: db}
}

// Upsert writes key as the single key of its user. Concurrent calls for the same
// user serialise on the user_id unique index; the last writer wins.
func (r *APIKeyRepositoryImpl) Upsert(ctx context.Context, key *domain.APIKey) (*domain.APIKey, error) {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	query := `
		INSERT INTO api_keys (id, user_id, key, label, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			key = EXCLUDED.key,
			label = EXCLUDED.label,
			created_at = EXCLUDED.created_at
		RETURNING id, user_id, key, label, created_at
	`

	stored := &domain.APIKey{}
	err := r.db.QueryRow(ctx, query, key.ID, key.UserID, key.Key, key.Label, key.CreatedAt).Scan(
		&stored.ID,
		&stored.UserID,
		&stored.Key,
		&stored.Label,
		&stored.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("failed to upsert api key: %w", err)
	}

	return stored, nil
}

// GetByUserID retrieves the current key of a user
func (r *APIKeyRepositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.APIKey, error) {
	query := `
		SELECT id, user_id, key, label, created_at
		FROM api_keys
		WHERE user_id = $1
	`

	key := &domain.APIKey{}
	err := r.db.QueryRow(ctx, query, userID).Scan(&key.ID, &key.UserID, &key.Key, &key.Label, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return key, nil
}

// GetUserIDByKey resolves the owner of a key
func (r *APIKeyRepositoryImpl) GetUserIDByKey(ctx context.Context, key string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT user_id FROM api_keys WHERE key = $1`, key).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, domain.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve api key: %w", err)
	}

	return userID, nil
}
