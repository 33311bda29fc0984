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

// ProfileRepositoryImpl handles profiles database operations
type ProfileRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new repository instance
func NewProfileRepository(db *pgxpool.Pool) domain.ProfileRepository {
	return &ProfileRepositoryImpl{db: db}
}

// Get retrieves a profile by user
func (r *ProfileRepositoryImpl) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRow(ctx, `
		SELECT user_id, name, telephone, country, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Name, &p.Telephone, &p.Country, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

// Upsert updates or creates a profile
func (r *ProfileRepositoryImpl) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRow(ctx, `
		INSERT INTO profiles (user_id, name, telephone, country, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			telephone = EXCLUDED.telephone,
			country = EXCLUDED.country,
			updated_at = CURRENT_TIMESTAMP
		RETURNING user_id, name, telephone, country, updated_at
	`, profile.UserID, profile.Name, profile.Telephone, profile.Country).
		Scan(&p.UserID, &p.Name, &p.Telephone, &p.Country, &p.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return p, nil
}
