package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradejournal/internal/domain"
)

// UserRepositoryImpl implements the UserRepository interface
type UserRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *pgxpool.Pool) domain.UserRepository {
	return &UserRepositoryImpl{db: db}
}

const userColumns = `id, email, password_hash, role, banned_at, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.BannedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user
func (r *UserRepositoryImpl) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	query := `
		INSERT INTO users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, user.ID, user.Email, user.PasswordHash, user.Role).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepositoryImpl) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// ListWithProfiles retrieves all users with their profiles, newest first
func (r *UserRepositoryImpl) ListWithProfiles(ctx context.Context) ([]*domain.UserWithProfile, error) {
	query := `
		SELECT u.id, u.email, u.password_hash, u.role, u.banned_at, u.created_at, u.updated_at,
		       p.user_id, p.name, p.telephone, p.country, p.updated_at
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		ORDER BY u.created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.UserWithProfile
	for rows.Next() {
		var (
			item             domain.UserWithProfile
			profileUserID    *uuid.UUID
			name, tel, ctry  *string
			profileUpdatedAt *time.Time
		)
		err := rows.Scan(
			&item.ID,
			&item.Email,
			&item.PasswordHash,
			&item.Role,
			&item.BannedAt,
			&item.CreatedAt,
			&item.UpdatedAt,
			&profileUserID,
			&name,
			&tel,
			&ctry,
			&profileUpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if profileUserID != nil {
			item.Profile = &domain.Profile{UserID: *profileUserID, Name: name, Telephone: tel, Country: ctry}
			if profileUpdatedAt != nil {
				item.Profile.UpdatedAt = *profileUpdatedAt
			}
		}
		users = append(users, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// exec runs a single-row update and reports ErrNotFound when nothing matched
func (r *UserRepositoryImpl) exec(ctx context.Context, what, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.ErrConflict
		}
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateRole sets the role of a user
func (r *UserRepositoryImpl) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	return r.exec(ctx, "update user role", `
		UPDATE users
		SET role = $1, updated_at = NOW()
		WHERE id = $2
	`, role, id)
}

// SetBannedAt sets or clears the ban timestamp of a user
func (r *UserRepositoryImpl) SetBannedAt(ctx context.Context, id uuid.UUID, bannedAt *time.Time) error {
	return r.exec(ctx, "update ban state", `
		UPDATE users
		SET banned_at = $1, updated_at = NOW()
		WHERE id = $2
	`, bannedAt, id)
}

// UpdateEmail changes the login email of a user
func (r *UserRepositoryImpl) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return r.exec(ctx, "update user email", `
		UPDATE users
		SET email = $1, updated_at = NOW()
		WHERE id = $2
	`, email, id)
}

// Delete removes a user; owned rows go with it through ON DELETE CASCADE
func (r *UserRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}
