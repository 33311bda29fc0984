package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"tradejournal/internal/domain"
)

// Credentials is the body of login and register
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required,email,max=254"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
}

// AuthService checks and creates password accounts. Session tokens are issued by the caller.
type AuthService struct {
	users   domain.UserRepository
	logger  logrus.FieldLogger
	cost    int
	compare func(hash, password []byte) error

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new AuthService
func NewAuthService(users domain.UserRepository, logger logrus.FieldLogger) *AuthService {
	return &AuthService{
		users:   users,
		logger:  logger,
		cost:    bcrypt.DefaultCost,
		compare: bcrypt.CompareHashAndPassword,
	}
}

// dummy is a hash at the service cost, compared against for unknown emails so both
// failures spend the same bcrypt time
func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("unknown account placeholder"), s.cost)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to build placeholder password hash")
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Register creates a user with role user
func (s *AuthService) Register(ctx context.Context, creds Credentials) (*domain.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validateStruct(&creds); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        creds.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError(err, "create user")
	}

	s.logger.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Authenticate returns the user owning creds. Unknown email and wrong password are
// both domain.ErrInvalidCredential.
func (s *AuthService) Authenticate(ctx context.Context, creds Credentials) (*domain.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	user, err := s.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = s.compare(s.dummy(), []byte(creds.Password))
			return nil, domain.ErrInvalidCredential
		}
		return nil, storeError(err, "load user")
	}

	if err := s.compare([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, domain.ErrInvalidCredential
	}
	return user, nil
}

// PromoteSuperadmin makes the account with email a superadmin. A missing account is not an error.
func (s *AuthService) PromoteSuperadmin(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WithField("email", email).Warn("Bootstrap superadmin account not found")
			return nil
		}
		return storeError(err, "load bootstrap user")
	}
	if user.Role == domain.RoleSuperadmin {
		return nil
	}
	if err := s.users.UpdateRole(ctx, user.ID, domain.RoleSuperadmin); err != nil {
		return storeError(err, "promote bootstrap user")
	}
	s.logger.WithField("user_id", user.ID).Info("Bootstrap account promoted to superadmin")
	return nil
}
