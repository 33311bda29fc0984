package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tradejournal/internal/domain"
)

// AdminService implements the superadmin console. Self-protection rules are
// enforced by the policy guard before these methods run.
type AdminService struct {
	users  domain.UserRepository
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewAdminService creates a new AdminService
func NewAdminService(users domain.UserRepository, logger logrus.FieldLogger) *AdminService {
	return &AdminService{users: users, logger: logger, now: time.Now}
}

// RoleChange is the body of a role update
type RoleChange struct {
	Role domain.Role `json:"role" validate:"required,oneof=user admin superadmin"`
}

// EmailChange is the body of an email update
type EmailChange struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// ListUsers returns every account with its profile
func (s *AdminService) ListUsers(ctx context.Context) ([]*domain.UserWithProfile, error) {
	users, err := s.users.ListWithProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", domain.ErrUpstream, err)
	}
	if users == nil {
		users = []*domain.UserWithProfile{}
	}
	return users, nil
}

// SetBan bans or unbans target
func (s *AdminService) SetBan(ctx context.Context, actor, target uuid.UUID, ban bool) error {
	var bannedAt *time.Time
	if ban {
		now := s.now().UTC()
		bannedAt = &now
	}
	if err := s.users.SetBannedAt(ctx, target, bannedAt); err != nil {
		return storeError(err, "set ban state")
	}
	s.logger.WithFields(logrus.Fields{"actor": actor, "target": target, "banned": ban}).Info("User ban state changed")
	return nil
}

// ChangeRole sets the role of target
func (s *AdminService) ChangeRole(ctx context.Context, actor, target uuid.UUID, change RoleChange) error {
	if err := validateStruct(&change); err != nil {
		return err
	}
	if err := s.users.UpdateRole(ctx, target, change.Role); err != nil {
		return storeError(err, "update role")
	}
	s.logger.WithFields(logrus.Fields{"actor": actor, "target": target, "role": change.Role}).Info("User role changed")
	return nil
}

// UpdateEmail changes the login email of target
func (s *AdminService) UpdateEmail(ctx context.Context, actor, target uuid.UUID, change EmailChange) error {
	change.Email = strings.TrimSpace(change.Email)
	if err := validateStruct(&change); err != nil {
		return err
	}
	if err := s.users.UpdateEmail(ctx, target, change.Email); err != nil {
		return storeError(err, "update email")
	}
	s.logger.WithFields(logrus.Fields{"actor": actor, "target": target}).Info("User email changed")
	return nil
}

// DeleteUser removes target and everything it owns
func (s *AdminService) DeleteUser(ctx context.Context, actor, target uuid.UUID) error {
	if err := s.users.Delete(ctx, target); err != nil {
		return storeError(err, "delete user")
	}
	s.logger.WithFields(logrus.Fields{"actor": actor, "target": target}).Warn("User deleted")
	return nil
}
