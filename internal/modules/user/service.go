// Package user is the admin-only account management surface.
package user

import (
	"context"
	"errors"
	"strings"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/pkg/apperr"
	"ordertrack/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	users UserRepository
	log   zerolog.Logger
}

func NewService(users UserRepository, log zerolog.Logger) *Service {
	return &Service{users: users, log: log.With().Str("component", "user").Logger()}
}

// Register creates an account. Only administrators register users.
func (s *Service) Register(ctx context.Context, id *auth.Identity, req RegisterRequest) (*domain.User, error) {
	if !access.CanManageUsers(id.Viewer()) {
		return nil, ErrForbidden
	}
	if !req.Role.Valid() {
		return nil, apperr.InvalidField("role", "unknown role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	s.log.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Int64("by", id.UserID).Msg("user registered")
	return u, nil
}

func (s *Service) List(ctx context.Context, id *auth.Identity, q ListQuery) ([]domain.User, error) {
	if !access.CanManageUsers(id.Viewer()) {
		return nil, ErrForbidden
	}
	if q.Role != "" && !q.Role.Valid() {
		return nil, apperr.InvalidField("role", "unknown role")
	}
	return s.users.List(ctx, repository.UserFilter{Role: q.Role, ActiveOnly: q.ActiveOnly})
}

// Online lists active users currently marked online.
func (s *Service) Online(ctx context.Context, id *auth.Identity) ([]domain.User, error) {
	if !access.CanManageUsers(id.Viewer()) {
		return nil, ErrForbidden
	}
	return s.users.List(ctx, repository.UserFilter{ActiveOnly: true, OnlineOnly: true})
}

// SetActive toggles the account. The change takes effect on the user's
// next request, because every verification re-reads the account.
func (s *Service) SetActive(ctx context.Context, id *auth.Identity, userID int64, active bool) (*domain.User, error) {
	if !access.CanManageUsers(id.Viewer()) {
		return nil, ErrForbidden
	}
	if userID == id.UserID && !active {
		return nil, ErrCannotDisableSelf
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return nil, mapErr(err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// Delete removes a non-admin account.
func (s *Service) Delete(ctx context.Context, id *auth.Identity, userID int64) error {
	if !access.CanManageUsers(id.Viewer()) {
		return ErrForbidden
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return mapErr(err)
	}
	if u.Role == domain.RoleAdmin {
		return ErrCannotDeleteAdmin
	}
	return mapErr(s.users.Delete(ctx, userID))
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
