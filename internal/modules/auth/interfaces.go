package auth

import (
	"context"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/pkg/jwt"
)

// UserStore is the subset of the user repository auth needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	SetPresence(ctx context.Context, id int64, online bool, at time.Time) error
}

// TwoFactorStore persists secrets and backup codes.
type TwoFactorStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	SetTwoFactor(ctx context.Context, id int64, enabled bool, secret string) error
	ReplaceBackupCodes(ctx context.Context, userID int64, hashes []string) error
	ConsumeBackupCode(ctx context.Context, userID int64, hash string, at time.Time) (bool, error)
	CountUnusedBackupCodes(ctx context.Context, userID int64) (int64, error)
}

type tokenIssuer interface {
	GenerateToken(userID int64, role string) (string, error)
	GeneratePurposeToken(userID int64, purpose string, ttl time.Duration) (string, error)
	ValidatePurposeToken(token, purpose string) (*jwt.Claims, error)
	TTL() time.Duration
}

type tokenParser interface {
	ValidateToken(token string) (*jwt.Claims, error)
}
