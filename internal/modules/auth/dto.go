package auth

import (
	"time"

	"ordertrack/internal/domain"
)

type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// VerifyTwoFactorRequest finishes a login. The pending token from the
// password step identifies the user.
type VerifyTwoFactorRequest struct {
	PendingToken string `json:"pendingToken" binding:"required"`
	Code         string `json:"code" binding:"required"`
}

type CodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type UserPublic struct {
	ID               int64           `json:"id"`
	Username         string          `json:"username"`
	Email            string          `json:"email"`
	FullName         string          `json:"full_name"`
	Role             domain.UserRole `json:"role"`
	TwoFactorEnabled bool            `json:"two_factor_enabled"`
	CreatedAt        time.Time       `json:"created_at"`
}

func toPublic(u *domain.User) UserPublic {
	return UserPublic{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		FullName:         u.FullName,
		Role:             u.Role,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

// LoginResult is either a full session or a pending second factor.
type LoginResult struct {
	RequiresTwoFactor bool        `json:"requiresTwoFactor"`
	UserID            int64       `json:"userId,omitempty"`
	PendingToken      string      `json:"pendingToken,omitempty"`
	Token             string      `json:"token,omitempty"`
	ExpiresIn         int64       `json:"expires_in,omitempty"`
	User              *UserPublic `json:"user,omitempty"`
}
