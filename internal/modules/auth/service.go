package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/pkg/jwt"
	"ordertrack/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// pendingLoginTTL bounds the time between the password step and the code.
const pendingLoginTTL = 5 * time.Minute

// Service contains the login flow.
type Service struct {
	users     UserStore
	tokens    tokenIssuer
	twoFactor *TwoFactor
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(users UserStore, tokens tokenIssuer, twoFactor *TwoFactor, log zerolog.Logger) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		twoFactor: twoFactor,
		log:       log.With().Str("component", "auth").Logger(),
		now:       time.Now,
	}
}

// Login checks the password. With two-factor enabled no token is issued;
// the caller must finish with CompleteTwoFactorLogin.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetByLogin(ctx, req.Login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	if user.TwoFactorEnabled {
		pending, err := s.tokens.GeneratePurposeToken(user.ID, jwt.PurposeTwoFactorPending, pendingLoginTTL)
		if err != nil {
			return nil, fmt.Errorf("generate pending token: %w", err)
		}
		return &LoginResult{
			RequiresTwoFactor: true,
			UserID:            user.ID,
			PendingToken:      pending,
			ExpiresIn:         int64(pendingLoginTTL.Seconds()),
		}, nil
	}
	return s.issue(ctx, user)
}

// CompleteTwoFactorLogin checks the second factor for a login whose
// password step issued req.PendingToken.
func (s *Service) CompleteTwoFactorLogin(ctx context.Context, req VerifyTwoFactorRequest) (*LoginResult, error) {
	claims, err := s.tokens.ValidatePurposeToken(req.PendingToken, jwt.PurposeTwoFactorPending)
	if err != nil {
		return nil, ErrPendingLoginInvalid
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	res, err := s.twoFactor.Verify(ctx, user, req.Code)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		s.log.Warn().Int64("user_id", user.ID).Str("method", string(res.Method)).Msg("two-factor verification failed")
		return nil, ErrInvalidTwoFactorCode
	}
	return s.issue(ctx, user)
}

func (s *Service) issue(ctx context.Context, user *domain.User) (*LoginResult, error) {
	token, err := s.tokens.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	if err := s.users.SetPresence(ctx, user.ID, true, s.now()); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record login presence")
	}
	pub := toPublic(user)
	return &LoginResult{
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
		User:      &pub,
	}, nil
}

func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.users.SetPresence(ctx, userID, false, s.now())
}

func (s *Service) Me(ctx context.Context, userID int64) (*UserPublic, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}
	pub := toPublic(user)
	return &pub, nil
}
