package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/pkg/jwt"
	"ordertrack/internal/repository"
)

// Identity is the verified caller, resolved from the live user record.
type Identity struct {
	UserID      int64
	Role        domain.UserRole
	DisplayName string
	CreatedAt   time.Time
}

// Viewer converts the identity into the input of access policies.
func (i *Identity) Viewer() access.Viewer {
	return access.Viewer{ID: i.UserID, Role: i.Role, CreatedAt: i.CreatedAt}
}

type subjectLoader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Verifier turns a bearer credential into an Identity. The account is
// reloaded on every call, so deactivation and role changes apply to the
// next request without waiting for token expiry.
type Verifier struct {
	tokens tokenParser
	users  subjectLoader
}

func NewVerifier(tokens tokenParser, users subjectLoader) *Verifier {
	return &Verifier{tokens: tokens, users: users}
}

func (v *Verifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrMissingCredential
	}

	claims, err := v.tokens.ValidateToken(credential)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	user, err := v.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	return &Identity{
		UserID:      user.ID,
		Role:        user.Role,
		DisplayName: user.DisplayName(),
		CreatedAt:   user.CreatedAt,
	}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Anything else yields "".
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// HandshakeCredential reads the socket credential: the ?token= query
// parameter first, then the Authorization header.
func HandshakeCredential(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return BearerToken(r.Header.Get("Authorization"))
}

// Actor returns the identity as the author of a change.
func (i *Identity) Actor() domain.Actor {
	return domain.Actor{ID: i.UserID, Name: i.DisplayName, Role: i.Role}
}
