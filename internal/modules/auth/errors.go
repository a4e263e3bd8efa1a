package auth

import "ordertrack/internal/pkg/apperr"

// Verification failures. Each carries a distinct code so socket clients
// can tell an expired session from a revoked account.
var (
	ErrMissingCredential = apperr.Unauthenticated("MISSING_CREDENTIAL", "Authentication token is required")
	ErrInvalidToken      = apperr.Unauthenticated("INVALID_TOKEN", "Invalid token")
	ErrTokenExpired      = apperr.Unauthenticated("TOKEN_EXPIRED", "Token has expired")
	ErrUnknownSubject    = apperr.Unauthenticated("UNKNOWN_SUBJECT", "User no longer exists")
	ErrInactiveAccount   = apperr.Unauthenticated("ACCOUNT_INACTIVE", "Account is deactivated")
)

var (
	ErrInvalidCredentials      = apperr.Unauthenticated("INVALID_CREDENTIALS", "Username or password is incorrect")
	ErrInvalidTwoFactorCode    = apperr.Unauthenticated("INVALID_TWO_FACTOR_CODE", "Two-factor code is invalid")
	ErrPendingLoginInvalid     = apperr.Unauthenticated("PENDING_LOGIN_INVALID", "Sign in with your password again")
	ErrTwoFactorNotEnabled     = apperr.New(apperr.KindValidation, "TWO_FACTOR_NOT_ENABLED", "Two-factor authentication is not enabled")
	ErrTwoFactorNotSetUp       = apperr.New(apperr.KindValidation, "TWO_FACTOR_NOT_SET_UP", "Run two-factor setup first")
	ErrTwoFactorAlreadyEnabled = apperr.Conflict("TWO_FACTOR_ALREADY_ENABLED", "Two-factor authentication is already enabled")
)
