package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"ordertrack/internal/domain"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	backupCodeCount    = 10
	backupCodeLength   = 8
	backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type TwoFactorMethod string

const (
	MethodTOTP       TwoFactorMethod = "totp"
	MethodBackupCode TwoFactorMethod = "backup_code"
)

// TwoFactorResult reports the outcome of a code check. A wrong code is a
// result, not an error; errors are reserved for storage failures.
type TwoFactorResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Method  TwoFactorMethod `json:"method,omitempty"`
}

type SetupResult struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauth_url"`
	BackupCodes []string `json:"backup_codes"`
}

type TwoFactor struct {
	users  TwoFactorStore
	issuer string
	pepper string
	now    func() time.Time
}

func NewTwoFactor(users TwoFactorStore, issuer, pepper string) *TwoFactor {
	return &TwoFactor{users: users, issuer: issuer, pepper: pepper, now: time.Now}
}

// Verify accepts a 6-digit TOTP code or an unused 8-character backup
// code. A backup code is consumed by the same call that accepts it.
func (tf *TwoFactor) Verify(ctx context.Context, user *domain.User, code string) (TwoFactorResult, error) {
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return TwoFactorResult{Message: "Two-factor authentication is not enabled"}, nil
	}

	code = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
	switch len(code) {
	case 6:
		if tf.validTOTP(user.TwoFactorSecret, code) {
			return TwoFactorResult{Success: true, Message: "Code accepted", Method: MethodTOTP}, nil
		}
		return TwoFactorResult{Message: "Invalid authentication code", Method: MethodTOTP}, nil
	case backupCodeLength:
		ok, err := tf.users.ConsumeBackupCode(ctx, user.ID, tf.hash(code), tf.now())
		if err != nil {
			return TwoFactorResult{}, fmt.Errorf("consume backup code: %w", err)
		}
		if !ok {
			return TwoFactorResult{Message: "Invalid or already used backup code", Method: MethodBackupCode}, nil
		}
		left, err := tf.users.CountUnusedBackupCodes(ctx, user.ID)
		if err != nil {
			return TwoFactorResult{}, fmt.Errorf("count backup codes: %w", err)
		}
		return TwoFactorResult{
			Success: true,
			Message: fmt.Sprintf("Backup code accepted, %d remaining", left),
			Method:  MethodBackupCode,
		}, nil
	default:
		return TwoFactorResult{Message: "Code must be 6 digits or an 8-character backup code"}, nil
	}
}

// Setup issues a fresh secret and backup codes. Two-factor stays
// disabled until Enable confirms a code generated from the secret.
func (tf *TwoFactor) Setup(ctx context.Context, userID int64) (*SetupResult, error) {
	user, err := tf.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: tf.issuer, AccountName: user.Username})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}

	codes := make([]string, backupCodeCount)
	hashes := make([]string, backupCodeCount)
	for i := range codes {
		c, err := randomCode(backupCodeLength)
		if err != nil {
			return nil, err
		}
		codes[i] = c
		hashes[i] = tf.hash(c)
	}

	if err := tf.users.SetTwoFactor(ctx, user.ID, false, key.Secret()); err != nil {
		return nil, err
	}
	if err := tf.users.ReplaceBackupCodes(ctx, user.ID, hashes); err != nil {
		return nil, err
	}
	return &SetupResult{Secret: key.Secret(), OTPAuthURL: key.URL(), BackupCodes: codes}, nil
}

func (tf *TwoFactor) Enable(ctx context.Context, userID int64, code string) error {
	user, err := tf.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == "" {
		return ErrTwoFactorNotSetUp
	}
	if !tf.validTOTP(user.TwoFactorSecret, strings.TrimSpace(code)) {
		return ErrInvalidTwoFactorCode
	}
	return tf.users.SetTwoFactor(ctx, user.ID, true, user.TwoFactorSecret)
}

// Disable turns two-factor off after a valid code and drops all backup codes.
func (tf *TwoFactor) Disable(ctx context.Context, userID int64, code string) error {
	user, err := tf.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	res, err := tf.Verify(ctx, user, code)
	if err != nil {
		return err
	}
	if !res.Success {
		return ErrInvalidTwoFactorCode
	}
	if err := tf.users.SetTwoFactor(ctx, user.ID, false, ""); err != nil {
		return err
	}
	return tf.users.ReplaceBackupCodes(ctx, user.ID, nil)
}

func (tf *TwoFactor) validTOTP(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, tf.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (tf *TwoFactor) hash(code string) string {
	sum := sha256.Sum256([]byte(code + tf.pepper))
	return hex.EncodeToString(sum[:])
}

func randomCode(n int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate backup code: %w", err)
		}
		sb.WriteByte(backupCodeAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}
