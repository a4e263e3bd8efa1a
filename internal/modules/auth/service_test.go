package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/pkg/jwt"
	"ordertrack/internal/repository"
	"ordertrack/internal/testutil"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	users     *repository.UserRepository
	tokens    *jwt.Service
	twoFactor *TwoFactor
	service   *Service
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	tokens := jwt.New("auth-test-secret", time.Hour)
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	tf := NewTwoFactor(users, "OrderTrack", "pepper")
	tf.now = func() time.Time { return now }
	svc := NewService(users, tokens, tf, zerolog.Nop())
	svc.now = func() time.Time { return now }

	return &fixture{db: db, users: users, tokens: tokens, twoFactor: tf, service: svc, now: now}
}

// enableTwoFactor runs setup and enable and returns the secret and backup codes.
func (f *fixture) enableTwoFactor(t *testing.T, userID int64) (string, []string) {
	t.Helper()
	ctx := context.Background()
	setup, err := f.twoFactor.Setup(ctx, userID)
	require.NoError(t, err)
	require.Len(t, setup.BackupCodes, backupCodeCount)

	code, err := totp.GenerateCode(setup.Secret, f.now)
	require.NoError(t, err)
	require.NoError(t, f.twoFactor.Enable(ctx, userID, code))
	return setup.Secret, setup.BackupCodes
}

func TestLogin_WithoutTwoFactor(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)

	res, err := f.service.Login(context.Background(), LoginRequest{Login: "ayse@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.False(t, res.RequiresTwoFactor)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, u.ID, res.User.ID)

	claims, err := f.tokens.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	got, err := f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)

	require.NoError(t, f.service.Logout(context.Background(), u.ID))
	got, err = f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "mehmet", domain.RoleFactoryWorker)
	ctx := context.Background()

	_, err := f.service.Login(ctx, LoginRequest{Login: "mehmet", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.service.Login(ctx, LoginRequest{Login: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.users.SetActive(ctx, u.ID, false))
	_, err = f.service.Login(ctx, LoginRequest{Login: "mehmet", Password: "password123"})
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestLogin_TwoFactorFlow(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	secret, _ := f.enableTwoFactor(t, u.ID)
	ctx := context.Background()

	res, err := f.service.Login(ctx, LoginRequest{Login: "admin", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFactor)
	assert.Equal(t, u.ID, res.UserID)
	assert.Empty(t, res.Token)
	require.NotEmpty(t, res.PendingToken)
	pending := res.PendingToken

	// The pending token is not a session.
	_, err = f.tokens.ValidateToken(pending)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalid)

	_, err = f.service.CompleteTwoFactorLogin(ctx, VerifyTwoFactorRequest{PendingToken: pending, Code: "000000"})
	assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)

	code, err := totp.GenerateCode(secret, f.now)
	require.NoError(t, err)
	res, err = f.service.CompleteTwoFactorLogin(ctx, VerifyTwoFactorRequest{PendingToken: pending, Code: code})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, u.ID, res.User.ID)
}

func TestCompleteTwoFactorLogin_RequiresPasswordStep(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	secret, _ := f.enableTwoFactor(t, u.ID)
	ctx := context.Background()
	code, err := totp.GenerateCode(secret, f.now)
	require.NoError(t, err)

	// A valid code alone is not enough.
	_, err = f.service.CompleteTwoFactorLogin(ctx, VerifyTwoFactorRequest{Code: code})
	assert.ErrorIs(t, err, ErrPendingLoginInvalid)

	// A session token cannot stand in for the pending one.
	session, err := f.tokens.GenerateToken(u.ID, string(u.Role))
	require.NoError(t, err)
	_, err = f.service.CompleteTwoFactorLogin(ctx, VerifyTwoFactorRequest{PendingToken: session, Code: code})
	assert.ErrorIs(t, err, ErrPendingLoginInvalid)

	// Neither can a pending token signed with another secret.
	forged, err := jwt.New("other-secret", time.Hour).GeneratePurposeToken(u.ID, jwt.PurposeTwoFactorPending, time.Minute)
	require.NoError(t, err)
	_, err = f.service.CompleteTwoFactorLogin(ctx, VerifyTwoFactorRequest{PendingToken: forged, Code: code})
	assert.ErrorIs(t, err, ErrPendingLoginInvalid)
}

func TestTwoFactor_BackupCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)
	_, codes := f.enableTwoFactor(t, u.ID)
	ctx := context.Background()

	user, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)

	first, err := f.twoFactor.Verify(ctx, user, codes[0])
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, MethodBackupCode, first.Method)
	assert.Contains(t, first.Message, "9 remaining")

	second, err := f.twoFactor.Verify(ctx, user, codes[0])
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, MethodBackupCode, second.Method)

	// Lower case input is normalised.
	third, err := f.twoFactor.Verify(ctx, user, " "+strings.ToLower(codes[1])+" ")
	require.NoError(t, err)
	assert.True(t, third.Success)
}

func TestTwoFactor_VerifyResults(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)
	ctx := context.Background()

	res, err := f.twoFactor.Verify(ctx, u, "123456")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not enabled")

	f.enableTwoFactor(t, u.ID)
	user, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)

	res, err = f.twoFactor.Verify(ctx, user, "12ab")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.Method)
}

func TestTwoFactor_SetupEnableDisable(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)
	ctx := context.Background()

	assert.ErrorIs(t, f.twoFactor.Enable(ctx, u.ID, "123456"), ErrTwoFactorNotSetUp)
	assert.ErrorIs(t, f.twoFactor.Disable(ctx, u.ID, "123456"), ErrTwoFactorNotEnabled)

	secret, _ := f.enableTwoFactor(t, u.ID)
	_, err := f.twoFactor.Setup(ctx, u.ID)
	assert.ErrorIs(t, err, ErrTwoFactorAlreadyEnabled)

	assert.ErrorIs(t, f.twoFactor.Disable(ctx, u.ID, "000000"), ErrInvalidTwoFactorCode)

	code, err := totp.GenerateCode(secret, f.now)
	require.NoError(t, err)
	require.NoError(t, f.twoFactor.Disable(ctx, u.ID, code))

	user, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, user.TwoFactorEnabled)
	assert.Empty(t, user.TwoFactorSecret)
	left, err := f.users.CountUnusedBackupCodes(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, left)
}
