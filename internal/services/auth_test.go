package services

import (
	"context"
	"testing"
	"time"

	"github.com/noteguard/backend/internal/config"
	"github.com/noteguard/backend/internal/models"
	"github.com/noteguard/backend/internal/store"
	"github.com/noteguard/backend/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingMailer captures confirmation tokens instead of sending mail.
type recordingMailer struct {
	lastUserID string
	lastToken  string
}

func (m *recordingMailer) SendConfirmation(_ context.Context, user *models.User, confirmToken string) error {
	m.lastUserID = user.ID
	m.lastToken = confirmToken
	return nil
}

type authFixture struct {
	db       *gorm.DB
	sessions *SessionService
	tokens   store.RefreshTokenStore
	mailer   *recordingMailer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Note{}))

	issuer, err := token.NewIssuer(&config.JWTConfig{
		Secret:                "test-secret-key-for-testing",
		Issuer:                "noteguard-test",
		Audience:              "noteguard-test-clients",
		AccessTokenTTLMinutes: 5,
	})
	require.NoError(t, err)

	mailer := &recordingMailer{}
	tokens := store.NewGormRefreshTokenStore(db)
	sessions := NewSessionService(NewIdentityService(db), tokens, issuer, mailer, 7*24*time.Hour)

	return &authFixture{db: db, sessions: sessions, tokens: tokens, mailer: mailer}
}

// registerAndConfirm creates a ready-to-login account.
func (f *authFixture) registerAndConfirm(t *testing.T, username, email, password string) {
	t.Helper()
	ctx := context.Background()

	resp, err := f.sessions.Register(ctx, username, email, password)
	require.NoError(t, err)
	assert.Empty(t, resp.AccessToken, "no session before email confirmation")
	assert.Empty(t, resp.RefreshToken)

	require.NoError(t, f.sessions.ConfirmEmail(ctx, f.mailer.lastUserID, f.mailer.lastToken))
}

func (f *authFixture) activeSessions(t *testing.T, userID string) int64 {
	t.Helper()
	count, err := f.tokens.CountActiveForUser(context.Background(), userID, time.Now())
	require.NoError(t, err)
	return count
}

func TestRegister_DuplicateAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Register(ctx, "alice", "alice@example.com", "password-123")
	require.NoError(t, err)

	_, err = f.sessions.Register(ctx, "alice2", "alice@example.com", "password-123")
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	_, err = f.sessions.Register(ctx, "alice", "other@example.com", "password-123")
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestLogin_RequiresConfirmedEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Register(ctx, "alice", "alice@example.com", "password-123")
	require.NoError(t, err)

	_, err = f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "10.0.0.1")
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)

	require.NoError(t, f.sessions.ConfirmEmail(ctx, f.mailer.lastUserID, f.mailer.lastToken))

	resp, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "alice", resp.UserName)
	assert.Equal(t, "alice@example.com", resp.Email)
	assert.True(t, resp.RefreshTokenExpiresAt.After(resp.AccessTokenExpiresAt))
}

func TestLogin_NoAccountEnumeration(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	// Wrong password and unknown email must be indistinguishable.
	_, wrongPassErr := f.sessions.Login(ctx, "alice@example.com", "not-the-password", "device-a", "")
	_, unknownErr := f.sessions.Login(ctx, "nobody@example.com", "password-123", "device-a", "")

	assert.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.Equal(t, wrongPassErr, unknownErr)
}

func TestLogin_SupersedesSameDeviceSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	first, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)
	_, err = f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)

	// One active record per (account, device): the first token is dead.
	assert.Equal(t, int64(1), f.activeSessions(t, f.mailer.lastUserID))
	_, err = f.sessions.Refresh(ctx, first.RefreshToken, "device-a", "")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	login, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "10.0.0.1")
	require.NoError(t, err)

	refreshed, err := f.sessions.Refresh(ctx, login.RefreshToken, "device-a", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.RefreshToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken, "rotation mints a fresh value")

	// Still exactly one active session on the device.
	assert.Equal(t, int64(1), f.activeSessions(t, f.mailer.lastUserID))
}

func TestRefresh_WrongDeviceFingerprint(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	login, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)

	// A valid token presented with another device's fingerprint behaves
	// like an unknown token.
	_, err = f.sessions.Refresh(ctx, login.RefreshToken, "device-b", "")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRefresh_TokenChain(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	login, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)
	tokenA := login.RefreshToken

	respB, err := f.sessions.Refresh(ctx, tokenA, "device-a", "")
	require.NoError(t, err)
	tokenB := respB.RefreshToken

	// Presenting the rotated tokenA again signals theft.
	_, err = f.sessions.Refresh(ctx, tokenA, "device-a", "")
	assert.ErrorIs(t, err, ErrReuseDetected)

	// The defensive revocation killed tokenB too; a new login is needed.
	_, err = f.sessions.Refresh(ctx, tokenB, "device-a", "")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	assert.Zero(t, f.activeSessions(t, f.mailer.lastUserID))
}

func TestRefresh_ChainSurvivesWithoutReuse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	login, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)

	// A well-behaved client can rotate indefinitely.
	current := login.RefreshToken
	for i := 0; i < 3; i++ {
		resp, err := f.sessions.Refresh(ctx, current, "device-a", "")
		require.NoError(t, err)
		current = resp.RefreshToken
	}
	assert.Equal(t, int64(1), f.activeSessions(t, f.mailer.lastUserID))
}

func TestRefresh_ReuseRevokesOtherDevices(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	loginA, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)
	loginB, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-b", "")
	require.NoError(t, err)

	_, err = f.sessions.Refresh(ctx, loginA.RefreshToken, "device-a", "")
	require.NoError(t, err)

	// Replay of the dead device-a token nukes every session, device-b
	// included: suspected full compromise.
	_, err = f.sessions.Refresh(ctx, loginA.RefreshToken, "device-a", "")
	require.ErrorIs(t, err, ErrReuseDetected)

	assert.Zero(t, f.activeSessions(t, f.mailer.lastUserID))
	_, err = f.sessions.Refresh(ctx, loginB.RefreshToken, "device-b", "")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	login, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)

	// Jump past the refresh TTL.
	f.sessions.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, err = f.sessions.Refresh(ctx, login.RefreshToken, "device-a", "")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRefresh_RaceLoserGetsReuseDetected(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	login, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)

	// Simulate two refresh attempts that both read the token as active:
	// the second rotation commits against an already-revoked record and
	// must surface ReuseDetected, with the defensive revocation applied.
	rec, err := f.tokens.Find(ctx, token.HashToken(login.RefreshToken), "device-a")
	require.NoError(t, err)

	_, err = f.sessions.Refresh(ctx, login.RefreshToken, "device-a", "")
	require.NoError(t, err)

	replacement := &models.RefreshToken{
		UserID:            rec.UserID,
		TokenHash:         token.HashToken("late-replacement"),
		DeviceFingerprint: "device-a",
		ExpiresAt:         time.Now().Add(time.Hour),
	}
	raceRec := *rec // the loser's stale view: not yet revoked
	err = f.tokens.RevokeAndReplace(ctx, &raceRec, replacement, "")
	assert.ErrorIs(t, err, store.ErrTokenRevoked, "exactly one rotation may win")
}

func TestLogout_Idempotent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	login, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, f.sessions.Logout(ctx, login.RefreshToken, "device-a", "10.0.0.1"))
	assert.Zero(t, f.activeSessions(t, f.mailer.lastUserID))

	// Second logout with the same token, and logout of garbage, both
	// succeed silently.
	assert.NoError(t, f.sessions.Logout(ctx, login.RefreshToken, "device-a", "10.0.0.1"))
	assert.NoError(t, f.sessions.Logout(ctx, "never-issued", "device-a", "10.0.0.1"))
}

func TestLogout_ThenRefreshFails(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerAndConfirm(t, "alice", "alice@example.com", "password-123")

	login, err := f.sessions.Login(ctx, "alice@example.com", "password-123", "device-a", "")
	require.NoError(t, err)
	require.NoError(t, f.sessions.Logout(ctx, login.RefreshToken, "device-a", ""))

	// Revoked by logout, not rotation: plain invalid, no reuse alarm.
	_, err = f.sessions.Refresh(ctx, login.RefreshToken, "device-a", "")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestConfirmEmail_Failures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Register(ctx, "alice", "alice@example.com", "password-123")
	require.NoError(t, err)

	err = f.sessions.ConfirmEmail(ctx, "no-such-user", f.mailer.lastToken)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	err = f.sessions.ConfirmEmail(ctx, f.mailer.lastUserID, "wrong-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The right token still works afterwards.
	assert.NoError(t, f.sessions.ConfirmEmail(ctx, f.mailer.lastUserID, f.mailer.lastToken))

	// Re-confirming is a no-op.
	assert.NoError(t, f.sessions.ConfirmEmail(ctx, f.mailer.lastUserID, f.mailer.lastToken))
}
