package services

import (
	"context"
	"errors"
	"time"

	"github.com/noteguard/backend/internal/models"
	"github.com/noteguard/backend/internal/store"
	"github.com/noteguard/backend/internal/token"
	"github.com/noteguard/backend/pkg/logger"
)

// AuthResponse is returned by every session operation that may establish
// a session. Register returns it with empty tokens: no session exists
// until the email is confirmed.
type AuthResponse struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	UserName              string    `json:"userName"`
	Email                 string    `json:"email"`
}

// SessionService orchestrates the token lifecycle: it consults the
// identity store for account state, asks the issuer to mint tokens, and
// rotates refresh token records through the store. All collaborators are
// constructor-supplied; there is no ambient state.
type SessionService struct {
	identity   IdentityStore
	tokens     store.RefreshTokenStore
	issuer     *token.Issuer
	mailer     ConfirmationMailer
	refreshTTL time.Duration

	now func() time.Time
}

func NewSessionService(identity IdentityStore, tokens store.RefreshTokenStore, issuer *token.Issuer, mailer ConfirmationMailer, refreshTTL time.Duration) *SessionService {
	return &SessionService{
		identity:   identity,
		tokens:     tokens,
		issuer:     issuer,
		mailer:     mailer,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Register creates an unconfirmed account and sends the confirmation
// email. The returned response carries no tokens: unconfirmed accounts
// cannot log in.
func (s *SessionService) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	user, confirmToken, err := s.identity.CreateAccount(ctx, username, email, password)
	if err != nil {
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.SendConfirmation(ctx, user, confirmToken); err != nil {
			// The account exists and the token is stored; delivery failure
			// must not fail registration.
			logger.Warn().Err(err).Str("user_id", user.ID).Msg("confirmation email not sent")
		}
	}

	return &AuthResponse{
		UserName: user.Username,
		Email:    user.Email,
	}, nil
}

// Login verifies credentials and establishes a session on the given
// device. Unknown email and wrong password yield the same error kind so
// accounts cannot be enumerated.
func (s *SessionService) Login(ctx context.Context, email, password, deviceFingerprint, clientIP string) (*AuthResponse, error) {
	user, err := s.identity.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.EmailConfirmed {
		return nil, ErrEmailNotConfirmed
	}
	if !s.identity.VerifyPassword(user, password) {
		return nil, ErrInvalidCredentials
	}

	// Keep at most one active record per (account, device): a fresh login
	// on a device supersedes whatever session it still had.
	if err := s.tokens.RevokeActiveForDevice(ctx, user.ID, deviceFingerprint, models.RevokeReasonSuperseded); err != nil {
		return nil, storageErr(err)
	}

	resp, rec, err := s.mintSession(user, deviceFingerprint, clientIP)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Insert(ctx, rec); err != nil {
		return nil, storageErr(err)
	}

	if err := s.identity.TouchLastLogin(ctx, user.ID); err != nil {
		logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	logger.Info().Str("user_id", user.ID).Str("ip", clientIP).Msg("login")
	return resp, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// successor is issued in one atomic step. Presenting an already-rotated
// token, or losing the rotation race, is treated as suspected theft:
// every active session of the account is revoked before the error is
// surfaced.
func (s *SessionService) Refresh(ctx context.Context, refreshToken, deviceFingerprint, clientIP string) (*AuthResponse, error) {
	rec, err := s.tokens.Find(ctx, token.HashToken(refreshToken), deviceFingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, storageErr(err)
	}

	if !rec.Active(s.now()) {
		if rec.Rotated() {
			return nil, s.handleReuse(ctx, rec, clientIP)
		}
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := s.identity.FindByID(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}

	resp, replacement, err := s.mintSession(user, deviceFingerprint, clientIP)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.RevokeAndReplace(ctx, rec, replacement, clientIP); err != nil {
		if errors.Is(err, store.ErrTokenRevoked) {
			return nil, s.handleReuse(ctx, rec, clientIP)
		}
		return nil, storageErr(err)
	}

	logger.Info().Str("user_id", user.ID).Str("ip", clientIP).Msg("refresh token rotated")
	return resp, nil
}

// Logout revokes the presented refresh token. Unknown or already-dead
// tokens succeed silently; logout is idempotent.
func (s *SessionService) Logout(ctx context.Context, refreshToken, deviceFingerprint, clientIP string) error {
	rec, err := s.tokens.Find(ctx, token.HashToken(refreshToken), deviceFingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return storageErr(err)
	}
	if !rec.Active(s.now()) {
		return nil
	}

	if err := s.tokens.Revoke(ctx, rec, models.RevokeReasonLogout, clientIP); err != nil {
		return storageErr(err)
	}
	logger.Info().Str("user_id", rec.UserID).Str("ip", clientIP).Msg("logout")
	return nil
}

// ConfirmEmail validates the confirmation token for the account.
func (s *SessionService) ConfirmEmail(ctx context.Context, userID, confirmToken string) error {
	return s.identity.ConfirmEmail(ctx, userID, confirmToken)
}

// handleReuse is the defensive response to a dead token being presented
// again: the refresh token was likely stolen, so every remaining active
// session of the account is revoked.
func (s *SessionService) handleReuse(ctx context.Context, rec *models.RefreshToken, clientIP string) error {
	revoked, err := s.tokens.RevokeAllForUser(ctx, rec.UserID, models.RevokeReasonReuse)
	if err != nil {
		logger.Error().Err(err).Str("user_id", rec.UserID).Msg("failed to revoke sessions after token reuse")
	} else {
		logger.Warn().
			Str("user_id", rec.UserID).
			Str("ip", clientIP).
			Int64("sessions_revoked", revoked).
			Msg("refresh token reuse detected")
	}
	return ErrReuseDetected
}

// mintSession builds one access token plus the matching refresh token
// record. The record is not yet persisted.
func (s *SessionService) mintSession(user *models.User, deviceFingerprint, clientIP string) (*AuthResponse, *models.RefreshToken, error) {
	accessToken, accessExpires, err := s.issuer.IssueAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, nil, err
	}

	refreshValue, refreshHash, err := token.NewOpaqueToken()
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	rec := &models.RefreshToken{
		UserID:            user.ID,
		TokenHash:         refreshHash,
		DeviceFingerprint: deviceFingerprint,
		ExpiresAt:         now.Add(s.refreshTTL),
		CreatedByIP:       clientIP,
	}

	resp := &AuthResponse{
		AccessToken:           accessToken,
		RefreshToken:          refreshValue,
		AccessTokenExpiresAt:  accessExpires,
		RefreshTokenExpiresAt: rec.ExpiresAt,
		UserName:              user.Username,
		Email:                 user.Email,
	}
	return resp, rec, nil
}
