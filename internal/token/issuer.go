package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/noteguard/backend/internal/config"
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

var ErrInvalidAccessToken = errors.New("invalid or expired access token")

// Issuer mints signed access tokens and opaque refresh token values.
// The signing key is fixed at construction and shared read-only across
// requests. Issuance is a pure function of its inputs and the clock.
type Issuer struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration

	// now is the clock source, overridable in tests.
	now func() time.Time
}

func NewIssuer(cfg *config.JWTConfig) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, config.ErrMissingJWTSecret
	}
	return &Issuer{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		accessTTL: cfg.AccessTokenTTL(),
		now:       time.Now,
	}, nil
}

// IssueAccessToken creates a signed HS256 token asserting the given
// identity. It has no side effects; compromise is bounded by the short TTL.
func (i *Issuer) IssueAccessToken(userID, email, name string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.accessTTL)

	claims := AccessClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies signature, algorithm, issuer, audience and
// expiry, returning the claims on success.
func (i *Issuer) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// AccessTokenTTL returns the configured access token lifetime.
func (i *Issuer) AccessTokenTTL() time.Duration { return i.accessTTL }

// NewOpaqueToken generates an unpredictable single-use credential value:
// 32 random bytes (256 bits) hex encoded, plus the SHA-256 hash under
// which stores key the value. Only the hash is ever persisted. Used for
// refresh tokens and email confirmation tokens.
func NewOpaqueToken() (value string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	value = hex.EncodeToString(buf)
	return value, HashToken(value), nil
}

// HashToken returns the hex SHA-256 digest of an opaque token value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
