package store

import (
	"context"
	"errors"
	"time"

	"github.com/noteguard/backend/internal/models"
)

var (
	// ErrConflict is returned by Insert when a record with the same token
	// value already exists.
	ErrConflict = errors.New("refresh token already exists")
	// ErrNotFound is returned when no record matches both the token value
	// and the device fingerprint. A fingerprint mismatch is reported
	// identically, so probing fingerprints leaks nothing about token
	// existence.
	ErrNotFound = errors.New("refresh token not found")
	// ErrTokenRevoked is returned by RevokeAndReplace when the old record
	// was no longer active at commit time: a concurrent rotation won.
	ErrTokenRevoked = errors.New("refresh token already revoked")
)

// RefreshTokenStore is the durable store for refresh token records.
//
// RevokeAndReplace is the linchpin: revocation of the old record and
// insertion of its successor become visible together or not at all, and
// of any number of concurrent calls presenting the same old record
// exactly one succeeds. The guarantee must come from the storage layer
// (a conditional update inside a transaction), never from an in-process
// lock, because multiple service instances may share one database.
type RefreshTokenStore interface {
	// Insert stores a new record. ErrConflict if the token value is taken.
	Insert(ctx context.Context, rec *models.RefreshToken) error

	// Find returns the record matching token hash and device fingerprint,
	// active or not. ErrNotFound if either does not match.
	Find(ctx context.Context, tokenHash, deviceFingerprint string) (*models.RefreshToken, error)

	// RevokeAndReplace atomically revokes old (tagging it with the new
	// record's identity) and inserts the replacement. ErrTokenRevoked if
	// old was already revoked when the transaction committed; in that case
	// the replacement is not inserted.
	RevokeAndReplace(ctx context.Context, old, replacement *models.RefreshToken, ip string) error

	// Revoke marks the record revoked with the given reason. Revoking an
	// already-revoked record is a no-op, not an error.
	Revoke(ctx context.Context, rec *models.RefreshToken, reason, ip string) error

	// RevokeActiveForDevice revokes any active record for the given
	// account and device fingerprint.
	RevokeActiveForDevice(ctx context.Context, userID, deviceFingerprint, reason string) error

	// RevokeAllForUser revokes every active record belonging to the
	// account and returns how many were revoked.
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)

	// CountActiveForUser reports how many records of the account are
	// active at the given instant.
	CountActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// DeleteDead physically removes revoked or expired records whose
	// expiry precedes the cutoff. Housekeeping only; the session lifecycle
	// never deletes.
	DeleteDead(ctx context.Context, cutoff time.Time) (int64, error)
}
