package store

import (
	"context"
	"testing"
	"time"

	"github.com/noteguard/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *GormRefreshTokenStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RefreshToken{}))

	return NewGormRefreshTokenStore(db)
}

func newRecord(userID, hash, device string, ttl time.Duration) *models.RefreshToken {
	return &models.RefreshToken{
		UserID:            userID,
		TokenHash:         hash,
		DeviceFingerprint: device,
		ExpiresAt:         time.Now().Add(ttl),
	}
}

func TestInsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := newRecord("user-1", "hash-a", "device-a", time.Hour)
	require.NoError(t, s.Insert(ctx, rec))

	found, err := s.Find(ctx, "hash-a", "device-a")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	assert.Equal(t, "user-1", found.UserID)
	assert.True(t, found.Active(time.Now()))
}

func TestInsert_Conflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newRecord("user-1", "hash-a", "device-a", time.Hour)))

	err := s.Insert(ctx, newRecord("user-2", "hash-a", "device-b", time.Hour))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFind_FingerprintMismatchIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newRecord("user-1", "hash-a", "device-a", time.Hour)))

	// A wrong fingerprint must be indistinguishable from a missing token.
	_, err := s.Find(ctx, "hash-a", "device-b")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Find(ctx, "no-such-hash", "device-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeAndReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := newRecord("user-1", "hash-old", "device-a", time.Hour)
	require.NoError(t, s.Insert(ctx, old))

	replacement := newRecord("user-1", "hash-new", "device-a", time.Hour)
	require.NoError(t, s.RevokeAndReplace(ctx, old, replacement, "10.0.0.1"))

	// Old record is revoked and chained to its successor.
	stored, err := s.Find(ctx, "hash-old", "device-a")
	require.NoError(t, err)
	assert.True(t, stored.Revoked())
	assert.True(t, stored.Rotated())
	require.NotNil(t, stored.ReplacedByTokenID)
	assert.Equal(t, replacement.ID, *stored.ReplacedByTokenID)
	assert.Equal(t, models.RevokeReasonRotated, stored.RevokedReason)

	// Successor is active.
	succ, err := s.Find(ctx, "hash-new", "device-a")
	require.NoError(t, err)
	assert.True(t, succ.Active(time.Now()))
}

func TestRevokeAndReplace_LoserGetsTokenRevoked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := newRecord("user-1", "hash-old", "device-a", time.Hour)
	require.NoError(t, s.Insert(ctx, old))

	// First rotation wins.
	winner := newRecord("user-1", "hash-b", "device-a", time.Hour)
	require.NoError(t, s.RevokeAndReplace(ctx, old, winner, ""))

	// Second rotation of the same old record must lose, and its
	// replacement must not be persisted.
	loser := newRecord("user-1", "hash-c", "device-a", time.Hour)
	err := s.RevokeAndReplace(ctx, old, loser, "")
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = s.Find(ctx, "hash-c", "device-a")
	assert.ErrorIs(t, err, ErrNotFound, "losing replacement must be rolled back")
}

func TestRevoke_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := newRecord("user-1", "hash-a", "device-a", time.Hour)
	require.NoError(t, s.Insert(ctx, rec))

	require.NoError(t, s.Revoke(ctx, rec, models.RevokeReasonLogout, "10.0.0.1"))
	firstRevokedAt := *rec.RevokedAt

	// Second revoke is a no-op, not an error, and does not mutate the
	// original revocation fields.
	require.NoError(t, s.Revoke(ctx, rec, "something-else", "10.0.0.2"))

	stored, err := s.Find(ctx, "hash-a", "device-a")
	require.NoError(t, err)
	assert.Equal(t, models.RevokeReasonLogout, stored.RevokedReason)
	assert.WithinDuration(t, firstRevokedAt, *stored.RevokedAt, time.Second)
}

func TestRevokeActiveForDevice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newRecord("user-1", "hash-a", "device-a", time.Hour)))
	require.NoError(t, s.Insert(ctx, newRecord("user-1", "hash-b", "device-b", time.Hour)))

	require.NoError(t, s.RevokeActiveForDevice(ctx, "user-1", "device-a", models.RevokeReasonSuperseded))

	a, err := s.Find(ctx, "hash-a", "device-a")
	require.NoError(t, err)
	assert.True(t, a.Revoked())

	b, err := s.Find(ctx, "hash-b", "device-b")
	require.NoError(t, err)
	assert.False(t, b.Revoked(), "other devices are untouched")
}

func TestRevokeAllForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newRecord("user-1", "hash-a", "device-a", time.Hour)))
	require.NoError(t, s.Insert(ctx, newRecord("user-1", "hash-b", "device-b", time.Hour)))
	require.NoError(t, s.Insert(ctx, newRecord("user-2", "hash-c", "device-a", time.Hour)))

	revoked, err := s.RevokeAllForUser(ctx, "user-1", models.RevokeReasonReuse)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	count, err := s.CountActiveForUser(ctx, "user-1", time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)

	// The other account keeps its session.
	count, err = s.CountActiveForUser(ctx, "user-2", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCountActiveForUser_ExcludesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newRecord("user-1", "hash-a", "device-a", -time.Minute)))
	require.NoError(t, s.Insert(ctx, newRecord("user-1", "hash-b", "device-b", time.Hour)))

	count, err := s.CountActiveForUser(ctx, "user-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteDead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expired := newRecord("user-1", "hash-a", "device-a", -48*time.Hour)
	require.NoError(t, s.Insert(ctx, expired))

	revoked := newRecord("user-1", "hash-b", "device-b", time.Hour)
	require.NoError(t, s.Insert(ctx, revoked))
	require.NoError(t, s.Revoke(ctx, revoked, models.RevokeReasonLogout, ""))

	live := newRecord("user-1", "hash-c", "device-c", time.Hour)
	require.NoError(t, s.Insert(ctx, live))

	// Cutoff in the past keeps the freshly revoked record; only the long
	// expired one goes.
	deleted, err := s.DeleteDead(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// Cutoff now removes the revoked record too; the live one stays.
	deleted, err = s.DeleteDead(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.Find(ctx, "hash-c", "device-c")
	assert.NoError(t, err)
}
