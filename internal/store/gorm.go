package store

import (
	"context"
	"errors"
	"time"

	"github.com/noteguard/backend/internal/models"
	"gorm.io/gorm"
)

// GormRefreshTokenStore implements RefreshTokenStore on a gorm database.
type GormRefreshTokenStore struct {
	db *gorm.DB

	// now is the clock source, overridable in tests.
	now func() time.Time
}

func NewGormRefreshTokenStore(db *gorm.DB) *GormRefreshTokenStore {
	return &GormRefreshTokenStore{db: db, now: time.Now}
}

func (s *GormRefreshTokenStore) Insert(ctx context.Context, rec *models.RefreshToken) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *GormRefreshTokenStore) Find(ctx context.Context, tokenHash, deviceFingerprint string) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND device_fingerprint = ?", tokenHash, deviceFingerprint).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// RevokeAndReplace inserts the replacement and revokes the old record in
// one transaction. The revocation is a conditional update guarded by
// `revoked_at IS NULL`; zero rows affected means a concurrent rotation
// already claimed the token, the transaction rolls back, and
// ErrTokenRevoked is returned.
func (s *GormRefreshTokenStore) RevokeAndReplace(ctx context.Context, old, replacement *models.RefreshToken, ip string) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(replacement).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflict
			}
			return err
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", old.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"revoked_reason":       models.RevokeReasonRotated,
				"revoked_by_ip":        ip,
				"replaced_by_token_id": replacement.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenRevoked
		}

		old.RevokedAt = &now
		old.RevokedReason = models.RevokeReasonRotated
		old.RevokedByIP = ip
		old.ReplacedByTokenID = &replacement.ID
		return nil
	})
}

func (s *GormRefreshTokenStore) Revoke(ctx context.Context, rec *models.RefreshToken, reason, ip string) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", rec.ID).
		Updates(map[string]interface{}{
			"revoked_at":     now,
			"revoked_reason": reason,
			"revoked_by_ip":  ip,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		rec.RevokedAt = &now
		rec.RevokedReason = reason
		rec.RevokedByIP = ip
	}
	return nil
}

func (s *GormRefreshTokenStore) RevokeActiveForDevice(ctx context.Context, userID, deviceFingerprint, reason string) error {
	now := s.now()
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND device_fingerprint = ? AND revoked_at IS NULL AND expires_at > ?",
			userID, deviceFingerprint, now).
		Updates(map[string]interface{}{
			"revoked_at":     now,
			"revoked_reason": reason,
		}).Error
}

func (s *GormRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Updates(map[string]interface{}{
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (s *GormRefreshTokenStore) CountActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Count(&count).Error
	return count, err
}

func (s *GormRefreshTokenStore) DeleteDead(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
