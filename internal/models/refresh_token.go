package models

import "time"

// Revocation reasons recorded on refresh tokens.
const (
	RevokeReasonLogout     = "logout"
	RevokeReasonRotated    = "rotated"
	RevokeReasonReuse      = "reuse_detected"
	RevokeReasonSuperseded = "superseded_by_login"
)

// RefreshToken is the durable record of one issued refresh token. The raw
// token value is only ever returned to the client; the store keys records
// by its SHA-256 hash. Revocation fields are append-only: once RevokedAt is
// set the record is terminal and is never reactivated.
type RefreshToken struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            string     `gorm:"index:idx_refresh_user_device;size:36;not null" json:"user_id"`
	TokenHash         string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	DeviceFingerprint string     `gorm:"index:idx_refresh_user_device;size:255;not null" json:"-"`
	ExpiresAt         time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt         *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason     string     `gorm:"size:50" json:"revoked_reason,omitempty"`
	RevokedByIP       string     `gorm:"size:64" json:"-"`
	ReplacedByTokenID *uint      `gorm:"index" json:"replaced_by_token_id,omitempty"`
	CreatedByIP       string     `gorm:"size:64" json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// Revoked reports whether the token has been explicitly revoked.
func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// Active reports whether the token is usable at the given instant:
// not revoked and not past its expiry.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked() && now.Before(t.ExpiresAt)
}

// Rotated reports whether the token was revoked because a successor replaced it.
func (t *RefreshToken) Rotated() bool {
	return t.Revoked() && t.ReplacedByTokenID != nil
}
