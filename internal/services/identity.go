package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/noteguard/backend/internal/models"
	"github.com/noteguard/backend/internal/token"
	"github.com/noteguard/backend/internal/utils"
	"gorm.io/gorm"
)

const defaultRole = "user"

// confirmTokenTTL bounds how long an email confirmation link stays valid.
const confirmTokenTTL = 24 * time.Hour

// IdentityStore is the credential store capability consumed by the
// SessionService. Any compliant store satisfies it; password hashing is
// its concern, not the session layer's.
type IdentityStore interface {
	// CreateAccount creates an unconfirmed account with the default role
	// and returns it together with a one-time email confirmation token.
	CreateAccount(ctx context.Context, username, email, password string) (*models.User, string, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// VerifyPassword reports whether the password matches the account.
	VerifyPassword(user *models.User, password string) bool
	// ConfirmEmail validates the confirmation token and marks the account
	// confirmed.
	ConfirmEmail(ctx context.Context, userID, confirmToken string) error
	// TouchLastLogin records a successful login time.
	TouchLastLogin(ctx context.Context, userID string) error
}

// IdentityService is the gorm-backed identity store: bcrypt password
// hashes, unique username/email, and hashed single-use confirmation
// tokens stored on the account row.
type IdentityService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{db: db, now: time.Now}
}

func (s *IdentityService) CreateAccount(ctx context.Context, username, email, password string) (*models.User, string, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	confirmToken, confirmHash, err := token.NewOpaqueToken()
	if err != nil {
		return nil, "", err
	}
	confirmExpires := s.now().Add(confirmTokenTTL)

	user := models.User{
		ID:                  uuid.NewString(),
		Username:            username,
		Email:               email,
		PasswordHash:        hash,
		EmailConfirmed:      false,
		ConfirmTokenHash:    confirmHash,
		ConfirmTokenExpires: &confirmExpires,
		Role:                defaultRole,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrDuplicateAccount
		}
		return nil, "", storageErr(err)
	}

	return &user, confirmToken, nil
}

func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storageErr(err)
	}
	return &user, nil
}

func (s *IdentityService) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storageErr(err)
	}
	return &user, nil
}

func (s *IdentityService) VerifyPassword(user *models.User, password string) bool {
	return utils.CheckPassword(password, user.PasswordHash)
}

func (s *IdentityService) ConfirmEmail(ctx context.Context, userID, confirmToken string) error {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailConfirmed {
		// Re-confirming is harmless.
		return nil
	}

	if user.ConfirmTokenHash == "" || token.HashToken(confirmToken) != user.ConfirmTokenHash {
		return ErrInvalidToken
	}
	if user.ConfirmTokenExpires != nil && s.now().After(*user.ConfirmTokenExpires) {
		return ErrInvalidToken
	}

	err = s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"email_confirmed":       true,
		"confirm_token_hash":    "",
		"confirm_token_expires": nil,
	}).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// TouchLastLogin records a successful login time. Failures are not fatal
// to the login itself.
func (s *IdentityService) TouchLastLogin(ctx context.Context, userID string) error {
	now := s.now()
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login", now).Error
}
