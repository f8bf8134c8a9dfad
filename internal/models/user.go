package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the identity store
type User struct {
	ID                  string         `gorm:"primaryKey;size:36" json:"id"`
	Username            string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email               string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash        string         `gorm:"size:255;not null" json:"-"`
	EmailConfirmed      bool           `gorm:"default:false" json:"email_confirmed"`
	ConfirmTokenHash    string         `gorm:"size:64" json:"-"`
	ConfirmTokenExpires *time.Time     `json:"-"`
	Role                string         `gorm:"size:50;default:user" json:"role"`
	LastLogin           *time.Time     `json:"last_login"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }
