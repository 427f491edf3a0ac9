package models

import (
	"time"
)

// User represents an account in the admin panel. The numeric ID is a
// storage-layer concept and never leaves the server; clients only ever
// see the opaque Token.
type User struct {
	ID    uint   `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Token string `gorm:"uniqueIndex;not null" json:"token"`

	FirstName    string `gorm:"not null" json:"first_name"`
	LastName     string `gorm:"not null" json:"last_name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	RoleID uint `gorm:"not null;index" json:"-"`
	Role   Role `json:"role,omitempty"`

	// A user may be provisioned before being attached to a tenant.
	CompanyID *uint    `gorm:"index" json:"-"`
	Company   *Company `json:"company,omitempty"`

	IsActive  bool `gorm:"default:true" json:"is_active"`
	IsDeleted bool `gorm:"default:false" json:"-"`

	// Password reset flow
	ResetOTP          string     `json:"-"`
	ResetOTPExpiresAt *time.Time `json:"-"`

	LastLogin  *time.Time `json:"last_login"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Role groups a named permission set. One role, recognized by a fixed
// well-known token, is the Super Admin role that bypasses tenant filtering.
type Role struct {
	ID    uint   `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Token string `gorm:"uniqueIndex;not null" json:"token"`

	RoleName    string `gorm:"uniqueIndex;not null" json:"role_name"`
	Permissions string `gorm:"type:text" json:"permissions"` // JSON-encoded permission strings
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
