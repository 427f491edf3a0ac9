package models

import (
	"time"
)

// Company is the unit of tenant isolation: leads and company-scoped views
// are filtered by the caller's company unless they hold the Super Admin role.
type Company struct {
	ID    uint   `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Token string `gorm:"uniqueIndex;not null" json:"token"`

	CompanyName    string `gorm:"not null;index" json:"company_name"`
	Industry       string `json:"industry"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	WebsiteURL     string `json:"website_url"`
	SocialURL      string `json:"social_url"`
	LogoURL        string `json:"logo_url"`
	// CompanyProfile is the short tagline, CompanyInfo the long description.
	CompanyProfile string `json:"company_profile"`
	CompanyInfo    string `gorm:"type:text" json:"company_info"`

	IsDeleted  bool       `gorm:"default:false" json:"-"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
