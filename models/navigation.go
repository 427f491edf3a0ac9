package models

import (
	"time"
)

// NavigationItem is one entry in the application's menu. Items form a
// forest: a parent item (IsParent) is a dropdown header, a leaf is a link.
// Navigation ids are small admin-managed integers and are the one
// identifier family exposed to clients directly.
type NavigationItem struct {
	ID uint `gorm:"primaryKey;autoIncrement:false" json:"id"`

	Key       string `gorm:"uniqueIndex;not null" json:"key"`
	Label     string `gorm:"not null" json:"label"`
	Path      string `gorm:"not null" json:"path"`
	IconName  string `json:"icon_name"`
	SortOrder int    `gorm:"default:0" json:"sort_order"`

	ParentID *uint `gorm:"index" json:"parent_id"`
	IsParent bool  `gorm:"default:false" json:"is_parent"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NavigationGrant pairs a non-Super-Admin user with a navigation item they
// may see. Super Admins bypass this table entirely.
type NavigationGrant struct {
	UserID       uint `gorm:"primaryKey" json:"user_id"`
	NavigationID uint `gorm:"primaryKey" json:"navigation_id"`
}
