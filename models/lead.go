package models

import (
	"time"
)

// Status is the pipeline-stage lookup table (Lead, Active, Qualified, Lost).
type Status struct {
	ID         uint   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	StatusName string `gorm:"uniqueIndex;not null" json:"status_name"`
}

// Lead is a sales lead. Every lead belongs to exactly one company; only a
// Super Admin may move it to another tenant.
type Lead struct {
	ID    uint   `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Token string `gorm:"uniqueIndex;not null" json:"token"`

	LeadName       string `gorm:"not null;index" json:"lead_name"`
	Email          string `gorm:"index" json:"email"`
	Phone          string `json:"phone"`
	Interest       string `json:"interest"`
	MessageContent string `gorm:"type:text" json:"message_content"`

	StatusID uint   `gorm:"not null;index" json:"-"`
	Status   Status `json:"status,omitempty"`

	CompanyID uint    `gorm:"not null;index" json:"-"`
	Company   Company `json:"company,omitempty"`

	AssignedTo *uint `gorm:"index" json:"-"`

	DateAdded  time.Time  `gorm:"not null" json:"date_added"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	IsDeleted  bool       `gorm:"default:false" json:"-"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LeadActivity is the per-lead audit trail (created, updated, status_change...).
type LeadActivity struct {
	ID     uint `gorm:"primaryKey;autoIncrement:false" json:"id"`
	LeadID uint `gorm:"not null;index" json:"-"`
	UserID uint `gorm:"index" json:"-"`

	ActivityType    string    `gorm:"not null" json:"activity_type"`
	ActivityDetails string    `gorm:"type:text" json:"activity_details"`
	CreatedAt       time.Time `json:"created_at"`
}

// LeadWebhookEvent queues raw inbound lead payloads from external
// integrations until the webhook worker turns them into leads.
type LeadWebhookEvent struct {
	ID      uint   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Source  string `gorm:"not null" json:"source"`
	Payload string `gorm:"type:text;not null" json:"payload"`

	Status      string     `gorm:"default:'pending';index" json:"status"` // pending, processed, failed
	Error       string     `json:"error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
