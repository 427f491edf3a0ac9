package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"crmpanel/config"
	"crmpanel/models"
)

// RetentionWorker purges vault rows whose archive age exceeds the
// configured retention window. A retention of 0 disables purging; rows
// then stay in the vault until an admin deletes them by hand.
type RetentionWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewRetentionWorker(db *gorm.DB, logger *log.Logger) *RetentionWorker {
	return &RetentionWorker{
		DB:     db,
		Logger: logger,
	}
}

func (rw *RetentionWorker) Start(ctx context.Context) {
	if config.AppConfig.ArchiveRetentionDays <= 0 {
		rw.Logger.Println("Archive retention disabled, retention worker not running")
		return
	}

	rw.Logger.Println("Retention worker started")

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Retention worker shutting down...")
			return
		case <-ticker.C:
			rw.purgeExpired()
		}
	}
}

func (rw *RetentionWorker) purgeExpired() {
	rw.purge(time.Now().AddDate(0, 0, -config.AppConfig.ArchiveRetentionDays))
}

func (rw *RetentionWorker) purge(cutoff time.Time) {
	rw.purgeLeads(cutoff)
	rw.purgeUsers(cutoff)

	// Companies are purged manually from the vault: an expired tenant may
	// still own live rows that need an admin decision first.
}

func (rw *RetentionWorker) purgeLeads(cutoff time.Time) {
	var leads []models.Lead
	if err := rw.DB.Select("id", "token").
		Where("is_deleted = ? AND archived_at IS NOT NULL AND archived_at < ?", true, cutoff).
		Find(&leads).Error; err != nil {
		rw.Logger.Printf("Retention scan for leads failed: %v", err)
		return
	}

	for i := range leads {
		lead := leads[i]
		err := rw.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("lead_id = ?", lead.ID).
				Delete(&models.LeadActivity{}).Error; err != nil {
				return err
			}
			return tx.Unscoped().Delete(&models.Lead{}, lead.ID).Error
		})
		if err != nil {
			rw.Logger.Printf("Failed to purge expired lead %s: %v", lead.Token, err)
			continue
		}
		rw.Logger.Printf("Purged expired lead %s", lead.Token)
	}
}

func (rw *RetentionWorker) purgeUsers(cutoff time.Time) {
	var users []models.User
	if err := rw.DB.Select("id", "token").
		Where("is_deleted = ? AND archived_at IS NOT NULL AND archived_at < ?", true, cutoff).
		Find(&users).Error; err != nil {
		rw.Logger.Printf("Retention scan for users failed: %v", err)
		return
	}

	for i := range users {
		user := users[i]
		err := rw.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ?", user.ID).
				Delete(&models.NavigationGrant{}).Error; err != nil {
				return err
			}
			return tx.Unscoped().Delete(&models.User{}, user.ID).Error
		})
		if err != nil {
			rw.Logger.Printf("Failed to purge expired user %s: %v", user.Token, err)
			continue
		}
		rw.Logger.Printf("Purged expired user %s", user.Token)
	}
}
