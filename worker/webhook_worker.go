package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"

	"crmpanel/models"
)

// webhookPayload is what external integrations are expected to post.
// companyToken routes the lead to its tenant.
type webhookPayload struct {
	CompanyToken   string `json:"companyToken"`
	LeadName       string `json:"leadName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Interest       string `json:"interest"`
	MessageContent string `json:"messageContent"`
}

type WebhookWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewWebhookWorker(db *gorm.DB, logger *log.Logger) *WebhookWorker {
	return &WebhookWorker{
		DB:     db,
		Logger: logger,
	}
}

func (ww *WebhookWorker) Start(ctx context.Context) {
	ww.Logger.Println("Webhook worker started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ww.Logger.Println("Webhook worker shutting down...")
			return
		case <-ticker.C:
			ww.drainPending()
		}
	}
}

func (ww *WebhookWorker) drainPending() {
	var events []models.LeadWebhookEvent
	if err := ww.DB.Where("status = ?", "pending").
		Order("id ASC").Limit(100).
		Find(&events).Error; err != nil {
		ww.Logger.Printf("Failed to fetch pending webhook events: %v", err)
		return
	}

	for i := range events {
		ww.processEvent(&events[i])
	}
}

func (ww *WebhookWorker) processEvent(event *models.LeadWebhookEvent) {
	lead, err := ww.materialize(event)
	if err != nil {
		ww.Logger.Printf("Webhook event %d failed: %v", event.ID, err)
		if dbErr := ww.DB.Model(event).Updates(map[string]interface{}{
			"status":       "failed",
			"error":        err.Error(),
			"processed_at": time.Now(),
		}).Error; dbErr != nil {
			ww.Logger.Printf("Failed to mark webhook event %d failed: %v", event.ID, dbErr)
		}
		return
	}

	if err := ww.DB.Model(event).Updates(map[string]interface{}{
		"status":       "processed",
		"error":        "",
		"processed_at": time.Now(),
	}).Error; err != nil {
		ww.Logger.Printf("Failed to mark webhook event %d processed: %v", event.ID, err)
		return
	}
	ww.Logger.Printf("Webhook event %d materialized as lead %s", event.ID, lead.Token)
}

func (ww *WebhookWorker) materialize(event *models.LeadWebhookEvent) (*models.Lead, error) {
	var payload webhookPayload
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return nil, err
	}
	if payload.LeadName == "" {
		return nil, errMissingField("leadName")
	}
	if payload.CompanyToken == "" {
		return nil, errMissingField("companyToken")
	}
	if payload.Email != "" {
		if err := checkmail.ValidateFormat(payload.Email); err != nil {
			return nil, err
		}
	}

	var company models.Company
	if err := ww.DB.Where("token = ? AND is_deleted = ?", payload.CompanyToken, false).
		First(&company).Error; err != nil {
		return nil, err
	}

	lead := models.Lead{
		Token:          models.NewToken("lead"),
		LeadName:       payload.LeadName,
		Email:          payload.Email,
		Phone:          payload.Phone,
		Interest:       payload.Interest,
		MessageContent: payload.MessageContent,
		StatusID:       1,
		CompanyID:      company.ID,
		DateAdded:      time.Now(),
		IsActive:       true,
	}

	err := ww.DB.Transaction(func(tx *gorm.DB) error {
		nextID, err := models.NextID(tx, &models.Lead{})
		if err != nil {
			return err
		}
		lead.ID = nextID
		if err := tx.Create(&lead).Error; err != nil {
			return err
		}

		activityID, err := models.NextID(tx, &models.LeadActivity{})
		if err != nil {
			return err
		}
		return tx.Create(&models.LeadActivity{
			ID:              activityID,
			LeadID:          lead.ID,
			ActivityType:    "created",
			ActivityDetails: "Lead received via " + event.Source + " webhook",
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

type errMissingField string

func (e errMissingField) Error() string {
	return "payload is missing required field " + string(e)
}
