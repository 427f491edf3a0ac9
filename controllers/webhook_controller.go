package controller

import (
	"crypto/subtle"
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crmpanel/config"
	"crmpanel/models"
	"crmpanel/utils"
)

type WebhookController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewWebhookController(db *gorm.DB, logger *log.Logger) *WebhookController {
	return &WebhookController{
		DB:     db,
		Logger: logger,
	}
}

// IntakeLead accepts a raw lead payload from an external form or
// integration. The payload is queued as-is; the webhook worker validates
// and materializes it so a bad payload never blocks the producer.
func (wc *WebhookController) IntakeLead(c *fiber.Ctx) error {
	secret := config.AppConfig.WebhookSecret
	if secret == "" {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Webhook intake is not configured", nil)
	}
	provided := c.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid webhook secret", nil)
	}

	body := c.Body()
	if len(body) == 0 || !json.Valid(body) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Body must be a JSON object", nil)
	}

	source := c.Query("source")
	if source == "" {
		source = "webhook"
	}

	event := models.LeadWebhookEvent{
		Source:  source,
		Payload: string(body),
		Status:  "pending",
	}
	if err := wc.DB.Transaction(func(tx *gorm.DB) error {
		nextID, err := models.NextID(tx, &models.LeadWebhookEvent{})
		if err != nil {
			return err
		}
		event.ID = nextID
		return tx.Create(&event).Error
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to queue event", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(fiber.Map{
		"event_id": event.ID,
	}))
}
