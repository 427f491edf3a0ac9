package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crmpanel/models"
	"crmpanel/utils"
)

type StatusController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewStatusController(db *gorm.DB, logger *log.Logger) *StatusController {
	return &StatusController{
		DB:     db,
		Logger: logger,
	}
}

// ListStatuses returns the pipeline stages. The table is seeded lookup
// data, identical for every tenant, so the endpoint is public.
func (sc *StatusController) ListStatuses(c *fiber.Ctx) error {
	var statuses []models.Status
	if err := sc.DB.Order("id ASC").Find(&statuses).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load statuses", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"statuses": statuses,
	}))
}
