package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crmpanel/access"
	"crmpanel/middleware"
	"crmpanel/models"
	"crmpanel/utils"
)

type VaultActionRequest struct {
	Token  string `json:"token" validate:"required"`
	Action string `json:"action" validate:"required,oneof=restore permanent_delete"`
}

// ArchiveController is the vault: archived rows live here until they are
// restored or purged. State machine per row: Active -> Archived ->
// {Active, Purged}.
type ArchiveController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewArchiveController(db *gorm.DB, logger *log.Logger) *ArchiveController {
	return &ArchiveController{
		DB:     db,
		Logger: logger,
	}
}

func (ac *ArchiveController) requireSuperAdmin(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}
	return nil
}

func (ac *ArchiveController) ListArchived(c *fiber.Ctx) error {
	if err := ac.requireSuperAdmin(c); err != nil {
		return err
	}

	switch c.Params("entity") {
	case "users":
		var users []models.User
		if err := ac.DB.Preload("Role").Preload("Company").
			Where("is_deleted = ?", true).
			Order("archived_at DESC").
			Find(&users).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load archive", err)
		}
		out := make([]fiber.Map, 0, len(users))
		for i := range users {
			item := userListItem(&users[i])
			item["archivedAt"] = users[i].ArchivedAt
			out = append(out, item)
		}
		return c.JSON(utils.SuccessResponse(fiber.Map{"users": out}))
	case "leads":
		var leads []models.Lead
		if err := ac.DB.Preload("Status").Preload("Company").
			Where("is_deleted = ?", true).
			Order("archived_at DESC").
			Find(&leads).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load archive", err)
		}
		return c.JSON(utils.SuccessResponse(fiber.Map{"leads": leads}))
	case "companies":
		var companies []models.Company
		if err := ac.DB.Where("is_deleted = ?", true).
			Order("archived_at DESC").
			Find(&companies).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load archive", err)
		}
		return c.JSON(utils.SuccessResponse(fiber.Map{"companies": companies}))
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown archive entity", nil)
	}
}

// HandleAction restores or permanently deletes one archived row. A token
// survives archive and restore unchanged; only a purge destroys it.
func (ac *ArchiveController) HandleAction(c *fiber.Ctx) error {
	if err := ac.requireSuperAdmin(c); err != nil {
		return err
	}

	var req VaultActionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	switch c.Params("entity") {
	case "users":
		return ac.actOnUser(c, req)
	case "leads":
		return ac.actOnLead(c, req)
	case "companies":
		return ac.actOnCompany(c, req)
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown archive entity", nil)
	}
}

func (ac *ArchiveController) actOnUser(c *fiber.Ctx, req VaultActionRequest) error {
	var user models.User
	err := ac.DB.Where("token = ? AND is_deleted = ?", req.Token, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Archived user not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if req.Action == "restore" {
		if err := ac.DB.Model(&user).Updates(map[string]interface{}{
			"is_deleted":  false,
			"is_active":   true,
			"archived_at": nil,
		}).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to restore user", err)
		}
		return c.JSON(utils.MessageResponse("User restored"))
	}

	// Purge removes the row and everything keyed on its internal id
	if err := ac.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).
			Delete(&models.NavigationGrant{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&user).Error
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete user", err)
	}
	return c.JSON(utils.MessageResponse("User permanently deleted"))
}

func (ac *ArchiveController) actOnLead(c *fiber.Ctx, req VaultActionRequest) error {
	var lead models.Lead
	err := ac.DB.Where("token = ? AND is_deleted = ?", req.Token, true).First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Archived lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if req.Action == "restore" {
		if err := ac.DB.Model(&lead).Updates(map[string]interface{}{
			"is_deleted":  false,
			"is_active":   true,
			"archived_at": nil,
		}).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to restore lead", err)
		}
		return c.JSON(utils.MessageResponse("Lead restored"))
	}

	if err := ac.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lead_id = ?", lead.ID).
			Delete(&models.LeadActivity{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&lead).Error
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}
	return c.JSON(utils.MessageResponse("Lead permanently deleted"))
}

func (ac *ArchiveController) actOnCompany(c *fiber.Ctx, req VaultActionRequest) error {
	var company models.Company
	err := ac.DB.Where("token = ? AND is_deleted = ?", req.Token, true).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Archived company not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if req.Action == "restore" {
		if err := ac.DB.Model(&company).Updates(map[string]interface{}{
			"is_deleted":  false,
			"archived_at": nil,
		}).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to restore company", err)
		}
		return c.JSON(utils.MessageResponse("Company restored"))
	}

	// A tenant cannot be purged while rows still reference it; archive or
	// purge its users and leads first.
	var users, leads int64
	if err := ac.DB.Model(&models.User{}).
		Where("company_id = ?", company.ID).Count(&users).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if err := ac.DB.Model(&models.Lead{}).
		Where("company_id = ?", company.ID).Count(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if users > 0 || leads > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Company still has users or leads", nil)
	}

	if err := ac.DB.Unscoped().Delete(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete company", err)
	}
	return c.JSON(utils.MessageResponse("Company permanently deleted"))
}
