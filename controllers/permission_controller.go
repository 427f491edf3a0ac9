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

type ReplacePermissionsRequest struct {
	UserToken     string `json:"userId" validate:"required"`
	NavigationIDs []uint `json:"navigationIds" validate:"required"`
}

type PermissionController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewPermissionController(db *gorm.DB, logger *log.Logger) *PermissionController {
	return &PermissionController{
		DB:     db,
		Logger: logger,
	}
}

func (pc *PermissionController) GetPermissions(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	userToken := c.Query("userId")
	if userToken == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "userId is required", nil)
	}

	ids, err := access.GrantedNavigationIDs(pc.DB, userToken)
	if errors.Is(err, access.ErrUserNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load permissions", err)
	}
	if ids == nil {
		ids = []uint{}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"navigationIds": ids,
	}))
}

// ReplacePermissions swaps the user's entire grant set. An empty list is
// a valid request and revokes everything.
func (pc *PermissionController) ReplacePermissions(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	var req ReplacePermissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if req.UserToken == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "userId is required", nil)
	}
	if req.NavigationIDs == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "navigationIds is required", nil)
	}

	if len(req.NavigationIDs) > 0 {
		var count int64
		if err := pc.DB.Model(&models.NavigationItem{}).
			Where("id IN ?", req.NavigationIDs).Count(&count).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
		}
		if count != int64(len(dedupe(req.NavigationIDs))) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown navigation id in request", nil)
		}
	}

	err := access.ReplaceGrants(pc.DB, req.UserToken, dedupe(req.NavigationIDs))
	if errors.Is(err, access.ErrUserNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update permissions", err)
	}

	return c.JSON(utils.MessageResponse("Permissions updated"))
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
