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

type CreateNavigationRequest struct {
	Key       string `json:"key" validate:"required,min=2,max=64"`
	Label     string `json:"label" validate:"required,min=1,max=100"`
	Path      string `json:"path" validate:"required,max=255"`
	IconName  string `json:"iconName" validate:"omitempty,max=64"`
	SortOrder int    `json:"sortOrder"`
	ParentID  *uint  `json:"parentId"`
	IsParent  bool   `json:"isParent"`
}

type UpdateNavigationRequest struct {
	Key       *string `json:"key" validate:"omitempty,min=2,max=64"`
	Label     *string `json:"label" validate:"omitempty,min=1,max=100"`
	Path      *string `json:"path" validate:"omitempty,max=255"`
	IconName  *string `json:"iconName" validate:"omitempty,max=64"`
	SortOrder *int    `json:"sortOrder"`
	ParentID  *uint   `json:"parentId"`
	IsParent  *bool   `json:"isParent"`
}

type NavigationController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewNavigationController(db *gorm.DB, logger *log.Logger) *NavigationController {
	return &NavigationController{
		DB:     db,
		Logger: logger,
	}
}

// GetMenu is public: the dashboard shell asks for its menu before any
// protected call. The user token alone decides what comes back.
func (nc *NavigationController) GetMenu(c *fiber.Ctx) error {
	userToken := c.Query("userToken")
	if userToken == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "userToken is required", nil)
	}

	// Deactivated accounts get the same 404 as unknown tokens so the
	// public endpoint does not reveal which it was.
	var user models.User
	err := nc.DB.Preload("Role").Preload("Company").
		Where("token = ? AND is_deleted = ? AND is_active = ?", userToken, false, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	items, err := access.PermittedNavigation(nc.DB, userToken)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load navigation", err)
	}

	companyToken := ""
	if user.Company != nil {
		companyToken = user.Company.Token
	}
	menu := access.BuildTree(items, access.IsSuperAdmin(user.Role.Token), companyToken)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"menu": menu,
	}))
}

// ListModules returns the flat item list for the admin screen.
func (nc *NavigationController) ListModules(c *fiber.Ctx) error {
	var items []models.NavigationItem
	if err := nc.DB.Order("sort_order ASC, id ASC").Find(&items).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load navigation", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"modules": items,
	}))
}

func (nc *NavigationController) CreateModule(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	var req CreateNavigationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if req.ParentID != nil {
		var parent models.NavigationItem
		if err := nc.DB.First(&parent, *req.ParentID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Parent navigation item does not exist", nil)
		}
		if !parent.IsParent {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Parent navigation item is not a group", nil)
		}
	}

	var count int64
	if err := nc.DB.Model(&models.NavigationItem{}).Where("key = ?", req.Key).Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if count > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Navigation key already exists", nil)
	}

	item := models.NavigationItem{
		Key:       req.Key,
		Label:     req.Label,
		Path:      req.Path,
		IconName:  req.IconName,
		SortOrder: req.SortOrder,
		ParentID:  req.ParentID,
		IsParent:  req.IsParent,
	}

	if err := nc.DB.Transaction(func(tx *gorm.DB) error {
		nextID, err := models.NextID(tx, &models.NavigationItem{})
		if err != nil {
			return err
		}
		item.ID = nextID
		return tx.Create(&item).Error
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create navigation item", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"module": item,
	}))
}

func (nc *NavigationController) UpdateModule(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid navigation id", nil)
	}

	var req UpdateNavigationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var item models.NavigationItem
	if err := nc.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Navigation item not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	updates := map[string]interface{}{}
	if req.Key != nil && *req.Key != item.Key {
		var count int64
		if err := nc.DB.Model(&models.NavigationItem{}).
			Where("key = ?", *req.Key).Count(&count).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
		}
		if count > 0 {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Navigation key already exists", nil)
		}
		updates["key"] = *req.Key
	}
	if req.Label != nil {
		updates["label"] = *req.Label
	}
	if req.Path != nil {
		updates["path"] = *req.Path
	}
	if req.IconName != nil {
		updates["icon_name"] = *req.IconName
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.IsParent != nil {
		if !*req.IsParent {
			var children int64
			if err := nc.DB.Model(&models.NavigationItem{}).
				Where("parent_id = ?", item.ID).Count(&children).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
			}
			if children > 0 {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Navigation item still has children", nil)
			}
		}
		updates["is_parent"] = *req.IsParent
	}
	if req.ParentID != nil {
		var parent models.NavigationItem
		if err := nc.DB.First(&parent, *req.ParentID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Parent navigation item does not exist", nil)
		}
		if !parent.IsParent {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Parent navigation item is not a group", nil)
		}
		// The menu must stay a forest: reject a parent whose ancestor
		// chain leads back to the item being moved.
		if cyclic, err := nc.wouldCycle(item.ID, parent); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
		} else if cyclic {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Navigation item cannot be its own ancestor", nil)
		}
		updates["parent_id"] = *req.ParentID
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Nothing to update", nil)
	}

	if err := nc.DB.Model(&item).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update navigation item", err)
	}

	if err := nc.DB.First(&item, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"module": item,
	}))
}

// wouldCycle walks the proposed parent's ancestor chain and reports
// whether it reaches the item being reparented.
func (nc *NavigationController) wouldCycle(itemID uint, parent models.NavigationItem) (bool, error) {
	seen := map[uint]bool{}
	current := parent
	for {
		if current.ID == itemID {
			return true, nil
		}
		if current.ParentID == nil || seen[current.ID] {
			return false, nil
		}
		seen[current.ID] = true
		if err := nc.DB.First(&current, *current.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
	}
}

// DeleteModule removes a leaf item and its grants. Items with children
// are rejected: callers must delete or reparent the children first.
func (nc *NavigationController) DeleteModule(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid navigation id", nil)
	}

	var item models.NavigationItem
	if err := nc.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Navigation item not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	var children int64
	if err := nc.DB.Model(&models.NavigationItem{}).
		Where("parent_id = ?", item.ID).Count(&children).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if children > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Navigation item still has children", nil)
	}

	if err := nc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("navigation_id = ?", item.ID).
			Delete(&models.NavigationGrant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete navigation item", err)
	}

	return c.JSON(utils.MessageResponse("Navigation item deleted"))
}
