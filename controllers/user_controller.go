package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crmpanel/access"
	"crmpanel/middleware"
	"crmpanel/models"
	"crmpanel/utils"
)

type UpdateUserRequest struct {
	FirstName    *string `json:"firstName" validate:"omitempty,min=2,max=100"`
	LastName     *string `json:"lastName" validate:"omitempty,min=2,max=100"`
	Email        *string `json:"email" validate:"omitempty,email"`
	RoleToken    *string `json:"roleToken" validate:"omitempty,max=64"`
	CompanyToken *string `json:"companyToken" validate:"omitempty,max=64"`
	IsActive     *bool   `json:"isActive"`
}

type UserController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewUserController(db *gorm.DB, logger *log.Logger) *UserController {
	return &UserController{
		DB:     db,
		Logger: logger,
	}
}

func userListItem(u *models.User) fiber.Map {
	m := userPayload(u)
	m["isActive"] = u.IsActive
	m["lastLogin"] = u.LastLogin
	m["createdAt"] = u.CreatedAt
	return m
}

// ListRoles returns the role catalog so the admin screens can offer
// role tokens for register and user updates.
func (uc *UserController) ListRoles(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	var roles []models.Role
	if err := uc.DB.Where("is_active = ?", true).
		Order("id ASC").
		Find(&roles).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load roles", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"roles": roles,
	}))
}

// ListUsers is the one global listing: user administration spans tenants,
// so it sits behind the Super Admin gate rather than tenant scoping.
func (uc *UserController) ListUsers(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	var users []models.User
	if err := uc.DB.Preload("Role").Preload("Company").
		Where("is_deleted = ?", false).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load users", err)
	}

	out := make([]fiber.Map, 0, len(users))
	for i := range users {
		out = append(out, userListItem(&users[i]))
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"users": out,
	}))
}

func (uc *UserController) GetUser(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	var user models.User
	err := uc.DB.Preload("Role").Preload("Company").
		Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"user": userListItem(&user),
	}))
}

func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var user models.User
	err := uc.DB.Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Email != nil && *req.Email != user.Email {
		var count int64
		if err := uc.DB.Model(&models.User{}).Where("email = ?", *req.Email).Count(&count).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
		}
		if count > 0 {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered", nil)
		}
		updates["email"] = *req.Email
	}
	if req.RoleToken != nil {
		var role models.Role
		if err := uc.DB.Where("token = ?", *req.RoleToken).First(&role).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown role", nil)
		}
		updates["role_id"] = role.ID
	}
	if req.CompanyToken != nil {
		if *req.CompanyToken == "" {
			updates["company_id"] = nil
		} else {
			var company models.Company
			if err := uc.DB.Where("token = ? AND is_deleted = ?", *req.CompanyToken, false).
				First(&company).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown company", nil)
			}
			updates["company_id"] = company.ID
		}
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Nothing to update", nil)
	}

	if err := uc.DB.Model(&user).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update user", err)
	}

	if err := uc.DB.Preload("Role").Preload("Company").
		Where("id = ?", user.ID).First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"user": userListItem(&user),
	}))
}

// DeleteUser archives, never destroys. The row moves to the vault and
// can be restored or purged from there.
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	// A Super Admin cannot archive their own account
	if c.Get(middleware.HeaderUserToken) == c.Params("token") {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot archive your own account", nil)
	}

	var user models.User
	err := uc.DB.Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if err := uc.DB.Model(&user).Updates(map[string]interface{}{
		"is_deleted":  true,
		"is_active":   false,
		"archived_at": time.Now(),
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to archive user", err)
	}

	return c.JSON(utils.MessageResponse("User archived"))
}
