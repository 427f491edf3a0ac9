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

type CreateCompanyRequest struct {
	CompanyName    string `json:"companyName" validate:"required,min=2,max=200"`
	Industry       string `json:"industry" validate:"omitempty,max=100"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone" validate:"omitempty,max=32"`
	Address        string `json:"address" validate:"omitempty,max=500"`
	WebsiteURL     string `json:"websiteUrl" validate:"omitempty,url"`
	SocialURL      string `json:"socialUrl" validate:"omitempty,url"`
	LogoURL        string `json:"logoUrl" validate:"omitempty,url"`
	CompanyProfile string `json:"companyProfile" validate:"omitempty,max=500"`
	CompanyInfo    string `json:"companyInfo"`
}

type UpdateCompanyRequest struct {
	CompanyName    *string `json:"companyName" validate:"omitempty,min=2,max=200"`
	Industry       *string `json:"industry" validate:"omitempty,max=100"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Address        *string `json:"address" validate:"omitempty,max=500"`
	WebsiteURL     *string `json:"websiteUrl" validate:"omitempty,url"`
	SocialURL      *string `json:"socialUrl" validate:"omitempty,url"`
	LogoURL        *string `json:"logoUrl" validate:"omitempty,url"`
	CompanyProfile *string `json:"companyProfile" validate:"omitempty,max=500"`
	CompanyInfo    *string `json:"companyInfo"`
}

type CompanyController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCompanyController(db *gorm.DB, logger *log.Logger) *CompanyController {
	return &CompanyController{
		DB:     db,
		Logger: logger,
	}
}

// ListCompanies is tenant-scoped: a Super Admin sees every tenant, anyone
// else sees exactly their own company as a one-element list.
func (cc *CompanyController) ListCompanies(c *fiber.Ctx) error {
	roleToken := c.Get(middleware.HeaderUserRoleToken)
	companyToken := c.Get(middleware.HeaderCompanyToken)

	query := cc.DB.Where("is_deleted = ?", false).Order("id ASC")
	if !access.IsSuperAdmin(roleToken) {
		if companyToken == "" {
			return c.JSON(utils.SuccessResponse(fiber.Map{
				"companies": []models.Company{},
			}))
		}
		query = query.Where("token = ?", companyToken)
	}

	var companies []models.Company
	if err := query.Find(&companies).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load companies", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"companies": companies,
	}))
}

func (cc *CompanyController) GetCompany(c *fiber.Ctx) error {
	var company models.Company
	err := cc.DB.Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if !access.CanAccessCompany(c.Get(middleware.HeaderUserRoleToken),
		c.Get(middleware.HeaderCompanyToken), company.Token) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"company": company,
	}))
}

// CreateCompany provisions a tenant, so only a Super Admin may call it.
func (cc *CompanyController) CreateCompany(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	var req CreateCompanyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var count int64
	if err := cc.DB.Model(&models.Company{}).
		Where("company_name = ? AND is_deleted = ?", req.CompanyName, false).
		Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if count > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Company name already exists", nil)
	}

	company := models.Company{
		Token:          models.NewToken("comp"),
		CompanyName:    req.CompanyName,
		Industry:       req.Industry,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		WebsiteURL:     req.WebsiteURL,
		SocialURL:      req.SocialURL,
		LogoURL:        req.LogoURL,
		CompanyProfile: req.CompanyProfile,
		CompanyInfo:    req.CompanyInfo,
	}

	if err := cc.DB.Transaction(func(tx *gorm.DB) error {
		nextID, err := models.NextID(tx, &models.Company{})
		if err != nil {
			return err
		}
		company.ID = nextID
		return tx.Create(&company).Error
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create company", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"company": company,
	}))
}

func (cc *CompanyController) UpdateCompany(c *fiber.Ctx) error {
	var req UpdateCompanyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var company models.Company
	err := cc.DB.Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if !access.CanAccessCompany(c.Get(middleware.HeaderUserRoleToken),
		c.Get(middleware.HeaderCompanyToken), company.Token) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied", nil)
	}

	updates := map[string]interface{}{}
	if req.CompanyName != nil {
		updates["company_name"] = *req.CompanyName
	}
	if req.Industry != nil {
		updates["industry"] = *req.Industry
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.WebsiteURL != nil {
		updates["website_url"] = *req.WebsiteURL
	}
	if req.SocialURL != nil {
		updates["social_url"] = *req.SocialURL
	}
	if req.LogoURL != nil {
		updates["logo_url"] = *req.LogoURL
	}
	if req.CompanyProfile != nil {
		updates["company_profile"] = *req.CompanyProfile
	}
	if req.CompanyInfo != nil {
		updates["company_info"] = *req.CompanyInfo
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Nothing to update", nil)
	}

	if err := cc.DB.Model(&company).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update company", err)
	}

	if err := cc.DB.Where("id = ?", company.ID).First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"company": company,
	}))
}

// DeleteCompany archives the tenant. Its users keep their rows but lose
// access: the session middleware refuses members of archived tenants.
func (cc *CompanyController) DeleteCompany(c *fiber.Ctx) error {
	if !access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Super Admin access required", nil)
	}

	var company models.Company
	err := cc.DB.Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if err := cc.DB.Model(&company).Updates(map[string]interface{}{
		"is_deleted":  true,
		"archived_at": time.Now(),
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to archive company", err)
	}

	return c.JSON(utils.MessageResponse("Company archived"))
}
