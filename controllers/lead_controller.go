package controller

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crmpanel/access"
	"crmpanel/middleware"
	"crmpanel/models"
	"crmpanel/utils"
)

type CreateLeadRequest struct {
	LeadName       string `json:"leadName" validate:"required,min=2,max=200"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone" validate:"omitempty,max=32"`
	Interest       string `json:"interest" validate:"omitempty,max=200"`
	MessageContent string `json:"messageContent"`
	StatusID       *uint  `json:"statusId"`
	CompanyToken   string `json:"companyToken" validate:"omitempty,max=64"`
}

type UpdateLeadRequest struct {
	LeadName       *string `json:"leadName" validate:"omitempty,min=2,max=200"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Interest       *string `json:"interest" validate:"omitempty,max=200"`
	MessageContent *string `json:"messageContent"`
	StatusID       *uint   `json:"statusId"`
	IsActive       *bool   `json:"isActive"`
	CompanyToken   *string `json:"companyToken" validate:"omitempty,max=64"`
}

type VerifyLeadEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	WHOIS bool   `json:"whois"`
}

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Hub    *LeadHub
}

func NewLeadController(db *gorm.DB, logger *log.Logger, hub *LeadHub) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
		Hub:    hub,
	}
}

// scopedLeads applies tenant isolation: Super Admins see every tenant's
// leads, everyone else only their own company's.
func (lc *LeadController) scopedLeads(c *fiber.Ctx) (*gorm.DB, error) {
	query := lc.DB.Model(&models.Lead{}).Where("leads.is_deleted = ?", false)
	if access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
		return query, nil
	}
	companyToken := c.Get(middleware.HeaderCompanyToken)
	if companyToken == "" {
		return nil, errors.New("no tenant")
	}
	return query.
		Joins("JOIN companies ON companies.id = leads.company_id").
		Where("companies.token = ?", companyToken), nil
}

func (lc *LeadController) ListLeads(c *fiber.Ctx) error {
	query, err := lc.scopedLeads(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "No company assigned", nil)
	}

	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("leads.lead_name LIKE ? OR leads.email LIKE ?", like, like)
	}
	if statusID := c.QueryInt("statusId"); statusID > 0 {
		query = query.Where("leads.status_id = ?", statusID)
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}

	var leads []models.Lead
	if err := query.Preload("Status").Preload("Company").
		Order("leads.date_added DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load leads", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Success: true,
		Data:    leads,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	var lead models.Lead
	err := lc.DB.Preload("Status").Preload("Company").
		Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if !access.CanAccessCompany(c.Get(middleware.HeaderUserRoleToken),
		c.Get(middleware.HeaderCompanyToken), lead.Company.Token) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied", nil)
	}

	var activities []models.LeadActivity
	if err := lc.DB.Where("lead_id = ?", lead.ID).
		Order("created_at DESC").Limit(50).
		Find(&activities).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load activities", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"lead":       lead,
		"activities": activities,
	}))
}

func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	actor := c.Locals("user").(*models.User)

	var req CreateLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if req.Email != "" {
		if err := checkmail.ValidateFormat(req.Email); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead email address", nil)
		}
	}

	// Non-admins always create into their own tenant; a companyToken in
	// the body only means something to a Super Admin.
	var company models.Company
	actorRole := c.Get(middleware.HeaderUserRoleToken)
	if access.IsSuperAdmin(actorRole) {
		if req.CompanyToken == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "companyToken is required", nil)
		}
		if err := lc.DB.Where("token = ? AND is_deleted = ?", req.CompanyToken, false).
			First(&company).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown company", nil)
		}
	} else {
		if actor.CompanyID == nil {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "No company assigned", nil)
		}
		if err := lc.DB.Where("id = ? AND is_deleted = ?", *actor.CompanyID, false).
			First(&company).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "No company assigned", nil)
		}
	}

	statusID := uint(1)
	if req.StatusID != nil {
		var status models.Status
		if err := lc.DB.First(&status, *req.StatusID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown status", nil)
		}
		statusID = status.ID
	}

	lead := models.Lead{
		Token:          models.NewToken("lead"),
		LeadName:       req.LeadName,
		Email:          req.Email,
		Phone:          req.Phone,
		Interest:       req.Interest,
		MessageContent: req.MessageContent,
		StatusID:       statusID,
		CompanyID:      company.ID,
		DateAdded:      time.Now(),
		IsActive:       true,
	}

	if err := lc.DB.Transaction(func(tx *gorm.DB) error {
		nextID, err := models.NextID(tx, &models.Lead{})
		if err != nil {
			return err
		}
		lead.ID = nextID
		if err := tx.Create(&lead).Error; err != nil {
			return err
		}
		return recordActivity(tx, lead.ID, actor.ID, "created",
			fmt.Sprintf("Lead %q created", lead.LeadName))
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	lc.Hub.Broadcast(LeadEvent{
		Type:         "created",
		LeadToken:    lead.Token,
		LeadName:     lead.LeadName,
		CompanyToken: company.Token,
		OccurredAt:   time.Now(),
	})

	lead.Company = company
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"lead": lead,
	}))
}

func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	actor := c.Locals("user").(*models.User)

	var req UpdateLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var lead models.Lead
	err := lc.DB.Preload("Company").
		Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	actorRole := c.Get(middleware.HeaderUserRoleToken)
	if !access.CanAccessCompany(actorRole,
		c.Get(middleware.HeaderCompanyToken), lead.Company.Token) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied", nil)
	}

	updates := map[string]interface{}{}
	var notes []string
	if req.LeadName != nil {
		updates["lead_name"] = *req.LeadName
	}
	if req.Email != nil {
		if *req.Email != "" {
			if err := checkmail.ValidateFormat(*req.Email); err != nil {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead email address", nil)
			}
		}
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Interest != nil {
		updates["interest"] = *req.Interest
	}
	if req.MessageContent != nil {
		updates["message_content"] = *req.MessageContent
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.StatusID != nil && *req.StatusID != lead.StatusID {
		var status models.Status
		if err := lc.DB.First(&status, *req.StatusID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown status", nil)
		}
		updates["status_id"] = status.ID
		notes = append(notes, fmt.Sprintf("Status changed to %s", status.StatusName))
	}

	// Only a Super Admin may move a lead between tenants. For anyone else
	// the field is ignored and the lead stays where it is.
	if req.CompanyToken != nil && access.IsSuperAdmin(actorRole) &&
		*req.CompanyToken != lead.Company.Token {
		var target models.Company
		if err := lc.DB.Where("token = ? AND is_deleted = ?", *req.CompanyToken, false).
			First(&target).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown company", nil)
		}
		updates["company_id"] = target.ID
		notes = append(notes, fmt.Sprintf("Moved to company %s", target.CompanyName))
	}

	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Nothing to update", nil)
	}

	details := "Lead updated"
	for _, n := range notes {
		details += "; " + n
	}
	if err := lc.DB.Transaction(func(tx *gorm.DB) error {
		// Update through a fresh statement: running Updates on the
		// preloaded struct lets the Company association write company_id
		// back to its old value.
		if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		return recordActivity(tx, lead.ID, actor.ID, "updated", details)
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}

	if err := lc.DB.Preload("Status").Preload("Company").
		Where("id = ?", lead.ID).First(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	lc.Hub.Broadcast(LeadEvent{
		Type:         "updated",
		LeadToken:    lead.Token,
		LeadName:     lead.LeadName,
		CompanyToken: lead.Company.Token,
		OccurredAt:   time.Now(),
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"lead": lead,
	}))
}

func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	actor := c.Locals("user").(*models.User)

	var lead models.Lead
	err := lc.DB.Preload("Company").
		Where("token = ? AND is_deleted = ?", c.Params("token"), false).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if !access.CanAccessCompany(c.Get(middleware.HeaderUserRoleToken),
		c.Get(middleware.HeaderCompanyToken), lead.Company.Token) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied", nil)
	}

	if err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).
			Updates(map[string]interface{}{
				"is_deleted":  true,
				"is_active":   false,
				"archived_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		return recordActivity(tx, lead.ID, actor.ID, "archived", "Lead archived")
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to archive lead", err)
	}

	lc.Hub.Broadcast(LeadEvent{
		Type:         "archived",
		LeadToken:    lead.Token,
		LeadName:     lead.LeadName,
		CompanyToken: lead.Company.Token,
		OccurredAt:   time.Now(),
	})

	return c.JSON(utils.MessageResponse("Lead archived"))
}

// VerifyLeadEmail runs the full deliverability check before a rep commits
// to a lead: syntax, typo suggestions, disposable domains, MX, WHOIS.
func (lc *LeadController) VerifyLeadEmail(c *fiber.Ctx) error {
	var req VerifyLeadEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	result, err := utils.VerifyEmailAddress(req.Email, req.WHOIS)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Verification failed", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"verification": result,
	}))
}

func recordActivity(tx *gorm.DB, leadID, userID uint, activityType, details string) error {
	nextID, err := models.NextID(tx, &models.LeadActivity{})
	if err != nil {
		return err
	}
	return tx.Create(&models.LeadActivity{
		ID:              nextID,
		LeadID:          leadID,
		UserID:          userID,
		ActivityType:    activityType,
		ActivityDetails: details,
	}).Error
}
