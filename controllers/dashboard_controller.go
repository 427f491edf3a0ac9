package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crmpanel/access"
	"crmpanel/middleware"
	"crmpanel/models"
	"crmpanel/utils"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

// GetStats returns the landing-page counters, scoped the same way the
// entity listings are.
func (dc *DashboardController) GetStats(c *fiber.Ctx) error {
	superAdmin := access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken))
	companyToken := c.Get(middleware.HeaderCompanyToken)
	if !superAdmin && companyToken == "" {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "No company assigned", nil)
	}

	leadQuery := func() *gorm.DB {
		q := dc.DB.Model(&models.Lead{}).Where("leads.is_deleted = ?", false)
		if !superAdmin {
			q = q.Joins("JOIN companies ON companies.id = leads.company_id").
				Where("companies.token = ?", companyToken)
		}
		return q
	}

	var totalLeads, activeLeads, newThisWeek int64
	if err := leadQuery().Count(&totalLeads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats", err)
	}
	if err := leadQuery().Where("leads.is_active = ?", true).Count(&activeLeads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats", err)
	}
	weekAgo := time.Now().AddDate(0, 0, -7)
	if err := leadQuery().Where("leads.date_added >= ?", weekAgo).Count(&newThisWeek).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats", err)
	}

	// Per-stage breakdown
	type stageCount struct {
		StatusName string `json:"status_name"`
		Count      int64  `json:"count"`
	}
	var byStage []stageCount
	if err := leadQuery().
		Joins("JOIN statuses ON statuses.id = leads.status_id").
		Select("statuses.status_name AS status_name, COUNT(*) AS count").
		Group("statuses.status_name").
		Scan(&byStage).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats", err)
	}

	type recentLead struct {
		Token     string    `json:"token"`
		LeadName  string    `json:"leadName"`
		StatusID  uint      `json:"statusId"`
		DateAdded time.Time `json:"dateAdded"`
	}
	var recent []recentLead
	if err := leadQuery().
		Select("leads.token, leads.lead_name, leads.status_id, leads.date_added").
		Order("leads.date_added DESC").
		Limit(5).
		Scan(&recent).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats", err)
	}

	stats := fiber.Map{
		"total_leads":   totalLeads,
		"active_leads":  activeLeads,
		"new_this_week": newThisWeek,
		"by_stage":      byStage,
		"recent_leads":  recent,
	}

	if superAdmin {
		var totalCompanies, totalUsers int64
		if err := dc.DB.Model(&models.Company{}).
			Where("is_deleted = ?", false).Count(&totalCompanies).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats", err)
		}
		if err := dc.DB.Model(&models.User{}).
			Where("is_deleted = ?", false).Count(&totalUsers).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats", err)
		}
		stats["total_companies"] = totalCompanies
		stats["total_users"] = totalUsers
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"stats": stats,
	}))
}
