package controller_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofiber/fiber/v2"

	"crmpanel/access"
	"crmpanel/models"
)

func TestLeadArchiveRestorePurgeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	lead := env.createLead("Fleeting lead", env.acme)
	session := env.sessionFor(env.acmeUser)
	adminSession := env.sessionFor(env.superAdmin)

	// Archive
	resp, _ := env.request(fiber.MethodDelete, "/leads/"+lead.Token, session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Gone from the live listing, visible in the vault
	resp, envelope := env.request(fiber.MethodGet, "/leads/", session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, envelope["data"])

	resp, envelope = env.request(fiber.MethodGet, "/admin/archive/leads", adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vaulted := dataField(t, envelope)["leads"].([]interface{})
	require.Len(t, vaulted, 1)
	assert.Equal(t, lead.Token, vaulted[0].(map[string]interface{})["token"])

	// Restore: same token comes back to life
	resp, _ = env.request(fiber.MethodPost, "/admin/archive/leads", adminSession, fiber.Map{
		"token":  lead.Token,
		"action": "restore",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.request(fiber.MethodGet, "/leads/"+lead.Token, session, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Archive again, then purge for good
	resp, _ = env.request(fiber.MethodDelete, "/leads/"+lead.Token, session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.request(fiber.MethodPost, "/admin/archive/leads", adminSession, fiber.Map{
		"token":  lead.Token,
		"action": "permanent_delete",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.request(fiber.MethodGet, "/leads/"+lead.Token, session, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, envelope = env.request(fiber.MethodGet, "/admin/archive/leads", adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, dataField(t, envelope)["leads"])

	// The audit trail went with it
	var activities int64
	require.NoError(t, env.db.Model(&models.LeadActivity{}).
		Where("lead_id = ?", lead.ID).Count(&activities).Error)
	assert.Zero(t, activities)
}

func TestVaultRejectsUnknownEntityAndAction(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)

	resp, _ := env.request(fiber.MethodGet, "/admin/archive/invoices", adminSession, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(fiber.MethodPost, "/admin/archive/leads", adminSession, fiber.Map{
		"token":  "lead_whatever",
		"action": "shred",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVaultIsSuperAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(env.acmeUser)

	resp, _ := env.request(fiber.MethodGet, "/admin/archive/leads", session, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCompanyPurgeBlockedWhileReferenced(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)

	// acme still has a user attached
	resp, _ := env.request(fiber.MethodDelete, "/companies/"+env.acme.Token, adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.request(fiber.MethodPost, "/admin/archive/companies", adminSession, fiber.Map{
		"token":  env.acme.Token,
		"action": "permanent_delete",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestNavigationMenuForSuperAdmin(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(fiber.MethodGet,
		"/auth/navigation?userToken="+env.superAdmin.Token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	menu := dataField(t, envelope)["menu"].([]interface{})
	// 6 roots: settings folds its two children under itself
	assert.Len(t, menu, 6)

	for _, node := range menu {
		item := node.(map[string]interface{})
		if item["key"] == "settings" {
			assert.Len(t, item["children"].([]interface{}), 2)
		}
		if item["key"] == "companies" {
			assert.Equal(t, "/companies", item["path"])
		}
	}
}

func TestNavigationMenuFollowsGrantsAndRewrite(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, access.ReplaceGrants(env.db, env.acmeUser.Token, []uint{1, 3}))

	resp, envelope := env.request(fiber.MethodGet,
		"/auth/navigation?userToken="+env.acmeUser.Token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	menu := dataField(t, envelope)["menu"].([]interface{})
	require.Len(t, menu, 2)

	companies := menu[1].(map[string]interface{})
	require.Equal(t, "companies", companies["key"])
	assert.Equal(t, "Company", companies["label"])
	assert.True(t, strings.HasSuffix(companies["path"].(string), env.acme.Token))
}

func TestNavigationMenuValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(fiber.MethodGet, "/auth/navigation", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(fiber.MethodGet, "/auth/navigation?userToken=usr_ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A deactivated account's token stops resolving on the public endpoint
	require.NoError(t, env.db.Model(&models.User{}).
		Where("id = ?", env.acmeUser.ID).
		Update("is_active", false).Error)
	resp, _ = env.request(fiber.MethodGet, "/auth/navigation?userToken="+env.acmeUser.Token, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNavigationItemManagement(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)

	// Non-admins may not touch the menu
	resp, _ := env.request(fiber.MethodPost, "/auth/navigation", env.sessionFor(env.acmeUser), fiber.Map{
		"key":   "reports",
		"label": "Reports",
		"path":  "/reports",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, envelope := env.request(fiber.MethodPost, "/auth/navigation", adminSession, fiber.Map{
		"key":       "reports",
		"label":     "Reports",
		"path":      "/reports",
		"sortOrder": 7,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	module := dataField(t, envelope)["module"].(map[string]interface{})
	// MAX+1 past the eight seeded items
	assert.Equal(t, float64(9), module["id"])

	// Duplicate key conflicts
	resp, _ = env.request(fiber.MethodPost, "/auth/navigation", adminSession, fiber.Map{
		"key":   "reports",
		"label": "Reports again",
		"path":  "/reports2",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, envelope = env.request(fiber.MethodPatch, "/auth/navigation/9", adminSession, fiber.Map{
		"label": "Reporting",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	module = dataField(t, envelope)["module"].(map[string]interface{})
	assert.Equal(t, "Reporting", module["label"])

	resp, envelope = env.request(fiber.MethodGet, "/admin/modules", adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dataField(t, envelope)["modules"].([]interface{}), 9)

	resp, _ = env.request(fiber.MethodDelete, "/auth/navigation/9", adminSession, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNavigationReparentCycleRejected(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)

	for _, m := range []fiber.Map{
		{"key": "groupa", "label": "Group A", "path": "#", "isParent": true},
		{"key": "groupb", "label": "Group B", "path": "#", "isParent": true},
	} {
		resp, _ := env.request(fiber.MethodPost, "/auth/navigation", adminSession, m)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// 9 under 10 is fine; closing the loop is not
	resp, _ := env.request(fiber.MethodPatch, "/auth/navigation/9", adminSession, fiber.Map{
		"parentId": 10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.request(fiber.MethodPatch, "/auth/navigation/10", adminSession, fiber.Map{
		"parentId": 9,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(fiber.MethodPatch, "/auth/navigation/9", adminSession, fiber.Map{
		"parentId": 9,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var item models.NavigationItem
	require.NoError(t, env.db.First(&item, 10).Error)
	assert.Nil(t, item.ParentID)
}

func TestNavigationUpdateKeyAndParentFlag(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)

	resp, _ := env.request(fiber.MethodPost, "/auth/navigation", adminSession, fiber.Map{
		"key":   "reports",
		"label": "Reports",
		"path":  "/reports",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// A key held by another item conflicts
	resp, _ = env.request(fiber.MethodPatch, "/auth/navigation/9", adminSession, fiber.Map{
		"key": "dashboard",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, envelope := env.request(fiber.MethodPatch, "/auth/navigation/9", adminSession, fiber.Map{
		"key":      "reporting",
		"isParent": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	module := dataField(t, envelope)["module"].(map[string]interface{})
	assert.Equal(t, "reporting", module["key"])
	assert.Equal(t, true, module["is_parent"])

	// Seeded item 5 still has children, so it stays a dropdown
	resp, _ = env.request(fiber.MethodPatch, "/auth/navigation/5", adminSession, fiber.Map{
		"isParent": false,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNavigationDeleteWithChildrenRejected(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)

	// Seeded item 5 is the settings dropdown with two children
	resp, envelope := env.request(fiber.MethodDelete, "/auth/navigation/5", adminSession, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, envelope["success"])

	var count int64
	require.NoError(t, env.db.Model(&models.NavigationItem{}).
		Where("id = ?", 5).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNavigationDeleteCleansUpGrants(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)
	require.NoError(t, access.ReplaceGrants(env.db, env.acmeUser.Token, []uint{8}))

	resp, _ := env.request(fiber.MethodDelete, "/auth/navigation/8", adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ids, err := access.GrantedNavigationIDs(env.db, env.acmeUser.Token)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPermissionsReplaceRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)

	resp, _ := env.request(fiber.MethodPost, "/admin/permissions", adminSession, fiber.Map{
		"userId":        env.acmeUser.Token,
		"navigationIds": []uint{1, 2, 3},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope := env.request(fiber.MethodGet,
		"/admin/permissions?userId="+env.acmeUser.Token, adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dataField(t, envelope)["navigationIds"].([]interface{}), 3)

	// Replace is wholesale, not additive
	resp, _ = env.request(fiber.MethodPost, "/admin/permissions", adminSession, fiber.Map{
		"userId":        env.acmeUser.Token,
		"navigationIds": []uint{2},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope = env.request(fiber.MethodGet,
		"/admin/permissions?userId="+env.acmeUser.Token, adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	granted := dataField(t, envelope)["navigationIds"].([]interface{})
	require.Len(t, granted, 1)
	assert.Equal(t, float64(2), granted[0])

	// Unknown navigation id rejects the whole request
	resp, _ = env.request(fiber.MethodPost, "/admin/permissions", adminSession, fiber.Map{
		"userId":        env.acmeUser.Token,
		"navigationIds": []uint{999},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoleCatalogIsSuperAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(fiber.MethodGet, "/admin/roles", env.sessionFor(env.acmeUser), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, envelope := env.request(fiber.MethodGet, "/admin/roles", env.sessionFor(env.superAdmin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	roles := dataField(t, envelope)["roles"].([]interface{})
	require.Len(t, roles, 4)
	first := roles[0].(map[string]interface{})
	assert.Equal(t, "Super Admin", first["role_name"])
	assert.Equal(t, models.SuperAdminRoleToken, first["token"])
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	adminSession := env.sessionFor(env.superAdmin)

	resp, envelope := env.request(fiber.MethodGet, "/admin/users", adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dataField(t, envelope)["users"].([]interface{}), 3)

	// Reassign the member to the other tenant
	resp, _ = env.request(fiber.MethodPut, "/admin/users/"+env.acmeUser.Token, adminSession, fiber.Map{
		"companyToken": env.globex.Token,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	require.NoError(t, env.db.First(&user, env.acmeUser.ID).Error)
	require.NotNil(t, user.CompanyID)
	assert.Equal(t, env.globex.ID, *user.CompanyID)

	// Archiving your own account is rejected
	resp, _ = env.request(fiber.MethodDelete, "/admin/users/"+env.superAdmin.Token, adminSession, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(fiber.MethodDelete, "/admin/users/"+env.acmeUser.Token, adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Archived users cannot authenticate
	resp, _ = env.request(fiber.MethodPost, "/auth/login", "", fiber.Map{
		"email":    env.acmeUser.Email,
		"password": testPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookIntake(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"companyToken":"` + env.acme.Token + `","leadName":"Form submit"}`

	req := httptest.NewRequest(fiber.MethodPost, "/integrations/leads?source=landing-page",
		strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodPost, "/integrations/leads?source=landing-page",
		strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var event models.LeadWebhookEvent
	require.NoError(t, env.db.First(&event).Error)
	assert.Equal(t, "landing-page", event.Source)
	assert.Equal(t, "pending", event.Status)
	assert.JSONEq(t, payload, event.Payload)
}

func TestDashboardStatsAreScoped(t *testing.T) {
	env := newTestEnv(t)
	env.createLead("Acme lead", env.acme)
	env.createLead("Globex lead", env.globex)

	resp, envelope := env.request(fiber.MethodGet, "/dashboard/stats",
		env.sessionFor(env.acmeUser), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := dataField(t, envelope)["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total_leads"])
	assert.NotContains(t, stats, "total_companies")
	recent := stats["recent_leads"].([]interface{})
	require.Len(t, recent, 1)
	assert.Equal(t, "Acme lead", recent[0].(map[string]interface{})["leadName"])

	resp, envelope = env.request(fiber.MethodGet, "/dashboard/stats",
		env.sessionFor(env.superAdmin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats = dataField(t, envelope)["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["total_leads"])
	assert.Equal(t, float64(2), stats["total_companies"])
}
