package controller_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gofiber/fiber/v2"

	"crmpanel/config"
	controller "crmpanel/controllers"
	"crmpanel/models"
	"crmpanel/routes"
	"crmpanel/utils"
)

const testPassword = "correct-horse-battery"

var (
	hashOnce     sync.Once
	passwordHash string
)

func testPasswordHash(t *testing.T) string {
	hashOnce.Do(func() {
		var err error
		passwordHash, err = utils.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
	})
	return passwordHash
}

type testEnv struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB

	superAdmin models.User
	acme       models.Company
	globex     models.Company
	acmeUser   models.User
	globexUser models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	config.AppConfig.SessionSecret = "api-test-secret"
	config.AppConfig.Environment = "test"
	config.AppConfig.RateLimitLogin = 1000
	config.AppConfig.WebhookSecret = "hook-secret"
	config.AppConfig.Redis.Enabled = false

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Role{},
		&models.Company{},
		&models.User{},
		&models.Status{},
		&models.Lead{},
		&models.LeadActivity{},
		&models.LeadWebhookEvent{},
		&models.NavigationItem{},
		&models.NavigationGrant{},
	))
	require.NoError(t, models.CreateDefaultRoles(db))
	require.NoError(t, models.CreateDefaultStatuses(db))
	require.NoError(t, models.CreateDefaultNavigation(db))

	env := &testEnv{t: t, db: db}

	env.acme = models.Company{ID: 1, Token: models.NewToken("comp"), CompanyName: "Acme Corp"}
	env.globex = models.Company{ID: 2, Token: models.NewToken("comp"), CompanyName: "Globex Inc"}
	require.NoError(t, db.Create(&env.acme).Error)
	require.NoError(t, db.Create(&env.globex).Error)

	hash := testPasswordHash(t)
	env.superAdmin = env.createUser("root@example.com", 1, nil, hash)
	env.acmeUser = env.createUser("alice@acme.example", 4, &env.acme.ID, hash)
	env.globexUser = env.createUser("bob@globex.example", 4, &env.globex.ID, hash)

	env.app = fiber.New()
	routes.SetupRoutes(env.app, db, controller.NewLeadHub())
	return env
}

func (e *testEnv) createUser(email string, roleID uint, companyID *uint, hash string) models.User {
	var user models.User
	err := e.db.Transaction(func(tx *gorm.DB) error {
		nextID, err := models.NextID(tx, &models.User{})
		if err != nil {
			return err
		}
		user = models.User{
			ID:           nextID,
			Token:        models.NewToken("usr"),
			FirstName:    "Test",
			LastName:     "User",
			Email:        email,
			PasswordHash: hash,
			RoleID:       roleID,
			CompanyID:    companyID,
			IsActive:     true,
		}
		return tx.Create(&user).Error
	})
	require.NoError(e.t, err)
	return user
}

func (e *testEnv) sessionFor(user models.User) string {
	var loaded models.User
	require.NoError(e.t, e.db.Preload("Role").Preload("Company").
		First(&loaded, user.ID).Error)
	token, err := utils.GenerateSessionToken(&loaded)
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) createLead(name string, company models.Company) models.Lead {
	var lead models.Lead
	err := e.db.Transaction(func(tx *gorm.DB) error {
		nextID, err := models.NextID(tx, &models.Lead{})
		if err != nil {
			return err
		}
		lead = models.Lead{
			ID:        nextID,
			Token:     models.NewToken("lead"),
			LeadName:  name,
			StatusID:  1,
			CompanyID: company.ID,
			DateAdded: time.Now(),
			IsActive:  true,
		}
		return tx.Create(&lead).Error
	})
	require.NoError(e.t, err)
	return lead
}

// request performs one API call and decodes the envelope.
func (e *testEnv) request(method, path, session string, body interface{}) (*http.Response, map[string]interface{}) {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set("Authorization", "Bearer "+session)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	resp.Body.Close()

	envelope := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(e.t, json.Unmarshal(raw, &envelope), "body: %s", raw)
	}
	return resp, envelope
}

func dataField(t *testing.T, envelope map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := envelope["data"].(map[string]interface{})
	require.True(t, ok, "envelope has no data object: %v", envelope)
	return data
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(fiber.MethodPost, "/auth/login", "", fiber.Map{
		"email":    env.acmeUser.Email,
		"password": testPassword,
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, envelope["success"])
	assert.Equal(t, "Login successful", envelope["message"])

	user := dataField(t, envelope)["user"].(map[string]interface{})
	assert.Equal(t, env.acmeUser.Token, user["token"])
	assert.Equal(t, env.acme.Token, user["companyToken"])
	assert.NotContains(t, user, "id")

	var sessionCookie string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "session" {
			sessionCookie = cookie.Value
			assert.True(t, cookie.HttpOnly)
		}
	}
	require.NotEmpty(t, sessionCookie)

	claims, err := utils.ParseSessionToken(sessionCookie)
	require.NoError(t, err)
	assert.Equal(t, env.acmeUser.Token, claims.UserToken)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)

	resp, envelope := env.request(fiber.MethodPost, "/auth/login", "", fiber.Map{
		"email":    env.acmeUser.Email,
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, envelope["success"])
	wrongPassword := envelope["error"]

	resp, envelope = env.request(fiber.MethodPost, "/auth/login", "", fiber.Map{
		"email":    "nobody@example.com",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, wrongPassword, envelope["error"])
}

func TestLoginUpdatesLastLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(fiber.MethodPost, "/auth/login", "", fiber.Map{
		"email":    env.acmeUser.Email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	require.NoError(t, env.db.First(&user, env.acmeUser.ID).Error)
	assert.NotNil(t, user.LastLogin)
}

func TestRegisterConflict(t *testing.T) {
	env := newTestEnv(t)

	body := fiber.Map{
		"firstName": "New",
		"lastName":  "Person",
		"email":     "new@example.com",
		"password":  "a-long-password",
	}
	resp, envelope := env.request(fiber.MethodPost, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	user := dataField(t, envelope)["user"].(map[string]interface{})
	assert.Contains(t, user["token"], "usr_")

	resp, envelope = env.request(fiber.MethodPost, "/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, envelope["success"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/leads/", "/companies/", "/dashboard/stats", "/admin/users"} {
		resp, envelope := env.request(fiber.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, false, envelope["success"], path)
	}
}

func TestUnknownRouteReturnsEnvelope404(t *testing.T) {
	env := newTestEnv(t)

	// Without a session: not-found must win over unauthenticated
	for _, path := range []string{"/no/such/route", "/auth/no-such", "/statuses/extra"} {
		resp, envelope := env.request(fiber.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, false, envelope["success"], path)
	}
}

func TestLeadListIsTenantScoped(t *testing.T) {
	env := newTestEnv(t)
	env.createLead("Acme lead", env.acme)
	env.createLead("Globex lead", env.globex)

	session := env.sessionFor(env.acmeUser)
	resp, envelope := env.request(fiber.MethodGet, "/leads/", session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	leads := envelope["data"].([]interface{})
	require.Len(t, leads, 1)
	assert.Equal(t, "Acme lead", leads[0].(map[string]interface{})["lead_name"])
	assert.Equal(t, float64(1), envelope["total"])
}

func TestCrossTenantLeadAccessIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	globexLead := env.createLead("Globex lead", env.globex)

	session := env.sessionFor(env.acmeUser)

	// Existing but other tenant: 403, never 404
	resp, _ := env.request(fiber.MethodGet, "/leads/"+globexLead.Token, session, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Absent entirely: 404
	resp, _ = env.request(fiber.MethodGet, "/leads/lead_doesnotexist", session, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSuperAdminSeesAllTenants(t *testing.T) {
	env := newTestEnv(t)
	env.createLead("Acme lead", env.acme)
	globexLead := env.createLead("Globex lead", env.globex)

	session := env.sessionFor(env.superAdmin)

	resp, envelope := env.request(fiber.MethodGet, "/leads/", session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, envelope["data"].([]interface{}), 2)

	resp, _ = env.request(fiber.MethodGet, "/leads/"+globexLead.Token, session, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClientSuppliedTrustHeadersAreDiscarded(t *testing.T) {
	env := newTestEnv(t)
	globexLead := env.createLead("Globex lead", env.globex)

	session := env.sessionFor(env.acmeUser)
	req := httptest.NewRequest(fiber.MethodGet, "/leads/"+globexLead.Token, nil)
	req.Header.Set("Authorization", "Bearer "+session)
	req.Header.Set("x-user-role-token", models.SuperAdminRoleToken)
	req.Header.Set("x-company-token", env.globex.Token)

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateLeadLandsInOwnTenant(t *testing.T) {
	env := newTestEnv(t)

	session := env.sessionFor(env.acmeUser)
	resp, envelope := env.request(fiber.MethodPost, "/leads/", session, fiber.Map{
		"leadName": "Walk-in prospect",
		"email":    "prospect@example.com",
		// companyToken pointing at another tenant is meaningless here
		"companyToken": env.globex.Token,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", envelope)

	lead := dataField(t, envelope)["lead"].(map[string]interface{})
	assert.Contains(t, lead["token"], "lead_")

	var stored models.Lead
	require.NoError(t, env.db.Where("token = ?", lead["token"]).First(&stored).Error)
	assert.Equal(t, env.acme.ID, stored.CompanyID)

	// Creation is on the audit trail
	var activities int64
	require.NoError(t, env.db.Model(&models.LeadActivity{}).
		Where("lead_id = ?", stored.ID).Count(&activities).Error)
	assert.Equal(t, int64(1), activities)
}

func TestLeadCompanyReassignmentIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	lead := env.createLead("Acme lead", env.acme)

	// A tenant user asking to move the lead keeps it in place
	session := env.sessionFor(env.acmeUser)
	resp, _ := env.request(fiber.MethodPatch, "/leads/"+lead.Token, session, fiber.Map{
		"leadName":     "Renamed lead",
		"companyToken": env.globex.Token,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.Lead
	require.NoError(t, env.db.First(&stored, lead.ID).Error)
	assert.Equal(t, env.acme.ID, stored.CompanyID)
	assert.Equal(t, "Renamed lead", stored.LeadName)

	// A Super Admin moves it for real
	adminSession := env.sessionFor(env.superAdmin)
	resp, _ = env.request(fiber.MethodPatch, "/leads/"+lead.Token, adminSession, fiber.Map{
		"companyToken": env.globex.Token,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, env.db.First(&stored, lead.ID).Error)
	assert.Equal(t, env.globex.ID, stored.CompanyID)
}

func TestCompanyManagementIsSuperAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(env.acmeUser)

	resp, _ := env.request(fiber.MethodPost, "/companies/", session, fiber.Map{
		"companyName": "Initech",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminSession := env.sessionFor(env.superAdmin)
	resp, envelope := env.request(fiber.MethodPost, "/companies/", adminSession, fiber.Map{
		"companyName": "Initech",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	company := dataField(t, envelope)["company"].(map[string]interface{})
	assert.Contains(t, company["token"], "comp_")

	// Duplicate name conflicts
	resp, _ = env.request(fiber.MethodPost, "/companies/", adminSession, fiber.Map{
		"companyName": "Initech",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCompanyListCollapsesForTenantUsers(t *testing.T) {
	env := newTestEnv(t)

	session := env.sessionFor(env.acmeUser)
	resp, envelope := env.request(fiber.MethodGet, "/companies/", session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	companies := dataField(t, envelope)["companies"].([]interface{})
	require.Len(t, companies, 1)
	assert.Equal(t, env.acme.Token, companies[0].(map[string]interface{})["token"])

	adminSession := env.sessionFor(env.superAdmin)
	resp, envelope = env.request(fiber.MethodGet, "/companies/", adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dataField(t, envelope)["companies"].([]interface{}), 2)
}

func TestArchivedCompanyLocksOutItsUsers(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(env.acmeUser)
	adminSession := env.sessionFor(env.superAdmin)

	resp, _ := env.request(fiber.MethodDelete, "/companies/"+env.acme.Token, adminSession, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The member's still-valid session no longer resolves
	resp, _ = env.request(fiber.MethodGet, "/leads/", session, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
