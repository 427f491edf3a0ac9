package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"crmpanel/models"
	"crmpanel/utils"
)

// Trust headers injected for downstream handlers. They are re-derived from
// the verified session on every request; anything the client sent under
// the same names is discarded first. This middleware is the only trust
// boundary between "has a valid session" and "acts as this tenant/role".
const (
	HeaderCompanyToken  = "x-company-token"
	HeaderUserToken     = "x-user-token"
	HeaderUserRoleToken = "x-user-role-token"
)

// SessionCookieName carries the signed session JWT, HttpOnly.
const SessionCookieName = "session"

// TenantResolver authenticates the request and injects the trusted
// identity headers. Attach it to every protected route group.
func TenantResolver(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Never trust identity headers supplied by the client.
		c.Request().Header.Del(HeaderCompanyToken)
		c.Request().Header.Del(HeaderUserToken)
		c.Request().Header.Del(HeaderUserRoleToken)

		token := sessionFromRequest(c)
		if token == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", nil)
		}

		claims, err := utils.ParseSessionToken(token)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired session", nil)
		}

		var user models.User
		if err := db.Preload("Role").Preload("Company").
			Where("token = ? AND is_active = ? AND is_deleted = ?", claims.UserToken, true, false).
			First(&user).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", nil)
		}

		// A soft-deleted tenant takes its users down with it.
		if user.Company != nil && user.Company.IsDeleted {
			logrus.WithFields(logrus.Fields{
				"user_token":    user.Token,
				"company_token": user.Company.Token,
			}).Warn("login attempt for archived tenant")
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", nil)
		}

		companyToken := ""
		if user.Company != nil {
			companyToken = user.Company.Token
		}

		c.Request().Header.Set(HeaderCompanyToken, companyToken)
		c.Request().Header.Set(HeaderUserToken, user.Token)
		c.Request().Header.Set(HeaderUserRoleToken, user.Role.Token)

		c.Locals("user", &user)
		c.Locals("claims", claims)

		return c.Next()
	}
}

func sessionFromRequest(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Cookies(SessionCookieName)
}
