package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"crmpanel/config"
	"crmpanel/models"
	"crmpanel/utils"
)

type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=100"`
	LastName  string `json:"lastName" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	RoleToken string `json:"roleToken" validate:"omitempty,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=6"`
	Password string `json:"password" validate:"required,min=8"`
}

type AuthController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAuthController(db *gorm.DB, logger *log.Logger) *AuthController {
	return &AuthController{
		DB:     db,
		Logger: logger,
	}
}

// userPayload is the external representation of an authenticated user.
// Internal numeric ids never appear here.
func userPayload(user *models.User) fiber.Map {
	companyToken := ""
	if user.Company != nil {
		companyToken = user.Company.Token
	}
	return fiber.Map{
		"token":        user.Token,
		"firstName":    user.FirstName,
		"lastName":     user.LastName,
		"email":        user.Email,
		"roleToken":    user.Role.Token,
		"roleName":     user.Role.RoleName,
		"companyToken": companyToken,
	}
}

func setSessionCookie(c *fiber.Ctx, token string) {
	cookie := new(fiber.Cookie)
	cookie.Name = "session"
	cookie.Value = token
	cookie.Expires = time.Now().Add(utils.SessionDuration)
	cookie.HTTPOnly = true
	cookie.Secure = config.AppConfig.Environment == "production"
	cookie.SameSite = "Lax"
	cookie.Path = "/"
	c.Cookie(cookie)
}

func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	// Check if user already exists
	var count int64
	if err := ac.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
	if count > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered", nil)
	}

	// Resolve the role: explicit token or the default member role
	var role models.Role
	roleQuery := ac.DB.Where("role_name = ?", models.DefaultRoleName)
	if req.RoleToken != "" {
		roleQuery = ac.DB.Where("token = ?", req.RoleToken)
	}
	if err := roleQuery.First(&role).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown role", nil)
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	user := models.User{
		Token:        models.NewToken("usr"),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		RoleID:       role.ID,
		IsActive:     true,
	}

	// MAX+1 id assignment and insert must share one transaction
	if err := ac.DB.Transaction(func(tx *gorm.DB) error {
		nextID, err := models.NextID(tx, &models.User{})
		if err != nil {
			return err
		}
		user.ID = nextID
		return tx.Create(&user).Error
	}); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"user": fiber.Map{
			"token":     user.Token,
			"firstName": user.FirstName,
			"lastName":  user.LastName,
			"email":     user.Email,
			"roleToken": role.Token,
		},
	}))
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	// Wrong email and wrong password must be indistinguishable to the caller
	var user models.User
	if err := ac.DB.Preload("Role").Preload("Company").
		Where("email = ? AND is_active = ? AND is_deleted = ?", req.Email, true, false).
		First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}

	ok, err := utils.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}

	// An archived tenant locks its users out entirely
	if user.Company != nil && user.Company.IsDeleted {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}

	sessionToken, err := utils.GenerateSessionToken(&user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create session", err)
	}
	setSessionCookie(c, sessionToken)

	// last_login update keys on the internal id, which stays server-side
	if err := ac.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("last_login", time.Now()).Error; err != nil {
		ac.Logger.Printf("failed to update last_login for user %d: %v", user.ID, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"user": userPayload(&user)},
		"message": "Login successful",
	})
}

func (ac *AuthController) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "session",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})
	return c.JSON(utils.MessageResponse("Logged out"))
}

func (ac *AuthController) GetCurrentUser(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"user": userPayload(user),
	}))
}

func (ac *AuthController) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	// Same response whether or not the account exists
	genericReply := utils.MessageResponse("If the account exists, a reset code has been sent")

	var user models.User
	if err := ac.DB.
		Where("email = ? AND is_active = ? AND is_deleted = ?", req.Email, true, false).
		First(&user).Error; err != nil {
		return c.JSON(genericReply)
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate reset code", err)
	}

	expiresAt := time.Now().Add(utils.OTPExpiry)
	if err := ac.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"reset_otp":            otp,
			"reset_otp_expires_at": expiresAt,
		}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store reset code", err)
	}

	if err := utils.SendPasswordResetOTPEmail(user.Email, otp); err != nil {
		ac.Logger.Printf("failed to send reset email to %s: %v", user.Email, err)
	}

	return c.JSON(genericReply)
}

func (ac *AuthController) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var user models.User
	if err := ac.DB.
		Where("email = ? AND is_active = ? AND is_deleted = ?", req.Email, true, false).
		First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid reset code", nil)
	}

	if user.ResetOTP == "" || user.ResetOTP != req.OTP {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid reset code", nil)
	}
	if user.ResetOTPExpiresAt == nil || time.Now().After(*user.ResetOTPExpiresAt) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Expired reset code", nil)
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	if err := ac.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"password_hash":        hashedPassword,
			"reset_otp":            "",
			"reset_otp_expires_at": nil,
		}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update password", err)
	}

	return c.JSON(utils.MessageResponse("Password reset successfully"))
}

var googleOAuthConfig *oauth2.Config

func googleConfig() *oauth2.Config {
	if googleOAuthConfig == nil {
		googleOAuthConfig = &oauth2.Config{
			ClientID:     config.AppConfig.Google.ClientID,
			ClientSecret: config.AppConfig.Google.ClientSecret,
			RedirectURL:  config.AppConfig.Google.RedirectURI,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}
	return googleOAuthConfig
}

func (ac *AuthController) GoogleOAuth(c *fiber.Ctx) error {
	state := models.NewToken("state")

	// Short-lived CSRF state cookie
	cookie := new(fiber.Cookie)
	cookie.Name = "oauth_state"
	cookie.Value = state
	cookie.Expires = time.Now().Add(10 * time.Minute)
	cookie.HTTPOnly = true
	cookie.Secure = config.AppConfig.Environment == "production"
	cookie.SameSite = "Lax"
	c.Cookie(cookie)

	url := googleConfig().AuthCodeURL(state, oauth2.AccessTypeOffline)
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

func (ac *AuthController) GoogleOAuthCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	cookieState := c.Cookies("oauth_state")
	if state == "" || cookieState == "" || state != cookieState {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid state parameter", nil)
	}
	c.ClearCookie("oauth_state")

	code := c.Query("code")
	if code == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Authorization code not provided", nil)
	}

	token, err := googleConfig().Exchange(context.Background(), code)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to exchange token", err)
	}

	client := googleConfig().Client(context.Background(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get user info", err)
	}
	defer resp.Body.Close()

	var googleUser struct {
		Email     string `json:"email"`
		GivenName string `json:"given_name"`
		Family    string `json:"family_name"`
		Verified  bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to parse user info", err)
	}
	if googleUser.Email == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Google account email is required", nil)
	}

	var user models.User
	err = ac.DB.Preload("Role").Preload("Company").
		Where("email = ? AND is_deleted = ?", googleUser.Email, false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var role models.Role
		if err := ac.DB.Where("role_name = ?", models.DefaultRoleName).First(&role).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
		}

		// OAuth accounts get an unusable random password
		placeholder, err := utils.HashPassword(models.NewToken("pw"))
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to provision user", err)
		}

		user = models.User{
			Token:        models.NewToken("usr"),
			FirstName:    googleUser.GivenName,
			LastName:     googleUser.Family,
			Email:        googleUser.Email,
			PasswordHash: placeholder,
			RoleID:       role.ID,
			IsActive:     true,
		}
		if err := ac.DB.Transaction(func(tx *gorm.DB) error {
			nextID, err := models.NextID(tx, &models.User{})
			if err != nil {
				return err
			}
			user.ID = nextID
			return tx.Create(&user).Error
		}); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
		}
		user.Role = role
	} else if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if !user.IsActive {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
	}

	sessionToken, err := utils.GenerateSessionToken(&user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create session", err)
	}
	setSessionCookie(c, sessionToken)

	if err := ac.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("last_login", time.Now()).Error; err != nil {
		ac.Logger.Printf("failed to update last_login for user %d: %v", user.ID, err)
	}

	return c.Redirect("/dashboard", fiber.StatusTemporaryRedirect)
}
