package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crmpanel/config"
	"crmpanel/models"
)

// SessionDuration is the fixed lifetime of a session artifact.
const SessionDuration = 7 * 24 * time.Hour

// SessionClaims is everything a request needs to act as an identity:
// opaque tokens only, never internal ids.
type SessionClaims struct {
	UserToken    string `json:"user_token"`
	RoleToken    string `json:"role_token"`
	CompanyToken string `json:"company_token"` // empty when no tenant is assigned yet
	Email        string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a 7-day session JWT for the given user. The
// user must have its Role preloaded; Company may be nil.
func GenerateSessionToken(user *models.User) (string, error) {
	companyToken := ""
	if user.Company != nil {
		companyToken = user.Company.Token
	}

	claims := &SessionClaims{
		UserToken:    user.Token,
		RoleToken:    user.Role.Token,
		CompanyToken: companyToken,
		Email:        user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(SessionDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.SessionSecret))
}

// ParseSessionToken validates the signature and expiry and returns the claims.
func ParseSessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.SessionSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid session token")
}
