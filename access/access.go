// Package access is the single place that answers "may this actor touch
// that row". Handlers must consult it instead of re-implementing role or
// tenant checks.
package access

import (
	"errors"

	"gorm.io/gorm"

	"crmpanel/models"
)

var ErrUserNotFound = errors.New("user not found")

// IsSuperAdmin reports whether the role token is the well-known Super
// Admin token.
func IsSuperAdmin(roleToken string) bool {
	return roleToken == models.SuperAdminRoleToken
}

// CanAccessCompany decides row-level access for company-scoped entities:
// a Super Admin may touch any row, everyone else only rows of their own
// tenant.
func CanAccessCompany(actorRoleToken, actorCompanyToken, targetCompanyToken string) bool {
	if IsSuperAdmin(actorRoleToken) {
		return true
	}
	return actorCompanyToken != "" && actorCompanyToken == targetCompanyToken
}

// PermittedNavigation returns the navigation items the user may see:
// everything for a Super Admin, granted items for everyone else.
// Deactivated users resolve to nothing; the endpoint is public, so a
// disabled account must not keep leaking its menu.
func PermittedNavigation(db *gorm.DB, userToken string) ([]models.NavigationItem, error) {
	var user models.User
	err := db.Preload("Role").
		Where("token = ? AND is_deleted = ? AND is_active = ?", userToken, false, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var items []models.NavigationItem
	query := db.Model(&models.NavigationItem{}).Order("sort_order ASC")
	if !IsSuperAdmin(user.Role.Token) {
		query = query.
			Joins("JOIN navigation_grants ON navigation_grants.navigation_id = navigation_items.id").
			Where("navigation_grants.user_id = ?", user.ID)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GrantedNavigationIDs lists the raw grant rows for the permissions screen.
func GrantedNavigationIDs(db *gorm.DB, userToken string) ([]uint, error) {
	userID, err := resolveUserID(db, userToken)
	if err != nil {
		return nil, err
	}

	var ids []uint
	if err := db.Model(&models.NavigationGrant{}).
		Where("user_id = ?", userID).
		Pluck("navigation_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ReplaceGrants swaps the user's whole grant set in one transaction:
// delete everything, reinsert the new set. Last writer wins; a reader
// never observes the half-empty state.
func ReplaceGrants(db *gorm.DB, userToken string, navigationIDs []uint) error {
	userID, err := resolveUserID(db, userToken)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).
			Delete(&models.NavigationGrant{}).Error; err != nil {
			return err
		}

		if len(navigationIDs) == 0 {
			return nil
		}

		grants := make([]models.NavigationGrant, 0, len(navigationIDs))
		for _, navID := range navigationIDs {
			grants = append(grants, models.NavigationGrant{
				UserID:       userID,
				NavigationID: navID,
			})
		}
		return tx.Create(&grants).Error
	})
}

func resolveUserID(db *gorm.DB, userToken string) (uint, error) {
	var user models.User
	err := db.Select("id").
		Where("token = ? AND is_deleted = ?", userToken, false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}
