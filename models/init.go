package models

import "gorm.io/gorm"

// SuperAdminRoleToken is the single well-known role token that bypasses
// tenant filtering everywhere. It is a system-wide constant, not
// configurable per request.
const SuperAdminRoleToken = "role_dbf36ff3e3827639223983ee8ac47b42"

// DefaultRoleName is assigned to self-registered users until an admin
// promotes them.
const DefaultRoleName = "Member"

// CreateDefaultRoles seeds the role table. The Super Admin role keeps its
// fixed token; the rest get a random one on first creation.
func CreateDefaultRoles(db *gorm.DB) error {
	defaultRoles := []Role{
		{
			Token:       SuperAdminRoleToken,
			RoleName:    "Super Admin",
			Permissions: `["*"]`,
		},
		{
			RoleName:    "Admin",
			Permissions: `["users.read","users.write","leads.read","leads.write","companies.read"]`,
		},
		{
			RoleName:    "Manager",
			Permissions: `["leads.read","leads.write","companies.read"]`,
		},
		{
			RoleName:    DefaultRoleName,
			Permissions: `["leads.read"]`,
		},
	}
	for i, role := range defaultRoles {
		if role.Token == "" {
			role.Token = NewToken("role")
		}
		role.ID = uint(i + 1)
		if err := db.Where("role_name = ?", role.RoleName).
			Attrs(role).FirstOrCreate(&Role{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateDefaultStatuses seeds the lead pipeline stages.
func CreateDefaultStatuses(db *gorm.DB) error {
	names := []string{"Lead", "Active", "Qualified", "Lost"}
	for i, name := range names {
		status := Status{ID: uint(i + 1), StatusName: name}
		if err := db.Where("status_name = ?", name).
			Attrs(status).FirstOrCreate(&Status{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateDefaultNavigation seeds the menu forest: top-level links plus a
// "Settings" dropdown with two children.
func CreateDefaultNavigation(db *gorm.DB) error {
	parentID := uint(5)
	items := []NavigationItem{
		{ID: 1, Key: "dashboard", Label: "Dashboard", Path: "/dashboard", IconName: "LayoutDashboard", SortOrder: 1},
		{ID: 2, Key: "leads", Label: "Leads", Path: "/leads", IconName: "Target", SortOrder: 2},
		{ID: 3, Key: "companies", Label: "Companies", Path: "/companies", IconName: "Building2", SortOrder: 3},
		{ID: 4, Key: "users", Label: "Users", Path: "/users", IconName: "Users", SortOrder: 4},
		{ID: 5, Key: "settings", Label: "Settings", Path: "#", IconName: "Settings", SortOrder: 5, IsParent: true},
		{ID: 6, Key: "permissions", Label: "Permissions", Path: "/users/permissions", IconName: "ShieldCheck", SortOrder: 1, ParentID: &parentID},
		{ID: 7, Key: "navigation", Label: "Navigation", Path: "/settings/navigation", IconName: "Menu", SortOrder: 2, ParentID: &parentID},
		{ID: 8, Key: "archive", Label: "Archive", Path: "/archive", IconName: "Archive", SortOrder: 6},
	}
	for _, item := range items {
		if err := db.Where(NavigationItem{Key: item.Key}).
			Attrs(item).FirstOrCreate(&NavigationItem{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedSuperAdminUser provisions the initial Super Admin account when the
// deployment configures one. No-op if the email already exists.
func SeedSuperAdminUser(db *gorm.DB, email, passwordHash string) error {
	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var role Role
	if err := db.Where("token = ?", SuperAdminRoleToken).First(&role).Error; err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		nextID, err := NextID(tx, &User{})
		if err != nil {
			return err
		}
		user := User{
			ID:           nextID,
			Token:        NewToken("usr"),
			FirstName:    "Super",
			LastName:     "Admin",
			Email:        email,
			PasswordHash: passwordHash,
			RoleID:       role.ID,
			IsActive:     true,
		}
		return tx.Create(&user).Error
	})
}
