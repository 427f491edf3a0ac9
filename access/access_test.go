package access

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crmpanel/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Role{},
		&models.Company{},
		&models.User{},
		&models.NavigationItem{},
		&models.NavigationGrant{},
	))
	return db
}

func seedAccessFixture(t *testing.T, db *gorm.DB) (admin, member models.User) {
	t.Helper()

	superRole := models.Role{ID: 1, Token: models.SuperAdminRoleToken, RoleName: "Super Admin", IsActive: true}
	memberRole := models.Role{ID: 4, Token: "role_member000000000000000000000000", RoleName: "Member", IsActive: true}
	require.NoError(t, db.Create(&superRole).Error)
	require.NoError(t, db.Create(&memberRole).Error)

	admin = models.User{ID: 1, Token: "usr_admin", Email: "admin@example.com", RoleID: superRole.ID, IsActive: true}
	member = models.User{ID: 2, Token: "usr_member", Email: "member@example.com", RoleID: memberRole.ID, IsActive: true}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, db.Create(&member).Error)

	items := []models.NavigationItem{
		{ID: 1, Key: "dashboard", Label: "Dashboard", Path: "/dashboard", SortOrder: 10},
		{ID: 2, Key: "leads", Label: "Leads", Path: "/leads", SortOrder: 20},
		{ID: 3, Key: "companies", Label: "Companies", Path: "/companies", SortOrder: 30},
	}
	require.NoError(t, db.Create(&items).Error)
	return admin, member
}

func TestIsSuperAdmin(t *testing.T) {
	assert.True(t, IsSuperAdmin(models.SuperAdminRoleToken))
	assert.False(t, IsSuperAdmin("role_member000000000000000000000000"))
	assert.False(t, IsSuperAdmin(""))
}

func TestCanAccessCompany(t *testing.T) {
	assert.True(t, CanAccessCompany(models.SuperAdminRoleToken, "", "comp_x"))
	assert.True(t, CanAccessCompany("role_member", "comp_x", "comp_x"))
	assert.False(t, CanAccessCompany("role_member", "comp_x", "comp_y"))
	assert.False(t, CanAccessCompany("role_member", "", "comp_y"))
	assert.False(t, CanAccessCompany("role_member", "", ""))
}

func TestPermittedNavigationSuperAdminSeesEverything(t *testing.T) {
	db := openTestDB(t)
	admin, _ := seedAccessFixture(t, db)

	items, err := PermittedNavigation(db, admin.Token)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestPermittedNavigationFollowsGrants(t *testing.T) {
	db := openTestDB(t)
	_, member := seedAccessFixture(t, db)

	items, err := PermittedNavigation(db, member.Token)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, ReplaceGrants(db, member.Token, []uint{1, 2}))

	items, err = PermittedNavigation(db, member.Token)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "dashboard", items[0].Key)
	assert.Equal(t, "leads", items[1].Key)
}

func TestPermittedNavigationUnknownUser(t *testing.T) {
	db := openTestDB(t)
	seedAccessFixture(t, db)

	_, err := PermittedNavigation(db, "usr_ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPermittedNavigationExcludesDeactivatedUsers(t *testing.T) {
	db := openTestDB(t)
	_, member := seedAccessFixture(t, db)

	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", member.ID).
		Update("is_active", false).Error)

	_, err := PermittedNavigation(db, member.Token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestReplaceGrantsIsWholesale(t *testing.T) {
	db := openTestDB(t)
	_, member := seedAccessFixture(t, db)

	require.NoError(t, ReplaceGrants(db, member.Token, []uint{1, 2, 3}))
	require.NoError(t, ReplaceGrants(db, member.Token, []uint{3}))

	ids, err := GrantedNavigationIDs(db, member.Token)
	require.NoError(t, err)
	assert.Equal(t, []uint{3}, ids)
}

func TestReplaceGrantsEmptySetRevokesAll(t *testing.T) {
	db := openTestDB(t)
	_, member := seedAccessFixture(t, db)

	require.NoError(t, ReplaceGrants(db, member.Token, []uint{1, 2}))
	require.NoError(t, ReplaceGrants(db, member.Token, nil))

	ids, err := GrantedNavigationIDs(db, member.Token)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReplaceGrantsUnknownUser(t *testing.T) {
	db := openTestDB(t)
	seedAccessFixture(t, db)

	err := ReplaceGrants(db, "usr_ghost", []uint{1})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
