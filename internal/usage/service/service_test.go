package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	accountrepository "github.com/rollcallhq/rollcall/internal/account/repository"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/clock"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	orgrepository "github.com/rollcallhq/rollcall/internal/organization/repository"
	usagedomain "github.com/rollcallhq/rollcall/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (usagedomain.Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&accountdomain.ChildLink{},
		&orgdomain.Organization{},
	))

	svc := NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.SystemClock{},
		AccountRepo: accountrepository.NewAccountRepository(),
		OrgRepo:     orgrepository.NewOrganizationRepository(),
	})
	return svc, db
}

func seed(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	require.NoError(t, db.Create(value).Error)
}

func TestGetUsageUnknownOwnerIsZero(t *testing.T) {
	svc, _ := newTestService(t)

	snapshot, err := svc.GetUsage(context.Background(), snowflake.ID(123456789))
	require.NoError(t, err)
	assert.Zero(t, snapshot.Children)
	assert.Zero(t, snapshot.StaffTotal)
	assert.Empty(t, snapshot.StudentsPerStaff)
	assert.False(t, snapshot.ComputedAt.IsZero())
}

func TestGetUsageCountsChildLinks(t *testing.T) {
	svc, db := newTestService(t)
	owner := snowflake.ID(100)

	seed(t, db, &accountdomain.Account{ID: owner, Role: catalogdomain.RoleParent, Email: "p@example.com", BillingOwnerID: owner})
	for i := snowflake.ID(1); i <= 3; i++ {
		seed(t, db, &accountdomain.ChildLink{ID: 200 + i, ParentID: owner, ChildID: 300 + i, BillingOwnerID: owner})
	}

	snapshot, err := svc.GetUsage(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snapshot.Children)
	assert.Equal(t, int64(3), snapshot.FlatCount(catalogdomain.LimitChildren))
}

func TestGetUsageScopesStudentsByStaff(t *testing.T) {
	svc, db := newTestService(t)
	owner := snowflake.ID(100)
	teacherA := snowflake.ID(101)
	teacherB := snowflake.ID(102)
	school := snowflake.ID(900)

	seed(t, db, &accountdomain.Account{ID: owner, Role: catalogdomain.RoleSchoolAdmin, Email: "admin@example.com", BillingOwnerID: owner})
	seed(t, db, &orgdomain.Organization{ID: school, Type: orgdomain.OrgTypeSchool, Name: "North", Slug: "north", BillingOwnerID: owner})
	seed(t, db, &accountdomain.Account{ID: teacherA, Role: catalogdomain.RoleTeacher, Email: "ta@example.com", OrganizationID: school, CreatorID: owner, BillingOwnerID: owner})
	seed(t, db, &accountdomain.Account{ID: teacherB, Role: catalogdomain.RoleCounselor, Email: "tb@example.com", OrganizationID: school, CreatorID: owner, BillingOwnerID: owner})

	for i := snowflake.ID(1); i <= 2; i++ {
		seed(t, db, &accountdomain.Account{ID: 400 + i, Role: catalogdomain.RoleStudent, Email: "s" + i.String() + "@example.com", OrganizationID: school, CreatorID: teacherA, BillingOwnerID: owner})
	}
	seed(t, db, &accountdomain.Account{ID: 500, Role: catalogdomain.RoleStudent, Email: "s3@example.com", OrganizationID: school, CreatorID: teacherB, BillingOwnerID: owner})

	snapshot, err := svc.GetUsage(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snapshot.StaffTotal)
	assert.Equal(t, int64(3), snapshot.StudentsTotal)
	assert.Equal(t, int64(2), snapshot.ScopedCount(catalogdomain.LimitStudentsPerStaff, teacherA))
	assert.Equal(t, int64(1), snapshot.ScopedCount(catalogdomain.LimitStudentsPerStaff, teacherB))
	assert.Equal(t, int64(2), snapshot.StaffPerSchool[school])

	subKey, max := snapshot.MaxScoped(catalogdomain.LimitStudentsPerStaff)
	assert.Equal(t, teacherA, subKey)
	assert.Equal(t, int64(2), max)
}

func TestGetUsageExcludesSchoolAdminsFromStaff(t *testing.T) {
	svc, db := newTestService(t)
	district := snowflake.ID(100)
	principal := snowflake.ID(110)
	school := snowflake.ID(910)

	seed(t, db, &accountdomain.Account{ID: district, Role: catalogdomain.RoleDistrictAdmin, Email: "d@example.com", BillingOwnerID: district})
	seed(t, db, &orgdomain.Organization{ID: school, Type: orgdomain.OrgTypeSchool, Name: "West", Slug: "west", BillingOwnerID: district})
	seed(t, db, &accountdomain.Account{ID: principal, Role: catalogdomain.RoleSchoolAdmin, Email: "principal@example.com", OrganizationID: school, CreatorID: district, BillingOwnerID: district})
	for i := snowflake.ID(1); i <= 10; i++ {
		seed(t, db, &accountdomain.Account{ID: 600 + i, Role: catalogdomain.RoleTeacher, Email: "t" + i.String() + "@example.com", OrganizationID: school, CreatorID: principal, BillingOwnerID: district})
	}

	// The district-provisioned school admin is an administrative head, not
	// staff: only the ten teachers count.
	snapshot, err := svc.GetUsage(context.Background(), district)
	require.NoError(t, err)
	assert.Equal(t, int64(10), snapshot.StaffTotal)
	assert.Equal(t, int64(10), snapshot.StaffPerSchool[school])
}

func TestGetUsageExcludesOwnersOwnOrganization(t *testing.T) {
	svc, db := newTestService(t)
	owner := snowflake.ID(100)
	ownOrg := snowflake.ID(901)
	school := snowflake.ID(902)

	seed(t, db, &accountdomain.Account{ID: owner, Role: catalogdomain.RoleDistrictAdmin, Email: "d@example.com", OrganizationID: ownOrg, BillingOwnerID: owner})
	seed(t, db, &orgdomain.Organization{ID: ownOrg, Type: orgdomain.OrgTypeSchool, Name: "District HQ", Slug: "hq", BillingOwnerID: owner})
	seed(t, db, &orgdomain.Organization{ID: school, Type: orgdomain.OrgTypeSchool, Name: "East", Slug: "east", BillingOwnerID: owner})

	snapshot, err := svc.GetUsage(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.Schools)
}

func TestRefreshUsageMatchesGetUsage(t *testing.T) {
	svc, db := newTestService(t)
	owner := snowflake.ID(100)

	seed(t, db, &accountdomain.Account{ID: owner, Role: catalogdomain.RoleParent, Email: "p@example.com", BillingOwnerID: owner})
	seed(t, db, &accountdomain.ChildLink{ID: 201, ParentID: owner, ChildID: 301, BillingOwnerID: owner})

	got, err := svc.GetUsage(context.Background(), owner)
	require.NoError(t, err)
	refreshed, err := svc.RefreshUsage(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, got.Children, refreshed.Children)
	assert.Equal(t, got.BillingOwnerID, refreshed.BillingOwnerID)
}
