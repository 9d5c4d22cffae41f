package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	accountrepository "github.com/rollcallhq/rollcall/internal/account/repository"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/clock"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	orgrepository "github.com/rollcallhq/rollcall/internal/organization/repository"
	quotadomain "github.com/rollcallhq/rollcall/internal/quota/domain"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
	subscriptionrepository "github.com/rollcallhq/rollcall/internal/subscription/repository"
	usageservice "github.com/rollcallhq/rollcall/internal/usage/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&accountdomain.ChildLink{},
		&orgdomain.Organization{},
		&subscriptiondomain.Subscription{},
	))
	return db
}

func newQuotaService(t *testing.T, db *gorm.DB) quotadomain.Service {
	t.Helper()
	log := zap.NewNop()
	usageSvc := usageservice.NewService(usageservice.ServiceParam{
		DB:          db,
		Log:         log,
		Clock:       clock.SystemClock{},
		AccountRepo: accountrepository.NewAccountRepository(),
		OrgRepo:     orgrepository.NewOrganizationRepository(),
	})
	return NewService(ServiceParam{
		DB:       db,
		Log:      log,
		SubRepo:  subscriptionrepository.NewSubscriptionRepository(),
		UsageSvc: usageSvc,
	})
}

func seedSubscription(t *testing.T, db *gorm.DB, ownerID snowflake.ID, role catalogdomain.Role, status subscriptiondomain.SubscriptionStatus, limits catalogdomain.LimitSet) {
	t.Helper()
	now := time.Now()
	sub := &subscriptiondomain.Subscription{
		ID:                 snowflake.ID(ownerID + 9000),
		BillingOwnerID:     ownerID,
		Role:               role,
		PackageID:          "test_package",
		Limits:             datatypes.NewJSONType(limits),
		Status:             status,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, db.Create(sub).Error)
}

func seedAccount(t *testing.T, db *gorm.DB, account *accountdomain.Account) {
	t.Helper()
	require.NoError(t, db.Create(account).Error)
}

func TestCheckLimitChildren(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	parent := snowflake.ID(100)
	seedSubscription(t, db, parent, catalogdomain.RoleParent, subscriptiondomain.StatusActive, catalogdomain.LimitSet{
		catalogdomain.LimitChildren: 2,
	})
	for i, childID := range []snowflake.ID{201, 202} {
		seedAccount(t, db, &accountdomain.Account{
			ID:             childID,
			Role:           catalogdomain.RoleChild,
			Email:          []string{"a@example.com", "b@example.com"}[i],
			CreatorID:      parent,
			BillingOwnerID: parent,
		})
		require.NoError(t, db.Create(&accountdomain.ChildLink{
			ID:             childID + 500,
			ParentID:       parent,
			ChildID:        childID,
			BillingOwnerID: parent,
		}).Error)
	}

	dec, err := svc.CheckLimit(ctx, parent, catalogdomain.ResourceKey{Base: catalogdomain.KeyChild}, 1, quotadomain.Subject{ActorID: parent})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quotadomain.ReasonLimitExceeded, dec.Reason)
	assert.Equal(t, int64(2), dec.Current)
	assert.Equal(t, int64(2), dec.Limit)
	assert.Equal(t, int64(1), dec.Requested)
	assert.True(t, dec.CanUpgrade)

	var limitErr *quotadomain.LimitError
	require.ErrorAs(t, dec.Err(), &limitErr)
}

func TestCheckLimitScopedStudents(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	owner := snowflake.ID(300)
	teacher := snowflake.ID(301)
	seedSubscription(t, db, owner, catalogdomain.RoleTeacher, subscriptiondomain.StatusActive, catalogdomain.LimitSet{
		catalogdomain.LimitStudentsPerStaff: 3,
	})
	for i := 0; i < 2; i++ {
		seedAccount(t, db, &accountdomain.Account{
			ID:             snowflake.ID(400 + i),
			Role:           catalogdomain.RoleStudent,
			Email:          []string{"s1@example.com", "s2@example.com"}[i],
			CreatorID:      teacher,
			BillingOwnerID: owner,
		})
	}

	// Explicit composite sub-key.
	dec, err := svc.CheckLimit(ctx, owner,
		catalogdomain.ResourceKey{Base: catalogdomain.KeyStudent, SubKey: teacher},
		1, quotadomain.Subject{ActorID: owner})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(2), dec.Current)

	// Plain key defaults the scope to the acting staff member.
	dec, err = svc.CheckLimit(ctx, owner,
		catalogdomain.ResourceKey{Base: catalogdomain.KeyStudent},
		2, quotadomain.Subject{ActorID: teacher})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, int64(2), dec.Current)
	assert.Equal(t, int64(3), dec.Limit)
}

func TestCheckLimitManagedStaff(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	district := snowflake.ID(500)
	school := snowflake.ID(510)
	otherSchool := snowflake.ID(520)
	seedSubscription(t, db, district, catalogdomain.RoleDistrictAdmin, subscriptiondomain.StatusActive, catalogdomain.LimitSet{
		catalogdomain.LimitSchools:        10,
		catalogdomain.LimitStaffPerSchool: 2,
	})
	for i := 0; i < 2; i++ {
		seedAccount(t, db, &accountdomain.Account{
			ID:             snowflake.ID(600 + i),
			Role:           catalogdomain.RoleTeacher,
			Email:          []string{"t1@example.com", "t2@example.com"}[i],
			OrganizationID: school,
			BillingOwnerID: district,
		})
	}

	// A managed school admin draws from the per-school partition, which is
	// full.
	dec, err := svc.CheckLimit(ctx, district,
		catalogdomain.ResourceKey{Base: catalogdomain.KeyStaff},
		1, quotadomain.Subject{ActorID: 511, OrganizationID: school, Managed: true})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, int64(2), dec.Current)
	assert.Equal(t, int64(2), dec.Limit)

	// The district admin placing staff in a different school checks that
	// school's partition, which is empty.
	dec, err = svc.CheckLimit(ctx, district,
		catalogdomain.ResourceKey{Base: catalogdomain.KeyStaff},
		1, quotadomain.Subject{ActorID: district, OrganizationID: otherSchool})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(0), dec.Current)
	assert.Equal(t, int64(2), dec.Limit)

	// Staff under a district plan must land in a school.
	_, err = svc.CheckLimit(ctx, district,
		catalogdomain.ResourceKey{Base: catalogdomain.KeyStaff},
		1, quotadomain.Subject{ActorID: district})
	assert.ErrorIs(t, err, quotadomain.ErrMissingSubKey)
}

func TestCheckLimitDistrictAdmitsSchoolAdmins(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	// District packages carry schools, staff_per_school, and
	// students_per_staff. There is no flat staff key, so staff admission
	// must resolve through the per-school partition even for the root
	// district admin.
	district := snowflake.ID(550)
	school := snowflake.ID(560)
	seedSubscription(t, db, district, catalogdomain.RoleDistrictAdmin, subscriptiondomain.StatusActive, catalogdomain.LimitSet{
		catalogdomain.LimitSchools:          10,
		catalogdomain.LimitStaffPerSchool:   50,
		catalogdomain.LimitStudentsPerStaff: 35,
	})

	dec, err := svc.CheckLimit(ctx, district,
		catalogdomain.ResourceKey{Base: catalogdomain.KeyStaff},
		1, quotadomain.Subject{ActorID: district, OrganizationID: school})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(0), dec.Current)
	assert.Equal(t, int64(50), dec.Limit)
}

func TestCheckLimitSubscriptionStates(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	key := catalogdomain.ResourceKey{Base: catalogdomain.KeyChild}

	// No subscription at all.
	dec, err := svc.CheckLimit(ctx, snowflake.ID(700), key, 1, quotadomain.Subject{ActorID: 700})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quotadomain.ReasonSubscriptionMissing, dec.Reason)

	// Past-due subscription denies regardless of headroom.
	pastDue := snowflake.ID(701)
	seedSubscription(t, db, pastDue, catalogdomain.RoleParent, subscriptiondomain.StatusPastDue, catalogdomain.LimitSet{
		catalogdomain.LimitChildren: 10,
	})
	dec, err = svc.CheckLimit(ctx, pastDue, key, 1, quotadomain.Subject{ActorID: pastDue})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quotadomain.ReasonSubscriptionInactive, dec.Reason)

	// Trialing admits like active.
	trialing := snowflake.ID(702)
	seedSubscription(t, db, trialing, catalogdomain.RoleParent, subscriptiondomain.StatusTrialing, catalogdomain.LimitSet{
		catalogdomain.LimitChildren: 10,
	})
	dec, err = svc.CheckLimit(ctx, trialing, key, 1, quotadomain.Subject{ActorID: trialing})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestCheckLimitNotConfigured(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	owner := snowflake.ID(800)
	seedSubscription(t, db, owner, catalogdomain.RoleParent, subscriptiondomain.StatusActive, catalogdomain.LimitSet{
		catalogdomain.LimitChildren: 2,
	})

	dec, err := svc.CheckLimit(ctx, owner,
		catalogdomain.ResourceKey{Base: catalogdomain.KeySchool},
		1, quotadomain.Subject{ActorID: owner})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quotadomain.ReasonLimitNotConfigured, dec.Reason)
}

func TestCheckLimitInvalidRequest(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	_, err := svc.CheckLimit(ctx, 0, catalogdomain.ResourceKey{Base: catalogdomain.KeyChild}, 1, quotadomain.Subject{})
	assert.ErrorIs(t, err, quotadomain.ErrInvalidRequest)

	_, err = svc.CheckLimit(ctx, 1, catalogdomain.ResourceKey{Base: catalogdomain.KeyChild}, -1, quotadomain.Subject{ActorID: 1})
	assert.ErrorIs(t, err, quotadomain.ErrInvalidRequest)
}

func TestCheckLimitZeroRequested(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	// Three children against a limit of two, as left behind by a forced
	// package change. A zero-unit check reports the overage without
	// reserving anything.
	parent := snowflake.ID(850)
	seedSubscription(t, db, parent, catalogdomain.RoleParent, subscriptiondomain.StatusActive, catalogdomain.LimitSet{
		catalogdomain.LimitChildren: 2,
	})
	for i := snowflake.ID(0); i < 3; i++ {
		require.NoError(t, db.Create(&accountdomain.ChildLink{
			ID:             860 + i,
			ParentID:       parent,
			ChildID:        870 + i,
			BillingOwnerID: parent,
		}).Error)
	}

	key := catalogdomain.ResourceKey{Base: catalogdomain.KeyChild}
	dec, err := svc.CheckLimit(ctx, parent, key, 0, quotadomain.Subject{ActorID: parent})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quotadomain.ReasonLimitExceeded, dec.Reason)
	assert.Equal(t, int64(3), dec.Current)

	// At or under the limit the check passes.
	require.NoError(t, db.Where("id = ?", 862).Delete(&accountdomain.ChildLink{}).Error)
	dec, err = svc.CheckLimit(ctx, parent, key, 0, quotadomain.Subject{ActorID: parent})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(2), dec.Current)
}

func TestWithAdmissionBulk(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	owner := snowflake.ID(900)
	teacher := snowflake.ID(901)
	seedSubscription(t, db, owner, catalogdomain.RoleTeacher, subscriptiondomain.StatusActive, catalogdomain.LimitSet{
		catalogdomain.LimitStudentsPerStaff: 10,
	})
	for i := 0; i < 8; i++ {
		seedAccount(t, db, &accountdomain.Account{
			ID:             snowflake.ID(1000 + i),
			Role:           catalogdomain.RoleStudent,
			Email:          "bulk" + snowflake.ID(i).String() + "@example.com",
			CreatorID:      teacher,
			BillingOwnerID: owner,
		})
	}

	key := catalogdomain.ResourceKey{Base: catalogdomain.KeyStudent, SubKey: teacher}
	subject := quotadomain.Subject{ActorID: teacher}

	// A batch of 5 against 8/10 is one 5-unit reservation: rejected whole,
	// nothing written.
	var ran bool
	dec, err := svc.WithAdmission(ctx, owner, key, 5, subject, func(tx *gorm.DB) error {
		ran = true
		return nil
	})
	var limitErr *quotadomain.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.False(t, ran)
	assert.False(t, dec.Allowed)
	assert.Equal(t, int64(8), dec.Current)
	assert.Equal(t, int64(10), dec.Limit)
	assert.Equal(t, int64(5), dec.Requested)

	// A batch of 2 fits and runs the write inside the same transaction.
	dec, err = svc.WithAdmission(ctx, owner, key, 2, subject, func(tx *gorm.DB) error {
		for i := 0; i < 2; i++ {
			account := &accountdomain.Account{
				ID:             snowflake.ID(1100 + i),
				Role:           catalogdomain.RoleStudent,
				Email:          "fit" + snowflake.ID(i).String() + "@example.com",
				CreatorID:      teacher,
				BillingOwnerID: owner,
			}
			if err := tx.Create(account).Error; err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	// The next check sees the committed rows.
	dec, err = svc.CheckLimit(ctx, owner, key, 1, subject)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, int64(10), dec.Current)
}

func TestWithAdmissionRollsBackOnWriteError(t *testing.T) {
	db := newTestDB(t)
	svc := newQuotaService(t, db)
	ctx := context.Background()

	owner := snowflake.ID(1200)
	seedSubscription(t, db, owner, catalogdomain.RoleParent, subscriptiondomain.StatusActive, catalogdomain.LimitSet{
		catalogdomain.LimitChildren: 5,
	})

	wantErr := assert.AnError
	_, err := svc.WithAdmission(ctx, owner,
		catalogdomain.ResourceKey{Base: catalogdomain.KeyChild},
		1, quotadomain.Subject{ActorID: owner},
		func(tx *gorm.DB) error {
			link := &accountdomain.ChildLink{ID: 1, ParentID: owner, ChildID: 2, BillingOwnerID: owner}
			if err := tx.Create(link).Error; err != nil {
				return err
			}
			return wantErr
		})
	assert.ErrorIs(t, err, wantErr)

	var count int64
	require.NoError(t, db.Model(&accountdomain.ChildLink{}).Count(&count).Error)
	assert.Zero(t, count)
}
