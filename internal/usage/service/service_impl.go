package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/clock"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	usagedomain "github.com/rollcallhq/rollcall/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	AccountRepo accountdomain.Repository
	OrgRepo     orgdomain.Repository
}

type service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	accountRepo accountdomain.Repository
	orgRepo     orgdomain.Repository
}

func NewService(p ServiceParam) usagedomain.Service {
	return &service{
		db:          p.DB,
		log:         p.Log.Named("usage.service"),
		clock:       p.Clock,
		accountRepo: p.AccountRepo,
		orgRepo:     p.OrgRepo,
	}
}

func (s *service) GetUsage(ctx context.Context, ownerID snowflake.ID) (*usagedomain.Snapshot, error) {
	return s.GetUsageTx(ctx, s.db, ownerID)
}

// RefreshUsage is GetUsage by another name: there is no cached state to
// invalidate, so refreshing is just recounting.
func (s *service) RefreshUsage(ctx context.Context, ownerID snowflake.ID) (*usagedomain.Snapshot, error) {
	return s.GetUsageTx(ctx, s.db, ownerID)
}

// GetUsageTx enumerates every account, child link, and organization tagged
// with the billing owner and accumulates counters in one pass. Cost is O(n)
// in entities under the owner; n is bounded by plan limits.
func (s *service) GetUsageTx(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID) (*usagedomain.Snapshot, error) {
	snapshot := usagedomain.NewSnapshot(ownerID, s.clock.Now(ctx))
	if ownerID == 0 {
		return snapshot, nil
	}

	accounts, err := s.accountRepo.ListByBillingOwner(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	var ownerOrgID snowflake.ID
	for _, account := range accounts {
		if account.ID == ownerID {
			ownerOrgID = account.OrganizationID
		}

		switch {
		case account.Role == catalogdomain.RoleStudent:
			snapshot.StudentsTotal++
			if account.CreatorID != 0 {
				snapshot.StudentsPerStaff[account.CreatorID]++
			}
			if account.OrganizationID != 0 {
				snapshot.StudentsPerSchool[account.OrganizationID]++
			}
		case account.Role == catalogdomain.RoleEmployee:
			snapshot.EmployeesTotal++
			if account.CreatorID != 0 {
				snapshot.EmployeesPerStaff[account.CreatorID]++
			}
		case account.Role.IsSchoolStaff():
			// Only teachers, counselors, and social workers are staff.
			// School admins are administrative heads and stay out of the
			// staff pools, district-provisioned or not.
			snapshot.StaffTotal++
			if account.OrganizationID != 0 {
				snapshot.StaffPerSchool[account.OrganizationID]++
			}
		case account.Role.IsEmployerStaff():
			// Employer staff counts toward the flat pool only; there is no
			// per-company scoping.
			snapshot.StaffTotal++
		}
	}

	links, err := s.accountRepo.ListChildLinksByOwner(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	snapshot.Children = int64(len(links))

	orgs, err := s.orgRepo.ListByBillingOwner(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, org := range orgs {
		// The owner's own self-titled organization does not count against the
		// schools limit.
		if org.ID == ownerOrgID {
			continue
		}
		if org.Type == orgdomain.OrgTypeSchool {
			snapshot.Schools++
		}
	}

	return snapshot, nil
}
