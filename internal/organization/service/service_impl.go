package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	"github.com/rollcallhq/rollcall/internal/authorization"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/hierarchy"
	"github.com/rollcallhq/rollcall/internal/organization/domain"
	quotadomain "github.com/rollcallhq/rollcall/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Node        *snowflake.Node
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	Quota       quotadomain.Service
	Authz       authorization.Service
}

type service struct {
	db          *gorm.DB
	log         *zap.Logger
	node        *snowflake.Node
	repo        domain.Repository
	accountRepo accountdomain.Repository
	quota       quotadomain.Service
	authz       authorization.Service
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:          p.DB,
		log:         p.Log.Named("organization.service"),
		node:        p.Node,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		quota:       p.Quota,
		authz:       p.Authz,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	switch req.Type {
	case domain.OrgTypeDistrict, domain.OrgTypeSchool, domain.OrgTypeCompany:
	default:
		return nil, domain.ErrInvalidType
	}

	actor, err := s.accountRepo.FindByID(ctx, s.db, req.ActorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, accountdomain.ErrCreatorMissing
	}

	allowed, err := s.authz.CanCreateOrganization(ctx, actor.Role, req.Type)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, accountdomain.ErrNotPermitted
	}

	var parentID snowflake.ID
	if raw := strings.TrimSpace(req.ParentOrganizationID); raw != "" {
		parentID, err = snowflake.ParseString(raw)
		if err != nil || parentID == 0 {
			return nil, domain.ErrNotFound
		}
		// Walking the owner's tree to the root validates the chain the new
		// organization will hang from: a parent outside the tree, a broken
		// parent pointer, or a cycle all fail here instead of corrupting
		// later lookups.
		tree, err := hierarchy.BuildOrganizationTree(ctx, s.db, s.repo, actor.BillingOwnerID)
		if err != nil {
			return nil, err
		}
		rootOwner, err := tree.ResolveRootBillingOwner(parentID)
		if err != nil {
			return nil, err
		}
		if rootOwner != actor.BillingOwnerID {
			return nil, domain.ErrNotOwned
		}
	} else {
		parentID = actor.OrganizationID
	}

	org := &domain.Organization{
		ID:                   s.node.Generate(),
		Type:                 req.Type,
		Name:                 name,
		Slug:                 slug.Make(name),
		ParentOrganizationID: parentID,
		BillingOwnerID:       actor.BillingOwnerID,
	}

	// Only schools are metered; companies and districts ride on the account
	// subscription itself.
	if req.Type == domain.OrgTypeSchool {
		subject := quotadomain.Subject{
			ActorID:        actor.ID,
			OrganizationID: actor.OrganizationID,
			Managed:        actor.IsManaged(),
		}
		_, err = s.quota.WithAdmission(ctx, actor.BillingOwnerID,
			catalogdomain.ResourceKey{Base: catalogdomain.KeySchool}, 1, subject,
			func(tx *gorm.DB) error {
				return s.repo.Insert(ctx, tx, org)
			})
		if err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.Insert(ctx, s.db, org); err != nil {
			return nil, err
		}
	}

	s.log.Info("organization created",
		zap.String("organization_id", org.ID.String()),
		zap.String("type", string(org.Type)),
		zap.String("slug", org.Slug))
	return org, nil
}

func (s *service) Get(ctx context.Context, actorID, id snowflake.ID) (*domain.Organization, error) {
	org, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}

	actor, err := s.accountRepo.FindByID(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.BillingOwnerID != org.BillingOwnerID {
		return nil, domain.ErrNotOwned
	}
	return org, nil
}

func (s *service) List(ctx context.Context, actorID snowflake.ID) ([]*domain.Organization, error) {
	actor, err := s.accountRepo.FindByID(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, accountdomain.ErrNotFound
	}
	return s.repo.ListByBillingOwner(ctx, s.db, actor.BillingOwnerID)
}

// Delete removes an organization once nothing references it: no member
// accounts and no child organizations.
func (s *service) Delete(ctx context.Context, actorID, id snowflake.ID) error {
	org, err := s.Get(ctx, actorID, id)
	if err != nil {
		return err
	}

	members, err := s.accountRepo.CountByOrganization(ctx, s.db, org.ID)
	if err != nil {
		return err
	}
	children, err := s.repo.CountChildren(ctx, s.db, org.ID)
	if err != nil {
		return err
	}
	if members > 0 || children > 0 {
		return domain.ErrStillInUse
	}

	if err := s.repo.Delete(ctx, s.db, org.ID); err != nil {
		return err
	}
	s.log.Info("organization deleted", zap.String("organization_id", org.ID.String()))
	return nil
}
