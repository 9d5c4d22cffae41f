package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/clock"
	"github.com/rollcallhq/rollcall/internal/observability"
	planchangedomain "github.com/rollcallhq/rollcall/internal/planchange/domain"
	"github.com/rollcallhq/rollcall/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultPeriod sizes the first billing period until the payment provider
// reports authoritative period bounds.
const defaultPeriod = 30 * 24 * time.Hour

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Node       *snowflake.Node
	Repo       domain.Repository
	CatalogSvc catalogdomain.Service
	PlanChange planchangedomain.Service
	Metrics    *observability.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	node       *snowflake.Node
	repo       domain.Repository
	catalogSvc catalogdomain.Service
	planChange planchangedomain.Service
	metrics    *observability.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("subscription.service"),
		clock:      p.Clock,
		node:       p.Node,
		repo:       p.Repo,
		catalogSvc: p.CatalogSvc,
		planChange: p.PlanChange,
		metrics:    p.Metrics,
	}
}

func (s *service) GetByOwner(ctx context.Context, ownerID snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.FindByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (s *service) Start(ctx context.Context, req domain.StartRequest) (*domain.Subscription, error) {
	if req.BillingOwnerID == 0 {
		return nil, domain.ErrInvalidOwner
	}

	pkg, err := s.catalogSvc.GetPackage(req.Role, req.PackageID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	sub := &domain.Subscription{
		ID:                 s.node.Generate(),
		BillingOwnerID:     req.BillingOwnerID,
		Role:               req.Role,
		PackageID:          pkg.ID,
		Limits:             datatypes.NewJSONType(pkg.Limits),
		Status:             domain.StatusIncomplete,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(defaultPeriod),
	}
	if req.TrialDays > 0 {
		sub.Status = domain.StatusTrialing
		sub.CurrentPeriodEnd = now.Add(time.Duration(req.TrialDays) * 24 * time.Hour)
	}

	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription started",
		zap.String("billing_owner_id", req.BillingOwnerID.String()),
		zap.String("package_id", pkg.ID),
		zap.String("status", string(sub.Status)))
	return sub, nil
}

func (s *service) ChangePlan(ctx context.Context, ownerID snowflake.ID, targetPackageID string) (*domain.Subscription, error) {
	if ownerID == 0 {
		return nil, domain.ErrInvalidOwner
	}

	var sub *domain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.repo.FindByOwnerForUpdate(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrNotFound
		}
		if !sub.AdmitsCreation() {
			return domain.ErrNotActive
		}
		if sub.PackageID == targetPackageID {
			return domain.ErrSamePackage
		}

		target, err := s.catalogSvc.GetPackage(sub.Role, targetPackageID)
		if err != nil {
			return err
		}

		current, err := s.catalogSvc.GetPackage(sub.Role, sub.PackageID)
		if errors.Is(err, catalogdomain.ErrPackageNotFound) {
			// A package retired from the catalog has no price to compare
			// against; validate usage as if the change were a downgrade.
			current = catalogdomain.Package{
				Role:       sub.Role,
				ID:         sub.PackageID,
				PriceCents: target.PriceCents + 1,
				Limits:     sub.LimitSet(),
			}
		} else if err != nil {
			return err
		}

		if err := s.planChange.ValidateChange(ctx, ownerID, current, target); err != nil {
			return err
		}

		// PackageID and the limit snapshot move together; a subscription
		// must never carry one package's id with another package's limits.
		sub.PackageID = target.ID
		sub.Limits = datatypes.NewJSONType(target.Limits)
		return s.repo.Save(ctx, tx, sub)
	})
	if err != nil {
		s.metrics.RecordPlanChange(ctx, "rejected")
		return nil, err
	}

	s.metrics.RecordPlanChange(ctx, "applied")
	s.log.Info("plan changed",
		zap.String("billing_owner_id", ownerID.String()),
		zap.String("package_id", targetPackageID))
	return sub, nil
}

func (s *service) ApplyProviderEvent(ctx context.Context, event domain.ProviderEvent) error {
	if event.BillingOwnerID == 0 {
		return domain.ErrInvalidOwner
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByOwnerForUpdate(ctx, tx, event.BillingOwnerID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrNotFound
		}

		switch event.Type {
		case domain.EventSubscriptionUpdated:
			// Update events carry the provider's own status instead of
			// driving a transition.
			if event.Status != "" {
				if !domain.ValidStatus(event.Status) {
					return domain.ErrUnknownEvent
				}
				sub.Status = event.Status
			}
		default:
			next, err := domain.Transition(sub.Status, event.Type)
			if err != nil {
				s.log.Warn("rejected subscription transition",
					zap.String("billing_owner_id", event.BillingOwnerID.String()),
					zap.String("status", string(sub.Status)),
					zap.String("event", string(event.Type)))
				return err
			}
			sub.Status = next
		}

		if event.PackageID != "" && event.PackageID != sub.PackageID {
			pkg, err := s.catalogSvc.GetPackage(sub.Role, event.PackageID)
			if err != nil {
				return err
			}
			sub.PackageID = pkg.ID
			sub.Limits = datatypes.NewJSONType(pkg.Limits)
		}
		if event.CancelAtPeriodEnd != nil {
			sub.CancelAtPeriodEnd = *event.CancelAtPeriodEnd
		}
		if event.PeriodStart != nil {
			sub.CurrentPeriodStart = *event.PeriodStart
		}
		if event.PeriodEnd != nil {
			sub.CurrentPeriodEnd = *event.PeriodEnd
		}

		if err := s.repo.Save(ctx, tx, sub); err != nil {
			return err
		}

		s.log.Info("provider event applied",
			zap.String("billing_owner_id", event.BillingOwnerID.String()),
			zap.String("event", string(event.Type)),
			zap.String("status", string(sub.Status)))
		return nil
	})
}

func (s *service) SetCancelAtPeriodEnd(ctx context.Context, ownerID snowflake.ID, cancel bool) (*domain.Subscription, error) {
	if ownerID == 0 {
		return nil, domain.ErrInvalidOwner
	}

	var sub *domain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.repo.FindByOwnerForUpdate(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrNotFound
		}
		sub.CancelAtPeriodEnd = cancel
		return s.repo.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
