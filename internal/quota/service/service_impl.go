package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/observability"
	quotadomain "github.com/rollcallhq/rollcall/internal/quota/domain"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
	usagedomain "github.com/rollcallhq/rollcall/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	SubRepo  subscriptiondomain.Repository
	UsageSvc usagedomain.Service
	Metrics  *observability.Metrics `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	subRepo  subscriptiondomain.Repository
	usageSvc usagedomain.Service
	metrics  *observability.Metrics
	locks    lockRing
}

func NewService(p ServiceParam) quotadomain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("quota.service"),
		subRepo:  p.SubRepo,
		usageSvc: p.UsageSvc,
		metrics:  p.Metrics,
	}
}

func (s *service) CheckLimit(ctx context.Context, ownerID snowflake.ID, key catalogdomain.ResourceKey, requested int64, subject quotadomain.Subject) (quotadomain.Decision, error) {
	decision, err := s.check(ctx, s.db, ownerID, key, requested, subject, false)
	if err == nil {
		s.metrics.RecordAdmission(ctx, key.String(), decision.Allowed, decision.Reason)
	}
	return decision, err
}

// WithAdmission holds the owner lock across check and write so two concurrent
// requests against the same owner cannot both read usage below the limit and
// jointly exceed it.
func (s *service) WithAdmission(ctx context.Context, ownerID snowflake.ID, key catalogdomain.ResourceKey, requested int64, subject quotadomain.Subject, fn func(tx *gorm.DB) error) (quotadomain.Decision, error) {
	if ownerID == 0 {
		return quotadomain.Decision{}, quotadomain.ErrInvalidRequest
	}

	unlock := s.locks.lock(ownerID)
	defer unlock()

	var decision quotadomain.Decision
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		decision, err = s.check(ctx, tx, ownerID, key, requested, subject, true)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return decision.Err()
		}
		return fn(tx)
	})
	if decision.Requested > 0 {
		s.metrics.RecordAdmission(ctx, key.String(), decision.Allowed, decision.Reason)
	}
	if err != nil {
		return decision, err
	}
	return decision, nil
}

func (s *service) check(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID, key catalogdomain.ResourceKey, requested int64, subject quotadomain.Subject, forUpdate bool) (quotadomain.Decision, error) {
	// requested == 0 is a pure headroom check: it denies only when current
	// usage already sits above the limit, as after a forced downgrade.
	if ownerID == 0 || requested < 0 {
		return quotadomain.Decision{}, quotadomain.ErrInvalidRequest
	}

	var (
		sub *subscriptiondomain.Subscription
		err error
	)
	if forUpdate {
		sub, err = s.subRepo.FindByOwnerForUpdate(ctx, tx, ownerID)
	} else {
		sub, err = s.subRepo.FindByOwner(ctx, tx, ownerID)
	}
	if err != nil {
		return quotadomain.Decision{}, err
	}
	if sub == nil {
		return deny(0, 0, requested, quotadomain.ReasonSubscriptionMissing), nil
	}
	if !sub.AdmitsCreation() {
		s.log.Info("admission denied: subscription not active",
			zap.String("billing_owner_id", ownerID.String()),
			zap.String("status", string(sub.Status)))
		return deny(0, 0, requested, quotadomain.ReasonSubscriptionInactive), nil
	}

	snapshot, err := s.usageSvc.GetUsageTx(ctx, tx, ownerID)
	if err != nil {
		return quotadomain.Decision{}, err
	}

	current, limit, ok, err := resolveLimitView(sub, snapshot, key, subject)
	if err != nil {
		return quotadomain.Decision{}, err
	}
	if !ok {
		return deny(current, 0, requested, quotadomain.ReasonLimitNotConfigured), nil
	}

	if current+requested > limit {
		s.log.Info("admission denied: limit exceeded",
			zap.String("billing_owner_id", ownerID.String()),
			zap.String("resource_key", key.String()),
			zap.Int64("current", current),
			zap.Int64("limit", limit),
			zap.Int64("requested", requested))
		return deny(current, limit, requested, quotadomain.ReasonLimitExceeded), nil
	}

	return quotadomain.Decision{
		Allowed:   true,
		Current:   current,
		Limit:     limit,
		Requested: requested,
	}, nil
}

// resolveLimitView picks the (current, limit) pair the request is admitted
// against.
func resolveLimitView(sub *subscriptiondomain.Subscription, snapshot *usagedomain.Snapshot, key catalogdomain.ResourceKey, subject quotadomain.Subject) (current, limit int64, ok bool, err error) {
	limits := sub.LimitSet()
	limitKey := key.LimitKey()

	// Staff on a district plan always draws from the per-school partition:
	// district packages carry staff_per_school, never a flat staff limit.
	// The same redirect applies to any managed actor creating staff, since
	// their billing owner's plan partitions staff by school.
	if key.Base == catalogdomain.KeyStaff &&
		(subject.Managed || sub.Role == catalogdomain.RoleDistrictAdmin) {
		if subject.OrganizationID == 0 {
			return 0, 0, false, quotadomain.ErrMissingSubKey
		}
		limitKey = catalogdomain.LimitStaffPerSchool
		current = snapshot.ScopedCount(limitKey, subject.OrganizationID)
		limit, ok = limits.Get(limitKey)
		return current, limit, ok, nil
	}

	if key.ScopedBase() {
		subKey := key.SubKey
		if subKey == 0 {
			subKey = subject.ActorID
		}
		if subKey == 0 {
			return 0, 0, false, quotadomain.ErrMissingSubKey
		}
		current = snapshot.ScopedCount(limitKey, subKey)
		limit, ok = limits.Get(limitKey)
		return current, limit, ok, nil
	}

	current = snapshot.FlatCount(limitKey)
	limit, ok = limits.Get(limitKey)
	return current, limit, ok, nil
}

func deny(current, limit, requested int64, reason string) quotadomain.Decision {
	return quotadomain.Decision{
		Allowed:    false,
		Current:    current,
		Limit:      limit,
		Requested:  requested,
		Reason:     reason,
		CanUpgrade: true,
	}
}
