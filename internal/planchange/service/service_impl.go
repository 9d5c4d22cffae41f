package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	planchangedomain "github.com/rollcallhq/rollcall/internal/planchange/domain"
	usagedomain "github.com/rollcallhq/rollcall/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	UsageSvc usagedomain.Service
}

type service struct {
	log      *zap.Logger
	usageSvc usagedomain.Service
}

func NewService(p ServiceParam) planchangedomain.Service {
	return &service{
		log:      p.Log.Named("planchange.service"),
		usageSvc: p.UsageSvc,
	}
}

func (s *service) ValidateChange(ctx context.Context, ownerID snowflake.ID, current, target catalogdomain.Package) error {
	if current.Role != target.Role {
		return planchangedomain.ErrRoleMismatch
	}

	// Upgrades and lateral moves always pass; only a cheaper package can
	// strand existing usage above a limit.
	if target.PriceCents >= current.PriceCents {
		return nil
	}

	snapshot, err := s.usageSvc.GetUsage(ctx, ownerID)
	if err != nil {
		return err
	}

	keys, err := catalogdomain.LimitKeysForRole(target.Role)
	if err != nil {
		return err
	}

	var violations []planchangedomain.Violation
	for _, key := range keys {
		limit, ok := target.Limits.Get(key)
		if !ok {
			// A key the target package does not carry admits nothing.
			limit = 0
		}

		var current int64
		var resourceKey string
		if catalogdomain.ScopedLimitKey(key) {
			// The worst-loaded sub-key decides; any single partition over
			// the new limit blocks the change.
			subKey, max := snapshot.MaxScoped(key)
			current = max
			resourceKey = key
			if subKey != 0 {
				resourceKey = fmt.Sprintf("%s:%s", key, subKey)
			}
		} else {
			current = snapshot.FlatCount(key)
			resourceKey = key
		}

		if current > limit {
			violations = append(violations, planchangedomain.Violation{
				ResourceKey: resourceKey,
				Current:     current,
				Limit:       limit,
				Excess:      current - limit,
				Message:     fmt.Sprintf("current usage %d exceeds the %s limit of %d; remove %d to downgrade", current, key, limit, current-limit),
			})
		}
	}

	if len(violations) > 0 {
		s.log.Info("plan change blocked",
			zap.String("billing_owner_id", ownerID.String()),
			zap.String("target_package", target.ID),
			zap.Int("violations", len(violations)))
		return &planchangedomain.ViolationsError{Violations: violations}
	}

	return nil
}
