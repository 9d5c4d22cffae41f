package cloudmetrics

import (
	"context"
	"runtime"
	"time"

	"github.com/rollcallhq/rollcall/internal/config"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushInterval = 30 * time.Minute

var Module = fx.Module("cloud.metrics",
	fx.Provide(
		NewPusher,
		func(cfg config.Config, pusher Pusher) *CloudMetrics {
			if !cfg.CloudMetrics.Enabled || pusher == nil {
				return nil
			}
			return New(pusher, cfg.AppName, cfg.AppVersion)
		},
	),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, c *CloudMetrics, log *zap.Logger, db *gorm.DB) {
	if c == nil {
		return
	}
	log = log.Named("cloud.metrics")

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting cloud metrics worker")
			go func() {
				ticker := time.NewTicker(pushInterval)
				defer ticker.Stop()

				collectAndPush(ctx, c, db, log)
				for {
					select {
					case <-ticker.C:
						collectAndPush(ctx, c, db, log)
					case <-ctx.Done():
						log.Info("stopping cloud metrics worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func collectAndPush(ctx context.Context, c *CloudMetrics, db *gorm.DB, log *zap.Logger) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.SetMemoryUsage(m.Sys)

	var count int64
	if err := db.WithContext(ctx).Table("accounts").Count(&count).Error; err == nil {
		c.SetAccountsTotal(count)
	}
	if err := db.WithContext(ctx).Table("organizations").Count(&count).Error; err == nil {
		c.SetOrganizationsTotal(count)
	}
	err := db.WithContext(ctx).Table("subscriptions").
		Where("status IN ?", []subscriptiondomain.SubscriptionStatus{
			subscriptiondomain.StatusActive,
			subscriptiondomain.StatusTrialing,
		}).
		Count(&count).Error
	if err == nil {
		c.SetActiveSubscriptions(count)
	}

	if err := c.Push(ctx); err != nil {
		log.Error("cloud metrics push failed", zap.Error(err))
	}
}
