// Package webhook ingests payment provider webhook deliveries.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	"github.com/redis/go-redis/v9"
	"github.com/rollcallhq/rollcall/internal/clock"
	"github.com/rollcallhq/rollcall/internal/config"
	"github.com/rollcallhq/rollcall/internal/observability"
	"github.com/rollcallhq/rollcall/internal/payment/domain"
	"github.com/rollcallhq/rollcall/internal/payment/repository"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Registry holds the configured provider adapters.
type Registry struct {
	adapters map[string]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	r := &Registry{adapters: make(map[string]domain.Adapter, len(adapters))}
	for _, adapter := range adapters {
		r.adapters[adapter.Provider()] = adapter
	}
	return r
}

func (r *Registry) Get(provider string) (domain.Adapter, bool) {
	adapter, ok := r.adapters[provider]
	return adapter, ok
}

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Node            *snowflake.Node
	Redis           *redis.Client
	Repo            repository.Repository
	Adapters        *Registry
	SubscriptionSvc subscriptiondomain.Service
	Cfg             config.Config
	Metrics         *observability.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	node            *snowflake.Node
	redis           *redis.Client
	repo            repository.Repository
	adapters        *Registry
	subscriptionSvc subscriptiondomain.Service
	metrics         *observability.Metrics
	replayTTL       time.Duration
}

func NewService(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payment.webhook"),
		clock:           p.Clock,
		node:            p.Node,
		redis:           p.Redis,
		repo:            p.Repo,
		adapters:        p.Adapters,
		subscriptionSvc: p.SubscriptionSvc,
		metrics:         p.Metrics,
		replayTTL:       time.Duration(p.Cfg.WebhookReplayTTLHours) * time.Hour,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return domain.ErrInvalidProvider
	}
	adapter, ok := s.adapters.Get(provider)
	if !ok {
		return domain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return domain.ErrInvalidPayload
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider))
		return err
	}

	parsed, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			s.log.Debug("webhook event ignored", zap.String("provider", provider))
			return nil
		}
		s.log.Error("webhook parse failed",
			zap.String("provider", provider),
			zap.Error(err))
		return err
	}

	fresh, err := s.markSeen(ctx, provider, parsed.ProviderEventID)
	if err != nil {
		return err
	}
	if !fresh {
		s.log.Info("webhook replay dropped",
			zap.String("provider", provider),
			zap.String("provider_event_id", parsed.ProviderEventID))
		return nil
	}

	record := &domain.EventRecord{
		ID:              s.node.Generate(),
		Provider:        provider,
		ProviderEventID: parsed.ProviderEventID,
		EventType:       string(parsed.Event.Type),
		BillingOwnerID:  parsed.Event.BillingOwnerID,
		Payload:         snappy.Encode(nil, payload),
		ReceivedAt:      s.clock.Now(ctx),
	}
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		// The unique index backs the redis guard; a racing duplicate insert
		// means the event was already handled.
		if errors.Is(err, domain.ErrDuplicateEvent) {
			return nil
		}
		return err
	}

	if err := s.subscriptionSvc.ApplyProviderEvent(ctx, parsed.Event); err != nil {
		// A failed apply must not poison the event id: drop the guard and
		// the archived record so the provider's retry gets a clean run.
		s.releaseReplayGuard(ctx, provider, parsed.ProviderEventID, record.ID)
		s.log.Error("provider event rejected",
			zap.String("provider", provider),
			zap.String("provider_event_id", parsed.ProviderEventID),
			zap.String("event", string(parsed.Event.Type)),
			zap.Error(err))
		return err
	}

	s.metrics.RecordWebhookEvent(ctx, provider, string(parsed.Event.Type))
	s.log.Info("webhook applied",
		zap.String("provider", provider),
		zap.String("provider_event_id", parsed.ProviderEventID),
		zap.String("event", string(parsed.Event.Type)))
	return nil
}

func (s *Service) RecentEvents(ctx context.Context, ownerID snowflake.ID, limit int) ([]*domain.EventRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repo.ListRecentByOwner(ctx, s.db, ownerID, limit)
}

// markSeen reserves the event id in redis. The first delivery wins; replays
// within the TTL observe the key and are dropped.
func (s *Service) markSeen(ctx context.Context, provider, eventID string) (bool, error) {
	return s.redis.SetNX(ctx, replayKey(provider, eventID), 1, s.replayTTL).Result()
}

// releaseReplayGuard undoes markSeen and the event archive after a failed
// apply. Best effort: a leftover key only delays the retry until the TTL.
func (s *Service) releaseReplayGuard(ctx context.Context, provider, eventID string, recordID snowflake.ID) {
	if err := s.repo.DeleteByID(ctx, s.db, recordID); err != nil {
		s.log.Warn("could not drop event record after failed apply",
			zap.String("provider_event_id", eventID),
			zap.Error(err))
	}
	if err := s.redis.Del(ctx, replayKey(provider, eventID)).Err(); err != nil {
		s.log.Warn("could not release replay guard after failed apply",
			zap.String("provider_event_id", eventID),
			zap.Error(err))
	}
}

func replayKey(provider, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", provider, eventID)
}
