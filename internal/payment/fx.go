package payment

import (
	"github.com/rollcallhq/rollcall/internal/config"
	"github.com/rollcallhq/rollcall/internal/payment/adapters/stripe"
	"github.com/rollcallhq/rollcall/internal/payment/domain"
	"github.com/rollcallhq/rollcall/internal/payment/repository"
	"github.com/rollcallhq/rollcall/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.NewEventRepository,
		newRegistry,
		webhook.NewService,
	),
)

func newRegistry(cfg config.Config) (*webhook.Registry, error) {
	var adapters []domain.Adapter
	if cfg.StripeWebhookSecret != "" {
		adapter, err := stripe.NewAdapter(cfg.StripeWebhookSecret)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return webhook.NewRegistry(adapters...), nil
}
