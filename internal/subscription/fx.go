package subscription

import (
	"github.com/rollcallhq/rollcall/internal/subscription/repository"
	"github.com/rollcallhq/rollcall/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(
		repository.NewSubscriptionRepository,
		service.NewService,
	),
)
