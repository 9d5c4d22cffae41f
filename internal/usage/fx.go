package usage

import (
	"github.com/rollcallhq/rollcall/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage",
	fx.Provide(
		service.NewService,
	),
)
