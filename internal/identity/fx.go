package identity

import (
	"github.com/rollcallhq/rollcall/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(
		service.NewService,
	),
)
