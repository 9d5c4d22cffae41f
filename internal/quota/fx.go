package quota

import (
	"github.com/rollcallhq/rollcall/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota",
	fx.Provide(
		service.NewService,
	),
)
