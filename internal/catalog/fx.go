package catalog

import (
	"github.com/rollcallhq/rollcall/internal/catalog/service"
	"github.com/rollcallhq/rollcall/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(
		func(cfg config.Config) (*service.Holder, error) {
			return service.NewHolder(cfg.CatalogPath)
		},
		service.NewService,
	),
)
