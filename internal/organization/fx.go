package organization

import (
	"github.com/rollcallhq/rollcall/internal/organization/repository"
	"github.com/rollcallhq/rollcall/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization",
	fx.Provide(
		repository.NewOrganizationRepository,
		service.NewService,
	),
)
