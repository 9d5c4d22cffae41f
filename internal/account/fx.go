package account

import (
	"github.com/rollcallhq/rollcall/internal/account/repository"
	"github.com/rollcallhq/rollcall/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account",
	fx.Provide(
		repository.NewAccountRepository,
		service.NewService,
	),
)
