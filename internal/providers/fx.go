package providers

import (
	"github.com/rollcallhq/rollcall/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	pdf.Module,
)
