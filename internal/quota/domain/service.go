package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"gorm.io/gorm"
)

type Service interface {
	// CheckLimit decides whether requested more units of the resource may be
	// created under the billing owner. Denials are returned in the Decision,
	// never as a silent allow; the error return is for lookup failures only.
	CheckLimit(ctx context.Context, ownerID snowflake.ID, key catalogdomain.ResourceKey, requested int64, subject Subject) (Decision, error)

	// WithAdmission makes check-then-create linearizable per billing owner:
	// it serializes on the owner, re-checks the limit inside a transaction,
	// and runs fn with that transaction only when admitted. A bulk create
	// passes its full batch size as requested; the reservation is all or
	// nothing.
	WithAdmission(ctx context.Context, ownerID snowflake.ID, key catalogdomain.ResourceKey, requested int64, subject Subject, fn func(tx *gorm.DB) error) (Decision, error)
}
