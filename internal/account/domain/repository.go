package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Account, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Account, error)
	ListByBillingOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*Account, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertChildLink(ctx context.Context, db *gorm.DB, link *ChildLink) error
	ListChildLinksByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*ChildLink, error)
	ListChildLinksByParent(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]*ChildLink, error)
	DeleteChildLinksFor(ctx context.Context, db *gorm.DB, accountID snowflake.ID) error

	CountByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
}
