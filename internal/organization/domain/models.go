// Package domain contains persistence models for organizations.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("organization_not_found")
	ErrInvalidType = errors.New("invalid_organization_type")
	ErrInvalidName = errors.New("invalid_organization_name")
	ErrStillInUse  = errors.New("organization_still_in_use")
	ErrNotOwned    = errors.New("organization_not_owned")
)

// OrganizationType distinguishes the shapes a tenant can take.
type OrganizationType string

const (
	OrgTypeDistrict OrganizationType = "district"
	OrgTypeSchool   OrganizationType = "school"
	OrgTypeCompany  OrganizationType = "company"
)

// Organization groups accounts under a district, school, or employer.
type Organization struct {
	ID                   snowflake.ID     `json:"id" gorm:"primaryKey"`
	Type                 OrganizationType `json:"type" gorm:"type:text;not null"`
	Name                 string           `json:"name" gorm:"type:text;not null"`
	Slug                 string           `json:"slug" gorm:"type:text;not null;index"`
	ParentOrganizationID snowflake.ID     `json:"parent_organization_id,omitempty" gorm:"index"`
	BillingOwnerID       snowflake.ID     `json:"billing_owner_id" gorm:"not null;index"`
	CreatedAt            time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

type CreateRequest struct {
	ActorID              snowflake.ID     `json:"-"`
	Type                 OrganizationType `json:"type" binding:"required"`
	Name                 string           `json:"name" binding:"required"`
	ParentOrganizationID string           `json:"parent_organization_id"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Organization, error)
	Get(ctx context.Context, actorID, id snowflake.ID) (*Organization, error)
	List(ctx context.Context, actorID snowflake.ID) ([]*Organization, error)
	Delete(ctx context.Context, actorID, id snowflake.ID) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, org *Organization) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Organization, error)
	ListByBillingOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*Organization, error)
	CountChildren(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
