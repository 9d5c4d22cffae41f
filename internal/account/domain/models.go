// Package domain contains persistence models for tenant accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"gorm.io/datatypes"
)

// Account is a tenant entity: a person or admin in some hierarchy.
//
// CreatorID is the direct parent in the management hierarchy (who may edit or
// delete this account). BillingOwnerID is the root of the billing hierarchy
// (who pays). The two are distinct relations and are never conflated: a
// teacher created by a school admin under a district carries the district's
// BillingOwnerID, not the school admin's id.
type Account struct {
	ID             snowflake.ID       `json:"id" gorm:"primaryKey"`
	Role           catalogdomain.Role `json:"role" gorm:"type:text;not null;index"`
	Email          string             `json:"email" gorm:"type:text;not null;uniqueIndex"`
	DisplayName    string             `json:"display_name" gorm:"type:text"`
	OrganizationID snowflake.ID       `json:"organization_id,omitempty" gorm:"index"`
	CreatorID      snowflake.ID       `json:"creator_id,omitempty" gorm:"index"`
	BillingOwnerID snowflake.ID       `json:"billing_owner_id" gorm:"not null;index"`
	PasswordHash   string             `json:"-" gorm:"type:text"`
	Metadata       datatypes.JSONMap  `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// IsBillingRoot reports whether the account pays for its own subtree.
func (a Account) IsBillingRoot() bool { return a.BillingOwnerID == a.ID }

// IsManaged reports whether the account is covered by an ancestor's plan.
func (a Account) IsManaged() bool { return !a.IsBillingRoot() }

// ChildLink ties a child account to the parent that checks in on it.
type ChildLink struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	ParentID       snowflake.ID `json:"parent_id" gorm:"not null;index"`
	ChildID        snowflake.ID `json:"child_id" gorm:"not null;uniqueIndex"`
	BillingOwnerID snowflake.ID `json:"billing_owner_id" gorm:"not null;index"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChildLink) TableName() string { return "child_links" }
