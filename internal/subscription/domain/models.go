// Package domain contains persistence models and lifecycle rules for
// subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusActive     SubscriptionStatus = "active"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusUnpaid     SubscriptionStatus = "unpaid"
	StatusCanceled   SubscriptionStatus = "canceled"
)

// Subscription is the billing agreement of one billing owner. Exactly one row
// exists per BillingOwnerID. Limits is a cached copy of the active package's
// limit set; PackageID and Limits are always written together.
type Subscription struct {
	ID                 snowflake.ID                                 `json:"id" gorm:"primaryKey"`
	BillingOwnerID     snowflake.ID                                 `json:"billing_owner_id" gorm:"not null;uniqueIndex"`
	Role               catalogdomain.Role                           `json:"role" gorm:"type:text;not null"`
	PackageID          string                                       `json:"package_id" gorm:"type:text;not null"`
	Limits             datatypes.JSONType[catalogdomain.LimitSet]   `json:"limits" gorm:"type:jsonb;not null"`
	Status             SubscriptionStatus                           `json:"status" gorm:"type:text;not null;index"`
	CurrentPeriodStart time.Time                                    `json:"current_period_start" gorm:"not null"`
	CurrentPeriodEnd   time.Time                                    `json:"current_period_end" gorm:"not null"`
	CancelAtPeriodEnd  bool                                         `json:"cancel_at_period_end" gorm:"not null;default:false"`
	CreatedAt          time.Time                                    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time                                    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// AdmitsCreation reports whether new billable resources may be created under
// this subscription. Any other status denies all admission regardless of
// current usage.
func (s Subscription) AdmitsCreation() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// LimitSet unwraps the cached limit copy.
func (s Subscription) LimitSet() catalogdomain.LimitSet {
	return s.Limits.Data()
}
