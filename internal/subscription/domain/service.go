package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("subscription_not_found")
	ErrAlreadyExists = errors.New("subscription_already_exists")
	ErrInvalidOwner  = errors.New("invalid_billing_owner")
	ErrSamePackage   = errors.New("same_package")
	ErrRoleMismatch  = errors.New("package_role_mismatch")
	ErrNotActive     = errors.New("subscription_not_active")
)

// StartRequest provisions the single subscription of a billing owner,
// typically in trialing until the first checkout completes.
type StartRequest struct {
	BillingOwnerID snowflake.ID
	Role           catalogdomain.Role
	PackageID      string
	TrialDays      int
}

// ProviderEvent is a payment-processor lifecycle event after adapter
// normalization, addressed to one billing owner.
type ProviderEvent struct {
	Type              EventType
	BillingOwnerID    snowflake.ID
	PackageID         string
	Status            SubscriptionStatus
	CancelAtPeriodEnd *bool
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	OccurredAt        time.Time
}

type Service interface {
	GetByOwner(ctx context.Context, ownerID snowflake.ID) (*Subscription, error)
	Start(ctx context.Context, req StartRequest) (*Subscription, error)
	// ChangePlan validates a downgrade against live usage and commits
	// PackageID and Limits together. The subscription is left untouched when
	// any downgrade violation exists.
	ChangePlan(ctx context.Context, ownerID snowflake.ID, targetPackageID string) (*Subscription, error)
	// ApplyProviderEvent drives the state machine from a payment event.
	ApplyProviderEvent(ctx context.Context, event ProviderEvent) error
	// SetCancelAtPeriodEnd flips the orthogonal cancellation flag.
	SetCancelAtPeriodEnd(ctx context.Context, ownerID snowflake.ID, cancel bool) (*Subscription, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*Subscription, error)
	FindByOwnerForUpdate(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*Subscription, error)
	Save(ctx context.Context, db *gorm.DB, sub *Subscription) error
}
