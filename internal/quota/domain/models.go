// Package domain defines admission-control results for plan limits.
package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidRequest = errors.New("invalid_quota_request")
	ErrMissingSubKey  = errors.New("missing_sub_key")
)

// Deny reasons carried on a Decision.
const (
	ReasonLimitExceeded        = "limit_exceeded"
	ReasonSubscriptionMissing  = "subscription_missing"
	ReasonSubscriptionInactive = "subscription_inactive"
	ReasonLimitNotConfigured   = "limit_not_configured"
)

// Decision is the structured outcome of an admission check. Denials always
// carry the numbers the caller needs to present remediation.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	Current    int64  `json:"current"`
	Limit      int64  `json:"limit"`
	Requested  int64  `json:"requested"`
	Reason     string `json:"reason,omitempty"`
	CanUpgrade bool   `json:"can_upgrade,omitempty"`
}

// Err returns a LimitError for denied decisions, nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &LimitError{Decision: d}
}

// LimitError is the error form of a denied Decision.
type LimitError struct {
	Decision
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("quota denied (%s): current=%d limit=%d requested=%d",
		e.Reason, e.Current, e.Limit, e.Requested)
}

// Subject describes the actor performing a create, used to pick the correct
// (current, limit) pair for the resource key.
type Subject struct {
	// ActorID is the creator; scoped keys without an explicit sub-key default
	// to it (a teacher creating a student consumes their own slot pool).
	ActorID snowflake.ID
	// OrganizationID is the organization the created resource lands in. For
	// staff under a district plan it selects the staff_per_school partition.
	OrganizationID snowflake.ID
	// Managed is true when the actor's billing owner differs from its own id.
	// A managed school admin creating staff is checked against the district's
	// staff_per_school pool for their school, not a personal staff limit.
	Managed bool
}
