// Package domain defines downgrade validation results for plan changes.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
)

var ErrRoleMismatch = errors.New("plan_role_mismatch")

// Violation records one resource whose current usage exceeds a limit of the
// target package.
type Violation struct {
	ResourceKey string `json:"resource_key"`
	Current     int64  `json:"current"`
	Limit       int64  `json:"limit"`
	Excess      int64  `json:"excess"`
	Message     string `json:"message"`
}

// ViolationsError carries the full set of violations so callers can render
// an actionable report instead of a first-failure message.
type ViolationsError struct {
	Violations []Violation
}

func (e *ViolationsError) Error() string {
	keys := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		keys = append(keys, v.ResourceKey)
	}
	return fmt.Sprintf("plan_change_blocked: usage exceeds target limits for %s", strings.Join(keys, ", "))
}

// Service validates whether a billing owner's current usage fits inside a
// target package before the switch is committed.
type Service interface {
	// ValidateChange returns a *ViolationsError when the change is a
	// downgrade and current usage exceeds any target limit. Upgrades and
	// lateral moves pass without a usage scan.
	ValidateChange(ctx context.Context, ownerID snowflake.ID, current, target catalogdomain.Package) error
}
