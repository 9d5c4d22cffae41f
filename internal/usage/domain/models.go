// Package domain defines the derived usage snapshot.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"gorm.io/gorm"
)

// Snapshot is the live usage of one billing owner. It is derived, never
// persisted, and fully recomputable from account, child-link, and
// organization records at any time.
type Snapshot struct {
	BillingOwnerID snowflake.ID `json:"billing_owner_id"`

	Children       int64 `json:"children"`
	Schools        int64 `json:"schools"`
	StaffTotal     int64 `json:"staff_total"`
	StudentsTotal  int64 `json:"students_total"`
	EmployeesTotal int64 `json:"employees_total"`

	StudentsPerStaff  map[snowflake.ID]int64 `json:"students_per_staff"`
	StudentsPerSchool map[snowflake.ID]int64 `json:"students_per_school"`
	StaffPerSchool    map[snowflake.ID]int64 `json:"staff_per_school"`
	EmployeesPerStaff map[snowflake.ID]int64 `json:"employees_per_staff"`

	ComputedAt time.Time `json:"computed_at"`
}

// NewSnapshot returns a zeroed snapshot with initialized scoped maps.
func NewSnapshot(ownerID snowflake.ID, at time.Time) *Snapshot {
	return &Snapshot{
		BillingOwnerID:    ownerID,
		StudentsPerStaff:  make(map[snowflake.ID]int64),
		StudentsPerSchool: make(map[snowflake.ID]int64),
		StaffPerSchool:    make(map[snowflake.ID]int64),
		EmployeesPerStaff: make(map[snowflake.ID]int64),
		ComputedAt:        at,
	}
}

// FlatCount returns the aggregate for a flat limit key.
func (s *Snapshot) FlatCount(limitKey string) int64 {
	switch limitKey {
	case catalogdomain.LimitChildren:
		return s.Children
	case catalogdomain.LimitSchools:
		return s.Schools
	case catalogdomain.LimitStaff:
		return s.StaffTotal
	default:
		return 0
	}
}

// ScopedCounts returns the per-sub-key counters for a scoped limit key.
func (s *Snapshot) ScopedCounts(limitKey string) map[snowflake.ID]int64 {
	switch limitKey {
	case catalogdomain.LimitStudentsPerStaff:
		return s.StudentsPerStaff
	case catalogdomain.LimitStaffPerSchool:
		return s.StaffPerSchool
	case catalogdomain.LimitEmployeesPerStaff:
		return s.EmployeesPerStaff
	default:
		return nil
	}
}

// ScopedCount returns the counter for one sub-key; missing sub-keys count 0.
func (s *Snapshot) ScopedCount(limitKey string, subKey snowflake.ID) int64 {
	return s.ScopedCounts(limitKey)[subKey]
}

// MaxScoped returns the sub-key with the highest counter for a scoped limit
// key. The downgrade guard compares this worst case against the new limit.
func (s *Snapshot) MaxScoped(limitKey string) (snowflake.ID, int64) {
	var (
		bestKey   snowflake.ID
		bestCount int64
	)
	for key, count := range s.ScopedCounts(limitKey) {
		if count > bestCount || (count == bestCount && key > bestKey) {
			bestKey = key
			bestCount = count
		}
	}
	return bestKey, bestCount
}

// Service recomputes snapshots from live directory records.
type Service interface {
	// GetUsage scans every record tagged with the billing owner and
	// aggregates. Pure read; a missing or empty owner yields a zero snapshot,
	// never an error.
	GetUsage(ctx context.Context, ownerID snowflake.ID) (*Snapshot, error)
	// GetUsageTx is GetUsage reading through an open transaction, so
	// admission checks observe their own transaction's view.
	GetUsageTx(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID) (*Snapshot, error)
	// RefreshUsage re-runs the aggregation. Snapshots are computed from live
	// records, so this is the same read; it exists for callers that want to
	// force a recount after an external mutation.
	RefreshUsage(ctx context.Context, ownerID snowflake.ID) (*Snapshot, error)
}
