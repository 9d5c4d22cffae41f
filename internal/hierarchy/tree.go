package hierarchy

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	"gorm.io/gorm"
)

var ErrCycleDetected = errors.New("organization_cycle_detected")

// OrganizationTree resolves the root billing owner of an organization by
// walking parent pointers once, instead of re-querying hop by hop on every
// route.
type OrganizationTree struct {
	parents map[snowflake.ID]snowflake.ID
	owners  map[snowflake.ID]snowflake.ID
}

// BuildOrganizationTree loads every organization under the billing owner and
// indexes parent pointers for traversal.
func BuildOrganizationTree(ctx context.Context, db *gorm.DB, repo orgdomain.Repository, ownerID snowflake.ID) (*OrganizationTree, error) {
	orgs, err := repo.ListByBillingOwner(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}

	tree := &OrganizationTree{
		parents: make(map[snowflake.ID]snowflake.ID, len(orgs)),
		owners:  make(map[snowflake.ID]snowflake.ID, len(orgs)),
	}
	for _, org := range orgs {
		tree.parents[org.ID] = org.ParentOrganizationID
		tree.owners[org.ID] = org.BillingOwnerID
	}
	return tree, nil
}

// ResolveRootBillingOwner walks to the topmost organization and returns its
// billing owner.
func (t *OrganizationTree) ResolveRootBillingOwner(orgID snowflake.ID) (snowflake.ID, error) {
	seen := make(map[snowflake.ID]struct{})
	current := orgID
	for {
		if _, dup := seen[current]; dup {
			return 0, ErrCycleDetected
		}
		seen[current] = struct{}{}

		parent, ok := t.parents[current]
		if !ok {
			return 0, orgdomain.ErrNotFound
		}
		if parent == 0 {
			return t.owners[current], nil
		}
		current = parent
	}
}
