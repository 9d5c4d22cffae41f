// Package hierarchy assigns and propagates billing ownership.
//
// Billing ownership telescopes: every account inherits its creator's billing
// owner, so a district's school admins, their teachers, and those teachers'
// students all carry the district's id. Only an account with no paying
// creator becomes its own billing root.
package hierarchy

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
)

var ErrNoBillingOwner = errors.New("no_billing_owner")

// ResolveBillingOwner picks the billing owner for a newly created entity.
// The caller must pass the creator's BillingOwnerID, never the creator's own
// id, so ownership resolves to the root payer regardless of depth.
func ResolveBillingOwner(creatorBillingOwnerID, newEntityID snowflake.ID) (snowflake.ID, error) {
	if creatorBillingOwnerID != 0 {
		return creatorBillingOwnerID, nil
	}
	if newEntityID != 0 {
		return newEntityID, nil
	}
	return 0, ErrNoBillingOwner
}

// WithBillingOwner returns a copy of the account with billing ownership set.
// BillingOwnerID is immutable once assigned.
func WithBillingOwner(account accountdomain.Account, ownerID snowflake.ID) (accountdomain.Account, error) {
	if ownerID == 0 {
		return accountdomain.Account{}, ErrNoBillingOwner
	}
	account.BillingOwnerID = ownerID
	return account, nil
}
