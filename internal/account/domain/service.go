package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
)

var (
	ErrNotFound       = errors.New("account_not_found")
	ErrCreatorMissing = errors.New("creator_not_found")
	ErrInvalidRole    = errors.New("invalid_role")
	ErrInvalidOrg     = errors.New("invalid_organization")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrEmailTaken     = errors.New("email_taken")
	ErrNotOwned       = errors.New("account_not_owned")
	ErrEmptyBatch     = errors.New("empty_batch")
	ErrBatchTooLarge  = errors.New("batch_too_large")
	ErrBatchSpansOrgs = errors.New("batch_spans_organizations")
	ErrNotPermitted   = errors.New("role_creation_not_permitted")
)

// CreateRequest creates one account on behalf of a creator.
type CreateRequest struct {
	CreatorID      snowflake.ID       `json:"-"`
	Role           catalogdomain.Role `json:"role" binding:"required"`
	Email          string             `json:"email" binding:"required"`
	DisplayName    string             `json:"display_name"`
	OrganizationID string             `json:"organization_id"`
}

// BulkCreateRequest creates up to MaxBatchSize accounts in one admitted batch.
type BulkCreateRequest struct {
	CreatorID snowflake.ID       `json:"-"`
	Role      catalogdomain.Role `json:"role" binding:"required"`
	Items     []BulkItem         `json:"items" binding:"required"`
}

type BulkItem struct {
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	OrganizationID string `json:"organization_id"`
}

// MaxBatchSize caps a single bulk import request.
const MaxBatchSize = 100

// BulkItemError reports one skipped row of a bulk import.
type BulkItemError struct {
	Index  int    `json:"index"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// BulkResult reports a bulk import outcome per item. Already-created rows are
// never rolled back when a later row fails.
type BulkResult struct {
	Created []*Account      `json:"created"`
	Skipped int             `json:"skipped"`
	Errors  []BulkItemError `json:"errors"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Account, error)
	BulkCreate(ctx context.Context, req BulkCreateRequest) (*BulkResult, error)
	Get(ctx context.Context, actorID, id snowflake.ID) (*Account, error)
	Children(ctx context.Context, parentID snowflake.ID) ([]*Account, error)
	Delete(ctx context.Context, actorID, id snowflake.ID) error
}
