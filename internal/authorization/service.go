// Package authorization decides which roles an actor may create. Policies
// live in casbin backed by the database, so operators can grant extra edges
// without a deploy.
package authorization

import (
	"context"
	"errors"

	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
)

var (
	ErrInvalidActor = errors.New("invalid_actor")
	ErrForbidden    = errors.New("forbidden")
)

type Service interface {
	// CanCreateRole reports whether creator may create an account of target.
	CanCreateRole(ctx context.Context, creator, target catalogdomain.Role) (bool, error)
	// CanCreateOrganization reports whether creator may create an
	// organization of the given type.
	CanCreateOrganization(ctx context.Context, creator catalogdomain.Role, orgType orgdomain.OrganizationType) (bool, error)
}
