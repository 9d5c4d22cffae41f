package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
)

// ListPackages returns the purchasable packages for a payer role. Public so
// pricing pages render without credentials.
func (s *Server) ListPackages(c *gin.Context) {
	role := catalogdomain.Role(strings.TrimSpace(c.Query("role")))
	if role == "" {
		AbortWithError(c, newValidationError("role", "required", "role is required"))
		return
	}
	if !role.IsPayer() {
		AbortWithError(c, catalogdomain.ErrUnknownRole)
		return
	}
	respondData(c, s.catalogSvc.PackagesForRole(role))
}
