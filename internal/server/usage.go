package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	quotadomain "github.com/rollcallhq/rollcall/internal/quota/domain"
)

func (s *Server) GetUsage(c *gin.Context) {
	actor, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snapshot, err := s.usageSvc.GetUsage(c.Request.Context(), actor.BillingOwnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, snapshot)
}

// RefreshUsage forces a recount and returns the fresh snapshot.
func (s *Server) RefreshUsage(c *gin.Context) {
	actor, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snapshot, err := s.usageSvc.RefreshUsage(c.Request.Context(), actor.BillingOwnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, snapshot)
}

// CheckQuota previews an admission decision without reserving anything. The
// authoritative check reruns inside the create transaction.
func (s *Server) CheckQuota(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("key"))
	if raw == "" {
		AbortWithError(c, newValidationError("key", "required", "key is required"))
		return
	}
	key, err := catalogdomain.ParseResourceKey(raw)
	if err != nil {
		AbortWithError(c, newValidationError("key", "invalid_key", "unknown resource key"))
		return
	}

	requested := int64(1)
	if rawCount := strings.TrimSpace(c.Query("requested")); rawCount != "" {
		requested, err = strconv.ParseInt(rawCount, 10, 64)
		if err != nil || requested < 0 {
			AbortWithError(c, newValidationError("requested", "invalid_count", "requested must be a non-negative integer"))
			return
		}
	}

	actor, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision, err := s.quotaSvc.CheckLimit(c.Request.Context(), actor.BillingOwnerID, key, requested, quotadomain.Subject{
		ActorID:        actor.ID,
		OrganizationID: actor.OrganizationID,
		Managed:        actor.IsManaged(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, decision)
}
