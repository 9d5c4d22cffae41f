package server

import (
	"github.com/gin-gonic/gin"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
)

func (s *Server) CreateOrganization(c *gin.Context) {
	var req orgdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	req.ActorID = currentAccountID(c)

	org, err := s.organizationSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, org)
}

func (s *Server) ListOrganizations(c *gin.Context) {
	orgs, err := s.organizationSvc.List(c.Request.Context(), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, orgs)
}

func (s *Server) GetOrganization(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be a snowflake id"))
		return
	}

	org, err := s.organizationSvc.Get(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, org)
}

func (s *Server) DeleteOrganization(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be a snowflake id"))
		return
	}

	if err := s.organizationSvc.Delete(c.Request.Context(), currentAccountID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"deleted": id})
}
