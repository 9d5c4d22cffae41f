package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
)

func (s *Server) CreateAccount(c *gin.Context) {
	var req accountdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	req.CreatorID = currentAccountID(c)

	account, err := s.accountSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, account)
}

func (s *Server) BulkCreateAccounts(c *gin.Context) {
	var req accountdomain.BulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	req.CreatorID = currentAccountID(c)

	result, err := s.accountSvc.BulkCreate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, result)
}

func (s *Server) GetAccount(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be a snowflake id"))
		return
	}

	account, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, account)
}

// ListChildren returns the accounts linked to the acting parent.
func (s *Server) ListChildren(c *gin.Context) {
	children, err := s.accountSvc.Children(c.Request.Context(), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, children)
}

func (s *Server) DeleteAccount(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be a snowflake id"))
		return
	}

	if err := s.accountSvc.Delete(c.Request.Context(), currentAccountID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"deleted": id})
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(raw)
}
