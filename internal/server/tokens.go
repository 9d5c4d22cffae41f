package server

import (
	"time"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	identitydomain "github.com/rollcallhq/rollcall/internal/identity/domain"
)

type signupRequest struct {
	Role        catalogdomain.Role `json:"role" binding:"required"`
	Email       string             `json:"email" binding:"required"`
	DisplayName string             `json:"display_name"`
	Password    string             `json:"password" binding:"required"`
}

// Signup provisions a billing-root account and returns its first API token.
func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	ctx := c.Request.Context()
	account, err := s.accountSvc.Create(ctx, accountdomain.CreateRequest{
		Role:        req.Role,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.identitySvc.SetPassword(ctx, account.ID, req.Password); err != nil {
		AbortWithError(c, err)
		return
	}

	plaintext, _, err := s.identitySvc.IssueToken(ctx, identitydomain.IssueRequest{
		AccountID: account.ID,
		Name:      "signup",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, gin.H{"account": account, "token": plaintext})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	ctx := c.Request.Context()
	identity, err := s.identitySvc.VerifyPassword(ctx, req.Email, req.Password)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	plaintext, token, err := s.identitySvc.IssueToken(ctx, identitydomain.IssueRequest{
		AccountID: identity.AccountID,
		Name:      "login",
		TTL:       30 * 24 * time.Hour,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"token": plaintext, "expires_at": token.ExpiresAt})
}

type issueTokenRequest struct {
	Name     string   `json:"name" binding:"required"`
	Scopes   []string `json:"scopes"`
	TTLHours int      `json:"ttl_hours"`
}

func (s *Server) IssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	plaintext, token, err := s.identitySvc.IssueToken(c.Request.Context(), identitydomain.IssueRequest{
		AccountID: currentAccountID(c),
		Name:      req.Name,
		Scopes:    req.Scopes,
		TTL:       time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, gin.H{"token": plaintext, "token_id": token.ID, "expires_at": token.ExpiresAt})
}

func (s *Server) RevokeToken(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be a snowflake id"))
		return
	}

	if err := s.identitySvc.RevokeToken(c.Request.Context(), currentAccountID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"revoked": id})
}

type setPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) SetPassword(c *gin.Context) {
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	if err := s.identitySvc.SetPassword(c.Request.Context(), currentAccountID(c), req.Password); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"updated": true})
}
