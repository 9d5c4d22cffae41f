package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	identitydomain "github.com/rollcallhq/rollcall/internal/identity/domain"
)

const contextIdentityKey = "identity"

// AuthRequired authenticates requests with a bearer API token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.identitySvc.Verify(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextIdentityKey, identity)
		c.Next()
	}
}

func currentIdentity(c *gin.Context) *identitydomain.Identity {
	value, ok := c.Get(contextIdentityKey)
	if !ok {
		return nil
	}
	identity, ok := value.(*identitydomain.Identity)
	if !ok {
		return nil
	}
	return identity
}

func currentAccountID(c *gin.Context) snowflake.ID {
	identity := currentIdentity(c)
	if identity == nil {
		return 0
	}
	return identity.AccountID
}
