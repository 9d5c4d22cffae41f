package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// HandlePaymentWebhook ingests one provider delivery. Signature verification
// replaces bearer auth on this route.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, newValidationError("body", "unreadable", "could not read request body"))
		return
	}

	provider := c.Param("provider")
	if err := s.paymentSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// ListPaymentEvents returns the owner's recent billing activity, newest
// first.
func (s *Server) ListPaymentEvents(c *gin.Context) {
	actor, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	events, err := s.paymentSvc.RecentEvents(c.Request.Context(), actor.BillingOwnerID, 50)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, events)
}
