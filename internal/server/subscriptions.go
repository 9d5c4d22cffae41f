package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/providers/pdf"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
)

func (s *Server) GetSubscription(c *gin.Context) {
	actor, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.subscriptionSvc.GetByOwner(c.Request.Context(), actor.BillingOwnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

type startSubscriptionRequest struct {
	PackageID string `json:"package_id" binding:"required"`
	TrialDays int    `json:"trial_days"`
}

func (s *Server) StartSubscription(c *gin.Context) {
	var req startSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	actor, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !actor.IsBillingRoot() {
		AbortWithError(c, ErrForbidden)
		return
	}

	sub, err := s.subscriptionSvc.Start(c.Request.Context(), subscriptiondomain.StartRequest{
		BillingOwnerID: actor.BillingOwnerID,
		Role:           actor.Role,
		PackageID:      req.PackageID,
		TrialDays:      req.TrialDays,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, sub)
}

type changePlanRequest struct {
	PackageID string `json:"package_id" binding:"required"`
}

func (s *Server) ChangePlan(c *gin.Context) {
	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	actor, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !actor.IsBillingRoot() {
		AbortWithError(c, ErrForbidden)
		return
	}

	sub, err := s.subscriptionSvc.ChangePlan(c.Request.Context(), actor.BillingOwnerID, req.PackageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

type cancelSubscriptionRequest struct {
	Cancel *bool `json:"cancel"`
}

func (s *Server) CancelSubscription(c *gin.Context) {
	var req cancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	cancel := true
	if req.Cancel != nil {
		cancel = *req.Cancel
	}

	actor, err := s.accountSvc.Get(c.Request.Context(), currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !actor.IsBillingRoot() {
		AbortWithError(c, ErrForbidden)
		return
	}

	sub, err := s.subscriptionSvc.SetCancelAtPeriodEnd(c.Request.Context(), actor.BillingOwnerID, cancel)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) DownloadStatement(c *gin.Context) {
	ctx := c.Request.Context()
	actor, err := s.accountSvc.Get(ctx, currentAccountID(c), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.subscriptionSvc.GetByOwner(ctx, actor.BillingOwnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	snapshot, err := s.usageSvc.GetUsage(ctx, actor.BillingOwnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limits := sub.LimitSet()
	keys, err := catalogdomain.LimitKeysForRole(sub.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := make([]pdf.StatementRow, 0, len(keys))
	for _, key := range keys {
		limit, ok := limits.Get(key)
		if !ok {
			continue
		}
		if catalogdomain.ScopedLimitKey(key) {
			for subKey, count := range snapshot.ScopedCounts(key) {
				rows = append(rows, pdf.StatementRow{
					Resource:  key,
					Scope:     subKey.String(),
					Current:   count,
					Limit:     limit,
					Remaining: max64(limit-count, 0),
				})
			}
			continue
		}
		current := snapshot.FlatCount(key)
		rows = append(rows, pdf.StatementRow{
			Resource:  key,
			Current:   current,
			Limit:     limit,
			Remaining: max64(limit-current, 0),
		})
	}

	reader, err := s.pdfProvider.GenerateUsageStatement(ctx, pdf.StatementData{
		OwnerName:   actor.DisplayName,
		OwnerEmail:  actor.Email,
		PackageName: sub.PackageID,
		Status:      string(sub.Status),
		PeriodStart: sub.CurrentPeriodStart.Format(time.DateOnly),
		PeriodEnd:   sub.CurrentPeriodEnd.Format(time.DateOnly),
		GeneratedAt: snapshot.ComputedAt.Format(time.DateOnly),
		Rows:        rows,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=statement-%s.pdf", actor.BillingOwnerID))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, nil)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
