package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
)

type quoteUpgradeRequest struct {
	TierName         string                              `json:"tier_name"`
	SubscriptionType creditledgerdomain.SubscriptionType `json:"subscription_type"`
}

type cancelSubscriptionRequest struct {
	Immediately bool `json:"immediately"`
}

type autoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew"`
}

func (s *Server) Subscribe(c *gin.Context) {
	var req creditdomain.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = userIDFromContext(c)
	req.TierName = strings.TrimSpace(req.TierName)

	resp, err := s.creditSvc.Subscribe(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) QuoteUpgrade(c *gin.Context) {
	var req quoteUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.creditSvc.QuoteUpgrade(
		c.Request.Context(),
		userIDFromContext(c),
		strings.TrimSpace(req.TierName),
		req.SubscriptionType,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Upgrade(c *gin.Context) {
	var req creditdomain.UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = userIDFromContext(c)
	req.TierName = strings.TrimSpace(req.TierName)

	resp, err := s.creditSvc.Upgrade(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	var req cancelSubscriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.creditSvc.Cancel(c.Request.Context(), userIDFromContext(c), req.Immediately)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetAutoRenew(c *gin.Context) {
	var req autoRenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.AutoRenew == nil {
		AbortWithError(c, newValidationError("auto_renew", "required", "auto_renew is required"))
		return
	}

	resp, err := s.creditSvc.SetAutoRenew(c.Request.Context(), userIDFromContext(c), *req.AutoRenew)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
