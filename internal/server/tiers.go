package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
)

func (s *Server) ListTiers(c *gin.Context) {
	resp, err := s.tierSvc.ListEnabledTiers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTier(c *gin.Context) {
	resp, err := s.tierSvc.GetTier(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !resp.Enabled {
		AbortWithError(c, tierdomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminListTiers(c *gin.Context) {
	resp, err := s.tierSvc.ListTiers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertTier(c *gin.Context) {
	var req tierdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TierName = strings.TrimSpace(c.Param("name"))
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	resp, err := s.tierSvc.UpsertTier(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.TierName
		_ = s.auditSvc.AuditLog(c.Request.Context(), "", nil, "tier.upsert", "tier", &targetID, map[string]any{
			"tier_id":         resp.ID.String(),
			"monthly_credits": resp.MonthlyCredits.String(),
			"monthly_price":   resp.MonthlyPrice.StringFixed(2),
			"enabled":         resp.Enabled,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EnableTier(c *gin.Context) {
	s.setTierEnabled(c, true)
}

func (s *Server) DisableTier(c *gin.Context) {
	s.setTierEnabled(c, false)
}

func (s *Server) setTierEnabled(c *gin.Context, enabled bool) {
	resp, err := s.tierSvc.SetTierEnabled(c.Request.Context(), c.Param("name"), enabled)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		action := "tier.disable"
		if enabled {
			action = "tier.enable"
		}
		targetID := resp.TierName
		_ = s.auditSvc.AuditLog(c.Request.Context(), "", nil, action, "tier", &targetID, map[string]any{
			"tier_id": resp.ID.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
