package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditratedomain "github.com/smallbiznis/creditledger/internal/creditrate/domain"
)

type invalidateRatesRequest struct {
	ModelID string `json:"model_id"`
}

func (s *Server) ListRates(c *gin.Context) {
	resp, err := s.rateSvc.ListRates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "cache": s.rateSvc.Stats()})
}

func (s *Server) UpsertRate(c *gin.Context) {
	var req creditratedomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ModelID = c.Param("model_id")

	resp, err := s.rateSvc.UpsertRate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ModelID
		_ = s.auditSvc.AuditLog(c.Request.Context(), "", nil, "rate.upsert", "model_rate", &targetID, map[string]any{
			"base_credit_per_1k_tokens": resp.BaseCreditPer1KTokens.String(),
			"input_multiplier":          resp.InputMultiplier.String(),
			"output_multiplier":         resp.OutputMultiplier.String(),
			"enabled":                   resp.Enabled,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// InvalidateRates drops one cached model rate, or all of them when no model is given.
func (s *Server) InvalidateRates(c *gin.Context) {
	var req invalidateRatesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	modelID := strings.TrimSpace(req.ModelID)
	if modelID != "" {
		s.rateSvc.Invalidate(modelID)
	} else {
		s.rateSvc.InvalidateAll()
	}

	if s.auditSvc != nil {
		var targetID *string
		if modelID != "" {
			targetID = &modelID
		}
		_ = s.auditSvc.AuditLog(c.Request.Context(), "", nil, "rate.invalidate", "model_rate", targetID, nil)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": s.rateSvc.Stats()})
}
