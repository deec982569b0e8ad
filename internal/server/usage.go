package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	obstracing "github.com/smallbiznis/creditledger/internal/observability/tracing"
)

func (s *Server) ChargeUsage(c *gin.Context) {
	var req creditdomain.UsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = userIDFromContext(c)
	if modelID := strings.TrimSpace(req.ModelID); modelID != "" {
		c.Set(obstracing.ContextKeyModelID, modelID)
	}

	resp, err := s.creditSvc.ChargeUsage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
