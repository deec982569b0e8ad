package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	obstracing "github.com/smallbiznis/creditledger/internal/observability/tracing"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
)

type checkCreditsRequest struct {
	EstimatedCredits decimal.Decimal `json:"estimated_credits"`
}

func (s *Server) GetCredits(c *gin.Context) {
	resp, err := s.creditSvc.GetCreditsInfo(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
		TransactionType string `form:"transaction_type"`
		ReferenceType   string `form:"reference_type"`
		Order           string `form:"order"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order := strings.ToLower(strings.TrimSpace(query.Order))
	if order != "" && order != "asc" && order != "desc" {
		AbortWithError(c, newValidationError("order", "invalid_order", "order must be asc or desc"))
		return
	}

	resp, err := s.creditSvc.ListTransactions(c.Request.Context(), creditdomain.ListTransactionsRequest{
		UserID:          userIDFromContext(c),
		TransactionType: strings.TrimSpace(query.TransactionType),
		ReferenceType:   strings.TrimSpace(query.ReferenceType),
		Descending:      order == "desc",
		Pagination:      query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions, "page_info": resp.PageInfo})
}

func (s *Server) ApplyTransaction(c *gin.Context) {
	var req creditdomain.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = userIDFromContext(c)
	c.Set(obstracing.ContextKeyTransactionType, string(req.Type))

	resp, err := s.creditSvc.ApplyTransaction(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckCredits(c *gin.Context) {
	var req checkCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.EstimatedCredits.IsNegative() {
		AbortWithError(c, newValidationError("estimated_credits", "invalid_amount", "estimated_credits must not be negative"))
		return
	}

	resp, err := s.creditSvc.CheckCredits(c.Request.Context(), userIDFromContext(c), req.EstimatedCredits)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyLedger(c *gin.Context) {
	resp, err := s.creditSvc.VerifyLedger(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// AdvanceCycle runs one scheduler step for a single user. A tier that
// became unavailable still reports the committed expiry alongside the error.
func (s *Server) AdvanceCycle(c *gin.Context) {
	userID := userIDFromContext(c)
	resp, err := s.creditSvc.AdvanceCycle(c.Request.Context(), userID)

	if s.auditSvc != nil && resp != nil && (resp.Advanced || resp.Status != resp.FromStatus) {
		targetID := strconv.FormatInt(userID, 10)
		_ = s.auditSvc.AuditLog(c.Request.Context(), "", nil, "subscription.advance", "subscription", &targetID, map[string]any{
			"from_status": string(resp.FromStatus),
			"status":      string(resp.Status),
		})
	}

	if err != nil {
		if resp == nil {
			AbortWithError(c, err)
			return
		}
		_ = c.Error(err)
		status, payload := mapError(err)
		c.Set(obstracing.ContextKeyErrorType, payload.Type)
		c.JSON(status, gin.H{"error": payload, "data": resp})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
