package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditpackagedomain "github.com/smallbiznis/creditledger/internal/creditpackage/domain"
)

type purchasePackageRequest struct {
	PaymentReference string `json:"payment_reference"`
}

func (s *Server) ListPackages(c *gin.Context) {
	resp, err := s.packageSvc.List(c.Request.Context(), false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminListPackages(c *gin.Context) {
	resp, err := s.packageSvc.List(c.Request.Context(), true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertPackage(c *gin.Context) {
	var req creditpackagedomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.packageSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), "", nil, "credit_package.upsert", "credit_package", &targetID, map[string]any{
			"package_name":  resp.PackageName,
			"credits":       resp.Credits.String(),
			"bonus_credits": resp.BonusCredits.String(),
			"price":         resp.Price.StringFixed(2),
			"enabled":       resp.Enabled,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EnablePackage(c *gin.Context) {
	s.setPackageEnabled(c, true)
}

func (s *Server) DisablePackage(c *gin.Context) {
	s.setPackageEnabled(c, false)
}

func (s *Server) setPackageEnabled(c *gin.Context, enabled bool) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid package id"))
		return
	}

	resp, err := s.packageSvc.SetEnabled(c.Request.Context(), *id, enabled)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		action := "credit_package.disable"
		if enabled {
			action = "credit_package.enable"
		}
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), "", nil, action, "credit_package", &targetID, map[string]any{
			"package_name": resp.PackageName,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PurchasePackage(c *gin.Context) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid package id"))
		return
	}

	var req purchasePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.packageSvc.Purchase(c.Request.Context(), creditpackagedomain.PurchaseRequest{
		UserID:           userIDFromContext(c),
		PackageID:        *id,
		PaymentReference: strings.TrimSpace(req.PaymentReference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
