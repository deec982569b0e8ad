package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/creditledger/internal/audit/domain"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	obscontext "github.com/smallbiznis/creditledger/internal/observability/context"
)

const (
	contextUserIDKey = "credit_user_id"
	headerActorID    = "X-Actor-ID"
)

// UserRequired parses the :user_id path segment once for the whole group.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := parseOptionalInt64(c.Param("user_id"))
		if err != nil || userID == nil || *userID <= 0 {
			AbortWithError(c, creditdomain.ErrInvalidUserID)
			return
		}
		c.Set(contextUserIDKey, *userID)
		c.Next()
	}
}

// AdminActor tags admin requests so audit entries name who made the change.
// The operator id comes from X-Actor-ID when the gateway sets it.
func (s *Server) AdminActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(headerActorID))
		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeAdmin), actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) int64 {
	return c.GetInt64(contextUserIDKey)
}
