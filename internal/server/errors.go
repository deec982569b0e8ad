package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/creditledger/internal/audit/domain"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	creditpackagedomain "github.com/smallbiznis/creditledger/internal/creditpackage/domain"
	creditratedomain "github.com/smallbiznis/creditledger/internal/creditrate/domain"
	obstracing "github.com/smallbiznis/creditledger/internal/observability/tracing"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Set(obstracing.ContextKeyErrorType, payload.Type)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var insufficient *creditdomain.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "insufficient credits",
			Details: map[string]any{
				"balance":  insufficient.Balance.StringFixed(2),
				"required": insufficient.Required.StringFixed(2),
			},
		}
	case errors.Is(err, creditdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "insufficient credits",
		}
	case errors.Is(err, creditdomain.ErrSubscriptionExpired):
		return http.StatusForbidden, errorPayload{
			Type:    "subscription_expired",
			Message: "subscription expired",
		}
	case errors.Is(err, creditdomain.ErrConcurrentModification):
		return http.StatusConflict, errorPayload{
			Type:      "concurrent_modification",
			Message:   "subscription was modified concurrently, retry the request",
			Retryable: true,
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    conflictType(err),
			Message: strings.ReplaceAll(conflictType(err), "_", " "),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:      "rate_limited",
			Message:   "too many requests",
			Retryable: true,
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "service_unavailable",
			Message:   "service unavailable",
			Retryable: true,
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger a low-cardinality type and code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, err.Error()
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,

	creditdomain.ErrInvalidUserID,
	creditdomain.ErrInvalidTransactionType,
	creditdomain.ErrInvalidAmount,
	creditdomain.ErrInvalidSubscriptionType,
	creditdomain.ErrInvalidReference,
	creditdomain.ErrInvalidTokenCount,

	tierdomain.ErrInvalidTierName,
	tierdomain.ErrInvalidDisplayName,
	tierdomain.ErrInvalidMonthlyCredits,
	tierdomain.ErrInvalidPrice,

	creditratedomain.ErrInvalidModelID,
	creditratedomain.ErrInvalidRate,
	creditratedomain.ErrInvalidTokenCount,

	creditpackagedomain.ErrInvalidPackageName,
	creditpackagedomain.ErrInvalidCredits,
	creditpackagedomain.ErrInvalidPrice,
	creditpackagedomain.ErrInvalidPaymentReference,

	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
}

func isValidationError(err error) bool {
	return matchAny(err, validationErrors) != nil
}

var conflictErrors = []error{
	ErrConflict,
	creditdomain.ErrDuplicateReference,
	creditdomain.ErrTierUnavailable,
	creditdomain.ErrSubscriptionActive,
	creditdomain.ErrUpgradeNotAllowed,
	creditdomain.ErrYearlyPlanUnavailable,
	creditpackagedomain.ErrPackageUnavailable,
}

func isConflictError(err error) bool {
	return matchAny(err, conflictErrors) != nil
}

func conflictType(err error) string {
	if match := matchAny(err, conflictErrors); match != nil {
		return match.Error()
	}
	return "conflict"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, creditdomain.ErrSubscriptionNotFound),
		errors.Is(err, creditdomain.ErrTransactionNotFound),
		errors.Is(err, tierdomain.ErrNotFound),
		errors.Is(err, creditpackagedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func matchAny(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func validationErrorCode(err error) string {
	if match := matchAny(err, validationErrors); match != nil {
		return match.Error()
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
