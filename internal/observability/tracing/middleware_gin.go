package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/creditledger/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys read when a request span is finished.
const (
	ContextKeyTransactionType = "transaction_type"
	ContextKeyModelID         = "model_id"
	ContextKeyErrorType       = "error_type"
)

// GinMiddleware instruments inbound HTTP requests.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("creditledger/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(AttrLedgerWrite.Bool(isLedgerWrite(c.Request.Method))),
		)

		requestID := obscontext.RequestIDFromContext(ctx)
		if requestID != "" {
			member, err := baggage.NewMember("request_id", requestID)
			if err == nil {
				bag, bagErr := baggage.New(member)
				if bagErr == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if userID := obscontext.UserIDFromContext(ctx); userID != "" {
			span.SetAttributes(attribute.String("user_id", userID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)
		span.SetAttributes(creditAttributes(c)...)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

func isLedgerWrite(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// creditAttributes lifts the ledger context handlers leave on the gin context.
func creditAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if txType := strings.TrimSpace(c.GetString(ContextKeyTransactionType)); txType != "" {
		attrs = append(attrs, attribute.String("credit.transaction_type", txType))
	}
	if modelID := strings.TrimSpace(c.GetString(ContextKeyModelID)); modelID != "" {
		attrs = append(attrs, attribute.String("credit.model_id", modelID))
	}
	if errType := strings.TrimSpace(c.GetString(ContextKeyErrorType)); errType != "" {
		attrs = append(attrs, attribute.String("credit.error_type", errType))
	}
	if actorType, _ := obscontext.ActorFromContext(c.Request.Context()); actorType != "" {
		attrs = append(attrs, attribute.String("credit.actor_type", actorType))
	}
	return SafeAttributes(attrs...)
}
