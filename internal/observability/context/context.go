package context

import (
	stdcontext "context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}
type userIDKey struct{}
type clientKey struct{}

type client struct {
	IP        string
	UserAgent string
}

type actor struct {
	Type string
	ID   string
}

// WithRequestID stores the inbound request id.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor records who triggered the work, e.g. ("system", "scheduler").
func WithActor(ctx stdcontext.Context, actorType, actorID string) stdcontext.Context {
	return stdcontext.WithValue(ctx, actorKey{}, actor{
		Type: strings.TrimSpace(actorType),
		ID:   strings.TrimSpace(actorID),
	})
}

func ActorFromContext(ctx stdcontext.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.Type, v.ID
	}
	return "", ""
}

// WithUserID tags the context with the credit account being operated on.
func WithUserID(ctx stdcontext.Context, userID string) stdcontext.Context {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClient records the caller's address and user agent for audit entries.
func WithClient(ctx stdcontext.Context, ip, userAgent string) stdcontext.Context {
	return stdcontext.WithValue(ctx, clientKey{}, client{
		IP:        strings.TrimSpace(ip),
		UserAgent: strings.TrimSpace(userAgent),
	})
}

func ClientFromContext(ctx stdcontext.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(clientKey{}).(client); ok {
		return v.IP, v.UserAgent
	}
	return "", ""
}
