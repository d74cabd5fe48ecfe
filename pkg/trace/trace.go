package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const HeaderName = "X-Trace-ID"

// fallback header set by most load balancers
const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromHeaders picks the incoming trace id, preferring X-Trace-ID over X-Request-ID.
func FromHeaders(get func(string) string) string {
	if v := strings.TrimSpace(get(HeaderName)); v != "" {
		return v
	}
	return strings.TrimSpace(get(requestIDHeader))
}
