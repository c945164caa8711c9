package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/feeledger/internal/observability/context"
	"github.com/smallbiznis/feeledger/pkg/tenantctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// routeResources maps a route prefix to the span attribute that carries the
// :id path parameter.
var routeResources = []struct {
	prefix string
	key    attribute.Key
}{
	{"/api/students/", "student_id"},
	{"/api/classes/", "class_id"},
	{"/api/parents/", "parent_id"},
}

// GinMiddleware opens one server span per request. The span is named after
// the matched route once the handler has run.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("feeledger/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName(method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		reqCtx := c.Request.Context()
		if tenantID, ok := tenantctx.TenantID(reqCtx); ok {
			attrs = append(attrs, attribute.String("tenant_id", tenantID.String()))
		}
		if role, _ := obscontext.ActorFromContext(reqCtx); role != "" {
			attrs = append(attrs, attribute.String("actor_role", role))
		}
		if attr, ok := resourceAttribute(route, c.Param("id")); ok {
			attrs = append(attrs, attr)
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status < http.StatusInternalServerError {
			return
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			span.RecordError(SafeError(lastErr.Err))
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

func resourceAttribute(route, id string) (attribute.KeyValue, bool) {
	if id == "" {
		return attribute.KeyValue{}, false
	}
	for _, r := range routeResources {
		if strings.HasPrefix(route, r.prefix) {
			return r.key.String(id), true
		}
	}
	return attribute.String("fee.resource", id), true
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
