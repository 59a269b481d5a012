package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/societybill/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request. It must run after the logging
// middleware so the request id is already on the context.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("societybill/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if societyID := obscontext.SocietyIDFromContext(ctx); societyID != "" {
			span.SetAttributes(attribute.String("society.id", societyID))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)...)

		if lastErr := c.Errors.Last(); lastErr != nil && status >= http.StatusInternalServerError {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				span.RecordError(safeErr)
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
