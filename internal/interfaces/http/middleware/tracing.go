package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys set by the HTTP layer
const (
	SpanAttrRequestID = "request_id"
	SpanAttrUser      = "erp.user"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

// Tracing returns the otelgin middleware followed by a span enricher. Span
// names follow "METHOD route", e.g. "GET /api/v1/sales-invoices/:name".
func Tracing(cfg TracingConfig) []gin.HandlerFunc {
	if !cfg.Enabled {
		return []gin.HandlerFunc{func(c *gin.Context) { c.Next() }}
	}
	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return []gin.HandlerFunc{
		otelgin.Middleware(cfg.ServiceName, opts...),
		SpanEnricher(),
	}
}

// SpanEnricher tags the request span with the request id and records
// handler errors collected in the gin context.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := GetRequestID(c); id != "" {
			span.SetAttributes(attribute.String(SpanAttrRequestID, id))
		}

		c.Next()

		if err := c.Errors.Last(); err != nil {
			span.RecordError(err.Err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
}
