package middleware

import (
	"context"
	"errors"
	"strings"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request. It must run after
// ContextMiddleware so the span can carry the request provenance, and it
// adds the trace id to the request context for ctxHandler.
//
// The span is renamed to the matched route pattern once the handler has run,
// and tagged with the account the request resolved to on either surface.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		prov := ProvenanceFrom(ctx)
		if prov.IPAddress == "" {
			prov.IPAddress = c.IP()
		}

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("client.address", prov.IPAddress),
				attribute.String("user_agent.original", prov.UserAgent),
				attribute.String("snapfeed.surface", requestSurface(c.Path())),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(context.WithValue(ctx, TraceIDKey, traceID))

		err := c.Next()

		// Unmatched requests leave the last app.Use route ("/") behind.
		if route := c.Route(); route != nil && route.Path != "" && (route.Path != "/" || c.Path() == "/") {
			span.SetName(c.Method() + " " + route.Path)
			span.SetAttributes(attribute.String("http.route", route.Path))
		}
		if uid, ok := c.Locals(LocalUserID).(uint); ok && uid != 0 {
			span.SetAttributes(attribute.Int64("user_id", int64(uid)))
		}

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			span.RecordError(err)
			if code := models.ErrorCode(err); code != "" {
				span.SetAttributes(attribute.String("app.error_code", code))
			}
		}
		if requestFailed(status, err) {
			span.SetStatus(codes.Error, "request failed")
		}
		return err
	}
}

func requestSurface(path string) string {
	if path == "/api" || strings.HasPrefix(path, "/api/") {
		return "api"
	}
	return "web"
}

// requestFailed treats client errors as successful spans. A returned error
// has not been rendered yet, so its code decides.
func requestFailed(status int, err error) bool {
	if err == nil {
		return status >= fiber.StatusInternalServerError
	}
	if code := models.ErrorCode(err); code != "" {
		return code == models.CodeInternal
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code >= fiber.StatusInternalServerError
	}
	return true
}
