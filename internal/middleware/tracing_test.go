package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(t.Context())
	})
	return rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_TagsRouteUserAndProvenance(t *testing.T) {
	rec := recordSpans(t)

	app := fiber.New()
	app.Use(ContextMiddleware())
	app.Use(TracingMiddleware())
	app.Post("/api/posts/:post/like", func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, uint(42))
		_, ok := c.UserContext().Value(TraceIDKey).(string)
		assert.True(t, ok, "trace id missing from request context")
		return c.SendStatus(fiber.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/7/like", nil)
	req.Header.Set("User-Agent", "snapfeed-test/1.0")
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "POST /api/posts/:post/like", span.Name())

	attrs := spanAttrs(span)
	assert.Equal(t, int64(42), attrs["user_id"].AsInt64())
	assert.Equal(t, "/api/posts/:post/like", attrs["http.route"].AsString())
	assert.Equal(t, "snapfeed-test/1.0", attrs["user_agent.original"].AsString())
	assert.NotEmpty(t, attrs["client.address"].AsString())
	assert.Equal(t, "api", attrs["snapfeed.surface"].AsString())
	assert.Equal(t, int64(http.StatusCreated), attrs["http.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracingMiddleware_ErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		failed   bool
	}{
		{name: "not found is a client error", err: models.NewNotFoundError("Post", 9), wantCode: models.CodeNotFound},
		{name: "internal error fails the span", err: models.NewInternalError(assert.AnError), wantCode: models.CodeInternal, failed: true},
		{name: "plain error fails the span", err: assert.AnError, failed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordSpans(t)
			app := fiber.New()
			app.Use(TracingMiddleware())
			app.Get("/feed", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed", nil))
			require.NoError(t, err)
			_ = resp.Body.Close()

			spans := rec.Ended()
			require.Len(t, spans, 1)
			attrs := spanAttrs(spans[0])
			assert.Equal(t, "web", attrs["snapfeed.surface"].AsString())
			assert.Equal(t, tt.wantCode, attrs["app.error_code"].AsString())
			assert.Len(t, spans[0].Events(), 1, "error should be recorded")
			if tt.failed {
				assert.Equal(t, codes.Error, spans[0].Status().Code)
			} else {
				assert.Equal(t, codes.Unset, spans[0].Status().Code)
			}
		})
	}
}
