package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pbinitiative/spaceflake/internal/appcontext"
	otelint "github.com/pbinitiative/spaceflake/internal/otel"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type respWriterWrapper struct {
	http.ResponseWriter

	written     int64
	statusCode  int
	wroteHeader bool
}

func (w *respWriterWrapper) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *respWriterWrapper) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Opentelemetry returns middleware that will trace and meter incoming requests. Spans
// are named after the chi route pattern once the route is resolved.
func Opentelemetry(serviceName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		meter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rww := &respWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			startTime := time.Now()
			next.ServeHTTP(rww, r)

			routePattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				routePattern = rctx.RoutePattern()
			}
			span := trace.SpanFromContext(r.Context())
			span.SetName(r.Method + " " + routePattern)
			if id, ok := appcontext.RequestIDFromContext(r.Context()); ok {
				span.SetAttributes(otelint.RequestIDKey.String(id))
			}
			if rww.written > 0 {
				span.SetAttributes(otelint.WroteBytesKey.Int64(rww.written))
			}
			setAfterServeMetrics(routePattern, r, rww, startTime)
		})
		return otelhttp.NewHandler(meter, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}

func setAfterServeMetrics(routePattern string, r *http.Request, rww *respWriterWrapper, startTime time.Time) {
	tags := metric.WithAttributes(
		attribute.String("path", routePattern),
		attribute.String("method", r.Method),
		attribute.Int("status", rww.statusCode),
	)
	otelint.RequestTotal.Add(r.Context(), 1)
	otelint.RequestUriTotal.Add(r.Context(), 1, tags)
	if r.ContentLength >= 0 {
		otelint.RequestBodySize.Add(r.Context(), float64(r.ContentLength), tags)
	}
	if rww.written > 0 {
		otelint.ResponseBodySize.Add(r.Context(), float64(rww.written), tags)
	}
	latency := time.Since(startTime)
	otelint.RequestDuration.Record(r.Context(), latency.Seconds()*1000, tags)
}
