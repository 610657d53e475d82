package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Telemetry wraps the API with otelhttp instrumentation. Health checks are
// filtered out; span names use the same route labels as Tracing.
func Telemetry(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "finlink-api",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + routeLabel(r.URL.Path)
		}),
	)
}
