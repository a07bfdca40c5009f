package serv

import (
	"net/http"

	"github.com/dosco/graphjin/populate/v3/plugin/otel"
	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const (
	routePopulate = "/api/v1/populate/{schema}"
	routeExplain  = "/api/v1/explain/{schema}"
	routeSchemas  = "/api/v1/schemas"
	routeStream   = "/api/v1/stream/{schema}"
	routeMCP      = "/api/v1/mcp"
	routeMetrics  = "/metrics"
	healthRoute   = "/health"
)

// routesHandler is the main handler for all routes
func routesHandler(s1 *HttpService, r chi.Router) (http.Handler, error) {
	s := s1.Load().(*service)

	r.Use(requestID)

	if s.conf.rateLimiterEnable() {
		r.Use(newRateLimiter(s.conf.RateLimiter).middleware)
	}

	if len(s.conf.AllowedOrigins) != 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   s.conf.AllowedOrigins,
			AllowedHeaders:   s.conf.AllowedHeaders,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowCredentials: true,
			Debug:            s.conf.DebugCORS,
		}).Handler)
	}

	// Healthcheck API
	r.Handle(healthRoute, healthCheckHandler(s1))
	r.Handle(routeMetrics, promhttp.HandlerFor(s1.reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if s.conf.HTTPGZip {
			r.Use(gzipHandler)
		}
		r.Method(http.MethodPost, routePopulate, s1.populateHandler())
		r.Method(http.MethodGet, routeExplain, s1.explainHandler())
		r.Method(http.MethodPost, routeExplain, s1.explainHandler())
		r.Method(http.MethodGet, routeSchemas, s1.schemasHandler())
	})

	r.Handle(routeStream, s1.streamHandler())

	// MCP (Model Context Protocol) API over streamable HTTP
	if !s.conf.MCP.Disable {
		r.Handle(routeMCP, s1.MCPHandler())
	}

	var h http.Handler = r
	if s.conf.EnableTracing {
		h = otel.NewHandler(h, serverName)
	}
	return setServerHeader(h), nil
}

func gzipHandler(h http.Handler) http.Handler {
	return gzhttp.GzipHandler(h)
}
