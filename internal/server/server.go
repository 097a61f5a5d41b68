package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/strefethen/sonos-control/internal/api"
	"github.com/strefethen/sonos-control/internal/apperrors"
	"github.com/strefethen/sonos-control/internal/config"
	"github.com/strefethen/sonos-control/internal/discovery"
	"github.com/strefethen/sonos-control/internal/logging"
	"github.com/strefethen/sonos-control/internal/openapi"
	"github.com/strefethen/sonos-control/internal/sonos"
	"github.com/strefethen/sonos-control/internal/sonos/soap"
	"github.com/strefethen/sonos-control/internal/topology"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLoggerMiddleware logs every request once it completes.
func requestLoggerMiddleware(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			api.RequestLogger(logger, r).WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapped.status,
				"duration": time.Since(start).Round(time.Millisecond).String(),
			}).Info("Request handled")
		})
	}
}

// Options replaces collaborators, mainly for tests.
type Options struct {
	// HTTPClient is used for device descriptions and control calls.
	HTTPClient *http.Client
	// Locator replaces the configured location sources.
	Locator topology.Locator
}

// NewHandler wires the control and topology routes.
func NewHandler(cfg config.Config, logger logrus.FieldLogger, options Options) http.Handler {
	logger = logging.OrDiscard(logger)

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(api.RequestIDMiddleware)
	router.Use(requestLoggerMiddleware(logger))
	router.Use(api.RecovererMiddleware(logger))

	router.NotFound(api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return apperrors.NewNotFoundError("Route not found", map[string]any{"path": r.URL.Path})
	}).ServeHTTP)

	registerHealthRoutes(router)
	openapi.RegisterRoutes(router)

	var clientOpts []soap.Option
	var fetcherOpts []discovery.FetcherOption
	if options.HTTPClient != nil {
		clientOpts = append(clientOpts, soap.WithHTTPClient(options.HTTPClient))
		fetcherOpts = append(fetcherOpts, discovery.WithDescriptionClient(options.HTTPClient))
	}

	soapClient := soap.NewClient(cfg.SonosTimeout(), clientOpts...)
	service := sonos.NewService(soapClient, logger.WithField("component", "rpc"))
	playback := sonos.NewPlaybackController(service, cfg.PlaybackSettle(), logger.WithField("component", "playback"))
	groups := sonos.NewGroupVolumeCoordinator(service, logger.WithField("component", "group_volume"))
	sonos.RegisterRoutes(router, service, playback, groups)

	locator := options.Locator
	if locator == nil {
		locator = discovery.SourcesFromConfig(cfg, logger.WithField("component", "discovery"))
	}
	fetcher := discovery.NewDescriptionFetcher(cfg.DescriptionTimeout(), logger.WithField("component", "description"), fetcherOpts...)
	builder := topology.NewBuilder(locator, fetcher, service, topology.Options{
		ModelPrefix: cfg.ModelPrefix,
		Concurrency: cfg.TopologyConcurrency,
	}, logger.WithField("component", "topology"))
	topology.RegisterRoutes(router, builder)

	return router
}

func registerHealthRoutes(router chi.Router) {
	router.Method(http.MethodGet, "/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   "sonos-control",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}))
	router.Method(http.MethodGet, "/health/live", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}))
}
