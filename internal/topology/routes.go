package topology

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/sonos-control/internal/api"
)

// RegisterRoutes exposes a fresh discovery pass at GET /api/topology.
func RegisterRoutes(router chi.Router, builder *Builder) {
	router.Method(http.MethodGet, "/api/topology", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		devices := builder.Build(r.Context())
		return api.WriteSuccess(w, map[string]any{
			"devices": devices,
			"count":   len(devices),
		})
	}))
}
