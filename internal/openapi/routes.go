package openapi

import (
	_ "embed"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/strefethen/sonos-control/internal/api"
	"github.com/strefethen/sonos-control/internal/apperrors"
)

//go:embed sonos-control.v1.yaml
var embeddedSpec []byte

// RegisterRoutes wires OpenAPI routes to the router.
func RegisterRoutes(router chi.Router) {
	router.Method(http.MethodGet, "/openapi", api.Handler(serveOpenAPIYAML))
	router.Method(http.MethodGet, "/openapi.json", api.Handler(serveOpenAPIJSON))
}

// loadSpec prefers OPENAPI_SPEC_PATH when it names a readable file.
func loadSpec() []byte {
	if envPath := os.Getenv("OPENAPI_SPEC_PATH"); envPath != "" {
		if spec, err := os.ReadFile(envPath); err == nil {
			return spec
		}
	}
	return embeddedSpec
}

func serveOpenAPIYAML(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(loadSpec())
	return err
}

func serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) error {
	var parsed any
	if err := yaml.Unmarshal(loadSpec(), &parsed); err != nil {
		return apperrors.NewInternalError("Failed to parse OpenAPI specification")
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	return api.WriteJSON(w, http.StatusOK, parsed)
}
