package river

import (
	"github.com/georiviere/georiviere-api/internal/utils"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes serves the stream network on a router mounted at /api/{lang}.
func RegisterRoutes(r chi.Router) {
	r.Get("/streams", ListHandler(utils.FormatJSON))
	r.Get("/streams.json", ListHandler(utils.FormatJSON))
	r.Get("/streams.geojson", ListHandler(utils.FormatGeoJSON))
	r.Get("/streams/{streamID}", DetailHandler)
}
