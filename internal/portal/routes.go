package portal

import "github.com/go-chi/chi/v5"

// RegisterRoutes adds the portal detail route to a router mounted at
// /api/{lang}/portals/{portalID}.
func RegisterRoutes(r chi.Router) {
	r.Get("/", DetailHandler)
}
