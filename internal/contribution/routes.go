package contribution

import (
	"net/http"

	"github.com/georiviere/georiviere-api/internal/auth"
	"github.com/georiviere/georiviere-api/internal/middleware"
	"github.com/georiviere/georiviere-api/internal/utils"
	"github.com/go-chi/chi/v5"
)

// SubmitLimit wraps the public POST endpoints. main replaces it with a
// rate limiter.
var SubmitLimit = func(next http.Handler) http.Handler { return next }

// RegisterRoutes serves contributions on a router mounted at
// /api/{lang}/portals/{portalID}.
func RegisterRoutes(r chi.Router) {
	sessionFetcher := auth.SessionInfo{}

	r.Get("/contributions/json_schema", SchemaHandler)
	r.Get("/contributions", ListHandler(utils.FormatJSON))
	r.Get("/contributions.json", ListHandler(utils.FormatJSON))
	r.Get("/contributions.geojson", ListHandler(utils.FormatGeoJSON))
	r.Get("/contributions/{contributionID}", DetailHandler)

	types := "/custom_contribution_types"
	customs := types + "/{typeID}/custom-contributions"
	for _, suffix := range []string{"", ".json", ".geojson"} {
		r.With(SubmitLimit).Post("/contributions"+suffix, CreateHandler)
		r.With(SubmitLimit).Post(customs+suffix, CustomCreateHandler)
		r.Get(customs+suffix, CustomListHandler)
		r.Get(types+suffix, CustomTypeListHandler)
	}
	r.Get(types+"/{typeID}", CustomTypeDetailHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Use(middleware.StaffMiddleware(sessionFetcher))
		r.Patch("/contributions/{contributionID}/moderation", ModerateHandler)
		r.Patch("/custom_contribution_types/{typeID}/custom-contributions/{customID}", ValidateCustomHandler)
	})
}

// RegisterAdminRoutes serves custom type management on a router mounted
// at /api/{lang}/admin.
func RegisterAdminRoutes(r chi.Router) {
	sessionFetcher := auth.SessionInfo{}

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Use(middleware.AdminMiddleware(sessionFetcher))
		r.Post("/custom_contribution_types", CreateCustomTypeHandler)
		r.Post("/custom_contribution_types/{typeID}/fields", AddFieldHandler)
		r.Patch("/custom_contribution_types/{typeID}/fields/{fieldID}", UpdateFieldHandler)
		r.Delete("/custom_contribution_types/{typeID}/fields/{fieldID}", DeleteFieldHandler)
		r.Post("/custom_contribution_types/{typeID}/stations", SetStationsHandler)
	})
}
