package river

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/geo"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	logger.Discard()
	require.NoError(t, db.ConnectSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared"))
	Init()

	r := chi.NewRouter()
	r.Route("/api/{lang}", RegisterRoutes)
	return r
}

func get(t *testing.T, h http.Handler, url string) (int, []byte) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec.Code, rec.Body.Bytes()
}

func TestSourceLocationDefaultsToFirstVertex(t *testing.T) {
	setup(t)

	s := Stream{Name: "Siagne", Geom: geo.Geometry{Geometry: orb.LineString{{6.9, 43.6}, {7.0, 43.5}}}}
	require.NoError(t, db.DB.Create(&s).Error)

	var got Stream
	require.NoError(t, db.DB.First(&got, s.ID).Error)
	assert.Equal(t, orb.Point{6.9, 43.6}, got.SourceLocation.Geometry)
	assert.Equal(t, FlowUnknown, got.Flow)

	explicit := Stream{
		Name:           "Loup",
		Geom:           geo.Geometry{Geometry: orb.LineString{{1, 1}, {2, 2}}},
		SourceLocation: geo.NewPoint(5, 5),
	}
	require.NoError(t, db.DB.Create(&explicit).Error)
	var reloaded Stream
	require.NoError(t, db.DB.First(&reloaded, explicit.ID).Error)
	assert.Equal(t, orb.Point{5, 5}, reloaded.SourceLocation.Geometry)
}

func TestStreamEndpoints(t *testing.T) {
	h := setup(t)

	s := Stream{
		Name:                      "Siagne",
		Geom:                      geo.Geometry{Geometry: orb.LineString{{6.9, 43.6}, {7.0, 43.5}}},
		DataSource:                "IGN",
		ClassificationWaterPolicy: "1ère catégorie",
		Flow:                      FlowPermanent,
	}
	require.NoError(t, db.DB.Create(&s).Error)

	code, body := get(t, h, "/api/fr/streams/1")
	require.Equal(t, http.StatusOK, code)
	var detail map[string]any
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.ElementsMatch(t,
		[]string{"id", "name", "data_source", "source_location", "classification_water_policy", "flow"},
		keysOf(detail))
	assert.Equal(t, "Point", detail["source_location"].(map[string]any)["type"])

	code, body = get(t, h, "/api/fr/streams/1.geojson")
	require.Equal(t, http.StatusOK, code)
	var feature map[string]any
	require.NoError(t, json.Unmarshal(body, &feature))
	assert.Equal(t, "Feature", feature["type"])
	assert.Equal(t, "LineString", feature["geometry"].(map[string]any)["type"])
	assert.ElementsMatch(t, []string{"id", "name"}, keysOf(feature["properties"].(map[string]any)))

	code, body = get(t, h, "/api/fr/streams.geojson")
	require.Equal(t, http.StatusOK, code)
	var fc map[string]any
	require.NoError(t, json.Unmarshal(body, &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
	assert.Len(t, fc["features"], 1)

	code, _ = get(t, h, "/api/fr/streams/42")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestParseCSVAndImport(t *testing.T) {
	setup(t)

	in := "\ufeffname,wkt,data_source,flow\n" +
		`Siagne,"LINESTRING(6.9 43.6, 7 43.5)",IGN,permanent` + "\n" +
		`Loup,"LINESTRING(7.1 43.7, 7.2 43.6)",,` + "\n"

	rows, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, FlowUnknown, rows[1].Flow)

	n, err := Import(db.DB, rows, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = Import(db.DB, rows[:1], ImportOptions{Wipe: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var count int64
	require.NoError(t, db.DB.Model(&Stream{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"missing column": "name\nSiagne\n",
		"no rows":        "name,wkt\n",
		"blank name":     "name,wkt\n,\"LINESTRING(0 0, 1 1)\"\n",
		"point geometry": "name,wkt\nX,POINT(0 0)\n",
		"bad flow":       "name,wkt,flow\nX,\"LINESTRING(0 0, 1 1)\",sometimes\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
