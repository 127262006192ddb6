package river

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
)

// Feature renders s with the minimal GeoJSON properties {id, name}.
func Feature(s Stream) *geojson.Feature {
	f := geojson.NewFeature(s.Geom.Geometry)
	f.ID = s.ID
	f.Properties = geojson.Properties{"id": s.ID, "name": s.Name}
	return f
}

func ListHandler(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streams := []Stream{}
		if err := db.DB.WithContext(r.Context()).Order("name, id").Find(&streams).Error; err != nil {
			http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		if format == utils.FormatGeoJSON {
			fc := geojson.NewFeatureCollection()
			for _, s := range streams {
				fc.Append(Feature(s))
			}
			writeJSON(w, fc)
			return
		}
		writeJSON(w, streams)
	}
}

func DetailHandler(w http.ResponseWriter, r *http.Request) {
	raw, format := utils.SplitFormat(chi.URLParam(r, "streamID"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	var s Stream
	err = db.DB.WithContext(r.Context()).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if format == utils.FormatGeoJSON {
		writeJSON(w, Feature(s))
		return
	}
	writeJSON(w, s)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
