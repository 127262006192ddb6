package portal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"gorm.io/gorm"
)

type LayerGroup struct {
	Label  *string    `json:"label"`
	Layers []MapLayer `json:"layers"`
}

type MapResponse struct {
	Group      []LayerGroup   `json:"group"`
	BaseLayers []MapBaseLayer `json:"base_layers"`
	Bounds     [4]float64     `json:"bounds"`
}

type DetailResponse struct {
	ID   uint        `json:"id"`
	Name string      `json:"name"`
	Map  MapResponse `json:"map"`
}

// Serialize builds the map configuration of p. Layers that belong to no
// group are appended as a last group with a null label.
func Serialize(tx *gorm.DB, p *Portal) (DetailResponse, error) {
	var groups []MapGroupLayer
	err := tx.Where("portal_id = ?", p.ID).
		Preload("Layers", func(tx *gorm.DB) *gorm.DB { return tx.Order("sort_order, id") }).
		Order("sort_order, id").
		Find(&groups).Error
	if err != nil {
		return DetailResponse{}, err
	}

	var base []MapBaseLayer
	if err := tx.Where("portal_id = ?", p.ID).Order("sort_order, id").Find(&base).Error; err != nil {
		return DetailResponse{}, err
	}

	var loose []MapLayer
	if err := tx.Where("portal_id = ? AND group_layer_id IS NULL", p.ID).Order("sort_order, id").Find(&loose).Error; err != nil {
		return DetailResponse{}, err
	}

	out := DetailResponse{
		ID:   p.ID,
		Name: p.Name,
		Map: MapResponse{
			Group:      make([]LayerGroup, 0, len(groups)+1),
			BaseLayers: base,
			Bounds:     p.Bounds(),
		},
	}
	for _, g := range groups {
		label := g.Label
		out.Map.Group = append(out.Map.Group, LayerGroup{Label: &label, Layers: nonNil(g.Layers)})
	}
	if len(loose) > 0 {
		out.Map.Group = append(out.Map.Group, LayerGroup{Label: nil, Layers: loose})
	}
	if out.Map.BaseLayers == nil {
		out.Map.BaseLayers = []MapBaseLayer{}
	}
	return out, nil
}

func DetailHandler(w http.ResponseWriter, r *http.Request) {
	p, err := FromRequest(r)
	if errors.Is(err, ErrPortalNotFound) {
		http.Error(w, "Portal not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Module("portal").Error("load portal", "error", err)
		http.Error(w, "Failed to load portal", http.StatusInternalServerError)
		return
	}

	resp, err := Serialize(db.DB.WithContext(r.Context()), p)
	if err != nil {
		logger.Module("portal").Error("serialize portal", "portal_id", p.ID, "error", err)
		http.Error(w, "Failed to load portal", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

func nonNil(layers []MapLayer) []MapLayer {
	if layers == nil {
		return []MapLayer{}
	}
	return layers
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
