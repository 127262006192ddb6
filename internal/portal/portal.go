package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/georiviere/georiviere-api/internal/config"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/geo"
	"github.com/georiviere/georiviere-api/internal/utils"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

var ErrPortalNotFound = errors.New("portal not found")

// DefaultExtent is used as map bounds for portals without a spatial extent.
var DefaultExtent = config.DefaultSpatialExtent

// Get loads a portal by primary key.
func Get(ctx context.Context, id uint) (*Portal, error) {
	var p Portal
	err := db.DB.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPortalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load portal %d: %w", id, err)
	}
	return &p, nil
}

// FromRequest resolves the {portalID} route parameter.
func FromRequest(r *http.Request) (*Portal, error) {
	raw, _ := utils.SplitFormat(chi.URLParam(r, "portalID"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrPortalNotFound
	}
	return Get(r.Context(), uint(id))
}

// Bounds returns [minx, miny, maxx, maxy] of the portal extent, or
// DefaultExtent when it has none.
func (p *Portal) Bounds() [4]float64 {
	if p.SpatialExtent.IsNull() {
		return DefaultExtent
	}
	return geo.Bounds(p.SpatialExtent.Geometry)
}
