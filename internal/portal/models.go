package portal

import (
	"time"

	"github.com/georiviere/georiviere-api/internal/geo"
)

// Portal is a tenant: one map front-end with its own layers and its own
// contributions.
type Portal struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"not null;uniqueIndex" json:"name"`
	Website       string       `json:"website"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	SpatialExtent geo.Geometry `json:"-"`
	CreatedAt     time.Time    `json:"-"`
	UpdatedAt     time.Time    `json:"-"`

	BaseLayers  []MapBaseLayer  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	GroupLayers []MapGroupLayer `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Layers      []MapLayer      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// MapBaseLayer is a background tile layer (OSM, orthophoto...).
type MapBaseLayer struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	PortalID    uint   `gorm:"not null;index" json:"-"`
	Label       string `gorm:"not null" json:"label"`
	URL         string `gorm:"not null" json:"url"`
	Attribution string `json:"attribution"`
	Order       int    `gorm:"column:sort_order" json:"order"`
}

// MapGroupLayer groups overlay layers in the map legend.
type MapGroupLayer struct {
	ID       uint       `gorm:"primaryKey" json:"-"`
	PortalID uint       `gorm:"not null;index" json:"-"`
	Label    string     `gorm:"not null" json:"label"`
	Order    int        `gorm:"column:sort_order" json:"-"`
	Layers   []MapLayer `gorm:"foreignKey:GroupLayerID;constraint:OnDelete:SET NULL" json:"layers"`
}

// MapLayer is an overlay layer fed by one of the API endpoints.
type MapLayer struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	PortalID      uint   `gorm:"not null;index" json:"-"`
	GroupLayerID  *uint  `gorm:"index" json:"-"`
	Label         string `gorm:"not null" json:"label"`
	LayerType     string `json:"layer_type"`
	URL           string `json:"url"`
	DefaultActive bool   `json:"default_active"`
	Style         string `json:"style"`
	Order         int    `gorm:"column:sort_order" json:"order"`
}
