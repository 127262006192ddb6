package station

import "github.com/georiviere/georiviere-api/internal/geo"

// Station is a monitoring location. Custom contribution types are scoped to
// a set of stations.
type Station struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Code        string       `gorm:"not null;uniqueIndex" json:"code"`
	Label       string       `gorm:"not null" json:"label"`
	Description string       `json:"description"`
	Geom        geo.Geometry `json:"geometry"`
}
