package river

import (
	"github.com/georiviere/georiviere-api/internal/geo"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
)

// Flow regimes of a stream.
const (
	FlowUnknown      = "unknown"
	FlowPermanent    = "permanent"
	FlowIntermittent = "intermittent"
	FlowEphemeral    = "ephemeral"
)

var flows = map[string]bool{
	FlowUnknown:      true,
	FlowPermanent:    true,
	FlowIntermittent: true,
	FlowEphemeral:    true,
}

// Stream is a river segment of the reference network.
type Stream struct {
	ID                        uint         `gorm:"primaryKey" json:"id"`
	Name                      string       `gorm:"not null;index" json:"name"`
	Geom                      geo.Geometry `gorm:"not null" json:"-"`
	SourceLocation            geo.Geometry `json:"source_location"`
	DataSource                string       `json:"data_source"`
	ClassificationWaterPolicy string       `json:"classification_water_policy"`
	Flow                      string       `gorm:"not null;default:'unknown'" json:"flow"`
}

// BeforeSave places the source at the first vertex when none is given.
func (s *Stream) BeforeSave(*gorm.DB) error {
	if !s.SourceLocation.IsNull() {
		return nil
	}
	if p, ok := firstVertex(s.Geom.Geometry); ok {
		s.SourceLocation = geo.Geometry{Geometry: p}
	}
	return nil
}

func firstVertex(g orb.Geometry) (orb.Point, bool) {
	switch v := g.(type) {
	case orb.LineString:
		if len(v) > 0 {
			return v[0], true
		}
	case orb.MultiLineString:
		if len(v) > 0 && len(v[0]) > 0 {
			return v[0][0], true
		}
	}
	return orb.Point{}, false
}
