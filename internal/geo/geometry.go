// Package geo holds the geometry column type shared by every model with a
// spatial field. Geometries are WGS84 (SRID 4326).
package geo

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const SRID = 4326

var ErrInvalidGeometry = errors.New("invalid geometry")

// Geometry wraps an orb geometry so it can be stored by GORM and rendered as
// GeoJSON. A nil Geometry is stored as NULL.
type Geometry struct {
	orb.Geometry
}

// NewPoint returns a point geometry.
func NewPoint(lng, lat float64) Geometry {
	return Geometry{Geometry: orb.Point{lng, lat}}
}

// Point returns the geometry as a point, if it is one.
func (g Geometry) Point() (orb.Point, bool) {
	p, ok := g.Geometry.(orb.Point)
	return p, ok
}

func (g Geometry) IsNull() bool { return g.Geometry == nil }

func (g Geometry) WKT() string {
	if g.Geometry == nil {
		return ""
	}
	return wkt.MarshalString(g.Geometry)
}

// GormDataType keeps GORM from walking into the embedded interface.
func (Geometry) GormDataType() string { return "geometry" }

func (Geometry) GormDBDataType(d *gorm.DB, _ *schema.Field) string {
	if d.Dialector.Name() == "postgres" {
		return fmt.Sprintf("geometry(Geometry,%d)", SRID)
	}
	return "text"
}

func (g Geometry) GormValue(_ context.Context, d *gorm.DB) clause.Expr {
	if g.Geometry == nil {
		return clause.Expr{SQL: "NULL"}
	}
	if d.Dialector.Name() == "postgres" {
		return clause.Expr{SQL: "ST_GeomFromText(?, ?)", Vars: []any{g.WKT(), SRID}}
	}
	return clause.Expr{SQL: "?", Vars: []any{g.WKT()}}
}

// Scan reads hex EWKB (PostGIS) or WKT (text columns).
func (g *Geometry) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		g.Geometry = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrInvalidGeometry, src)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		g.Geometry = nil
		return nil
	}

	if isHex(raw) {
		data, err := hex.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		geom, _, err := ewkb.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		g.Geometry = geom
		return nil
	}

	parsed, err := ParseWKT(raw)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.Geometry == nil {
		return []byte("null"), nil
	}
	return json.Marshal(geojson.NewGeometry(g.Geometry))
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		g.Geometry = nil
		return nil
	}
	gj, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	g.Geometry = gj.Geometry()
	return nil
}

// ParseWKT parses WKT, optionally prefixed by "SRID=4326;".
func ParseWKT(raw string) (Geometry, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, ";"); i >= 0 && strings.HasPrefix(strings.ToUpper(raw), "SRID=") {
		raw = raw[i+1:]
	}
	geom, err := wkt.Unmarshal(raw)
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return Geometry{Geometry: geom}, nil
}

// ParseGeometry accepts WKT ("POINT(4 43.5)") or a GeoJSON geometry object.
func ParseGeometry(raw string) (Geometry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Geometry{}, fmt.Errorf("%w: empty", ErrInvalidGeometry)
	}
	if strings.HasPrefix(raw, "{") {
		var g Geometry
		if err := g.UnmarshalJSON([]byte(raw)); err != nil {
			return Geometry{}, err
		}
		if g.Geometry == nil {
			return Geometry{}, fmt.Errorf("%w: empty", ErrInvalidGeometry)
		}
		return g, nil
	}
	return ParseWKT(raw)
}

// Bounds returns [minx, miny, maxx, maxy].
func Bounds(g orb.Geometry) [4]float64 {
	b := g.Bound()
	return [4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
}

func isHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
