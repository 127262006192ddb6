package seeds

import (
	"errors"
	"fmt"
	"os"

	"github.com/georiviere/georiviere-api/internal/contribution"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/geo"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/portal"
	"github.com/georiviere/georiviere-api/internal/station"
	"github.com/goccy/go-yaml"
	"gorm.io/gorm"
)

// File is the layout of a seed document.
type File struct {
	Portals          []PortalSeed     `yaml:"portals"`
	Stations         []StationSeed    `yaml:"stations"`
	NaturePollutions []string         `yaml:"nature_pollutions"`
	Severities       []string         `yaml:"severities"`
	Statuses         []string         `yaml:"statuses"`
	CustomTypes      []CustomTypeSeed `yaml:"custom_types"`
}

type PortalSeed struct {
	Name          string      `yaml:"name"`
	Title         string      `yaml:"title"`
	Website       string      `yaml:"website"`
	Description   string      `yaml:"description"`
	SpatialExtent string      `yaml:"spatial_extent"`
	BaseLayers    []LayerSeed `yaml:"base_layers"`
	Groups        []GroupSeed `yaml:"groups"`
	Layers        []LayerSeed `yaml:"layers"`
}

type GroupSeed struct {
	Label  string      `yaml:"label"`
	Layers []LayerSeed `yaml:"layers"`
}

type LayerSeed struct {
	Label         string `yaml:"label"`
	URL           string `yaml:"url"`
	Attribution   string `yaml:"attribution"`
	LayerType     string `yaml:"layer_type"`
	DefaultActive bool   `yaml:"default_active"`
	Style         string `yaml:"style"`
}

type StationSeed struct {
	Code        string `yaml:"code"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Geom        string `yaml:"geom"`
}

type CustomTypeSeed struct {
	Label       string      `yaml:"label"`
	Description string      `yaml:"description"`
	Stations    []string    `yaml:"stations"`
	Fields      []FieldSeed `yaml:"fields"`
}

type FieldSeed struct {
	Key       string   `yaml:"key"`
	Label     string   `yaml:"label"`
	ValueType string   `yaml:"value_type"`
	Required  bool     `yaml:"required"`
	HelpText  string   `yaml:"help_text"`
	Options   []string `yaml:"options"`
}

// Load reads and decodes a seed document.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// SeedAll loads path and inserts whatever is not there yet. Rows are
// matched on their natural key (portal name, station code, label), so
// running it twice is harmless.
func SeedAll(path string) error {
	f, err := Load(path)
	if err != nil {
		return err
	}
	return db.DB.Transaction(func(tx *gorm.DB) error {
		return Seed(tx, f)
	})
}

func Seed(tx *gorm.DB, f *File) error {
	log := logger.Module("seeds")

	for _, label := range f.Statuses {
		if err := tx.FirstOrCreate(&contribution.ContributionStatus{}, contribution.ContributionStatus{Label: label}).Error; err != nil {
			return fmt.Errorf("status %s: %w", label, err)
		}
	}
	for _, label := range f.NaturePollutions {
		if err := tx.FirstOrCreate(&contribution.NaturePollution{}, contribution.NaturePollution{Label: label}).Error; err != nil {
			return fmt.Errorf("nature pollution %s: %w", label, err)
		}
	}
	for _, label := range f.Severities {
		if err := tx.FirstOrCreate(&contribution.SeverityType{}, contribution.SeverityType{Label: label}).Error; err != nil {
			return fmt.Errorf("severity %s: %w", label, err)
		}
	}

	created := 0
	for _, p := range f.Portals {
		ok, err := seedPortal(tx, p)
		if err != nil {
			return fmt.Errorf("portal %s: %w", p.Name, err)
		}
		if ok {
			created++
		}
	}
	log.Info("Seeded portals", "created", created, "total", len(f.Portals))

	for _, s := range f.Stations {
		if err := seedStation(tx, s); err != nil {
			return fmt.Errorf("station %s: %w", s.Code, err)
		}
	}
	log.Info("Seeded stations", "total", len(f.Stations))

	for _, ct := range f.CustomTypes {
		if err := seedCustomType(tx, ct); err != nil {
			return fmt.Errorf("custom type %s: %w", ct.Label, err)
		}
	}
	log.Info("Seeded custom contribution types", "total", len(f.CustomTypes))
	return nil
}

func seedPortal(tx *gorm.DB, s PortalSeed) (bool, error) {
	var existing portal.Portal
	err := tx.First(&existing, "name = ?", s.Name).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	p := portal.Portal{Name: s.Name, Title: s.Title, Website: s.Website, Description: s.Description}
	if s.SpatialExtent != "" {
		if p.SpatialExtent, err = geo.ParseWKT(s.SpatialExtent); err != nil {
			return false, err
		}
	}
	if err := tx.Create(&p).Error; err != nil {
		return false, err
	}

	for i, l := range s.BaseLayers {
		base := portal.MapBaseLayer{PortalID: p.ID, Label: l.Label, URL: l.URL, Attribution: l.Attribution, Order: i}
		if err := tx.Create(&base).Error; err != nil {
			return false, err
		}
	}
	order := 0
	for i, g := range s.Groups {
		group := portal.MapGroupLayer{PortalID: p.ID, Label: g.Label, Order: i}
		if err := tx.Create(&group).Error; err != nil {
			return false, err
		}
		for _, l := range g.Layers {
			if err := createLayer(tx, p.ID, &group.ID, l, order); err != nil {
				return false, err
			}
			order++
		}
	}
	for _, l := range s.Layers {
		if err := createLayer(tx, p.ID, nil, l, order); err != nil {
			return false, err
		}
		order++
	}
	return true, nil
}

func createLayer(tx *gorm.DB, portalID uint, groupID *uint, l LayerSeed, order int) error {
	return tx.Create(&portal.MapLayer{
		PortalID:      portalID,
		GroupLayerID:  groupID,
		Label:         l.Label,
		LayerType:     l.LayerType,
		URL:           l.URL,
		DefaultActive: l.DefaultActive,
		Style:         l.Style,
		Order:         order,
	}).Error
}

func seedStation(tx *gorm.DB, s StationSeed) error {
	var existing station.Station
	err := tx.First(&existing, "code = ?", s.Code).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	st := station.Station{Code: s.Code, Label: s.Label, Description: s.Description}
	if s.Geom != "" {
		if st.Geom, err = geo.ParseWKT(s.Geom); err != nil {
			return err
		}
	}
	return tx.Create(&st).Error
}

func seedCustomType(tx *gorm.DB, s CustomTypeSeed) error {
	var existing contribution.CustomContributionType
	err := tx.First(&existing, "label = ?", s.Label).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var stations []station.Station
	if len(s.Stations) > 0 {
		if err := tx.Where("code IN ?", s.Stations).Find(&stations).Error; err != nil {
			return err
		}
		if len(stations) != len(s.Stations) {
			return fmt.Errorf("unknown station in %v", s.Stations)
		}
	}

	ct := contribution.CustomContributionType{Label: s.Label, Description: s.Description, Stations: stations}
	if err := tx.Create(&ct).Error; err != nil {
		return err
	}
	for i, f := range s.Fields {
		field := contribution.CustomFieldSpecification{
			CustomTypeID: ct.ID,
			Key:          f.Key,
			Label:        f.Label,
			ValueType:    contribution.ValueType(f.ValueType),
			Required:     f.Required,
			HelpText:     f.HelpText,
			Options:      f.Options,
			Order:        i,
		}
		if !field.ValueType.Valid() {
			return fmt.Errorf("field %s: unknown value type %q", f.Label, f.ValueType)
		}
		if err := tx.Create(&field).Error; err != nil {
			return fmt.Errorf("field %s: %w", f.Label, err)
		}
	}
	return nil
}
