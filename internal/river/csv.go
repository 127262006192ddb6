package river

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/georiviere/georiviere-api/internal/geo"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
)

// Row is one stream of an import file.
//
// CSV contract (header required, any column order):
//
//	name,wkt,data_source,classification_water_policy,flow
type Row struct {
	Name                      string
	Geom                      geo.Geometry
	DataSource                string
	ClassificationWaterPolicy string
	Flow                      string
}

var requiredColumns = []string{"name", "wkt"}

func ParseCSV(in io.Reader) ([]Row, error) {
	r := csv.NewReader(bufio.NewReader(in))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("stream csv: header only")
	}

	col := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff") // spreadsheet exports
		}
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range requiredColumns {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("stream csv: no %q column", k)
		}
	}

	var out []Row
	for rowIdx := 1; rowIdx < len(records); rowIdx++ {
		rec := records[rowIdx]
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		name := get("name")
		if name == "" {
			return nil, fmt.Errorf("row %d: name is required", rowIdx+1)
		}

		g, err := geo.ParseWKT(get("wkt"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowIdx+1, err)
		}
		switch g.Geometry.(type) {
		case orb.LineString, orb.MultiLineString:
		default:
			return nil, fmt.Errorf("row %d: stream geometry must be a (multi)linestring, got %s", rowIdx+1, g.GeoJSONType())
		}

		flow := strings.ToLower(get("flow"))
		if flow == "" {
			flow = FlowUnknown
		}
		if !flows[flow] {
			return nil, fmt.Errorf("row %d: unknown flow %q", rowIdx+1, flow)
		}

		out = append(out, Row{
			Name:                      name,
			Geom:                      g,
			DataSource:                get("data_source"),
			ClassificationWaterPolicy: get("classification_water_policy"),
			Flow:                      flow,
		})
	}

	return out, nil
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Wipe deletes every existing stream first.
	Wipe bool
}

// Import inserts rows in a single transaction and returns how many streams
// were created.
func Import(d *gorm.DB, rows []Row, opts ImportOptions) (int, error) {
	streams := make([]Stream, 0, len(rows))
	for _, r := range rows {
		streams = append(streams, Stream{
			Name:                      r.Name,
			Geom:                      r.Geom,
			DataSource:                r.DataSource,
			ClassificationWaterPolicy: r.ClassificationWaterPolicy,
			Flow:                      r.Flow,
		})
	}

	err := d.Transaction(func(tx *gorm.DB) error {
		if opts.Wipe {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Stream{}).Error; err != nil {
				return fmt.Errorf("wipe streams: %w", err)
			}
		}
		if len(streams) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&streams, 200).Error; err != nil {
			return fmt.Errorf("insert streams: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(streams), nil
}
