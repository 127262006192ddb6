package utils

import "strings"

// Output formats selectable with a path suffix.
const (
	FormatJSON    = "json"
	FormatGeoJSON = "geojson"
)

// SplitFormat strips a ".json" or ".geojson" suffix from a path segment:
// "12.geojson" gives ("12", "geojson"), "12" gives ("12", "json").
func SplitFormat(segment string) (string, string) {
	for _, f := range []string{FormatGeoJSON, FormatJSON} {
		if base, ok := strings.CutSuffix(segment, "."+f); ok {
			return base, f
		}
	}
	return segment, FormatJSON
}
