package contribution

import (
	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/paulmach/orb/geojson"
)

// Item is the public rendering of a published contribution.
type Item struct {
	ID          uint                    `json:"id"`
	Category    string                  `json:"category"`
	Type        string                  `json:"type"`
	Description string                  `json:"description"`
	Attachments []attachment.Attachment `json:"attachments"`
}

func NewItem(c *Contribution) Item {
	return Item{
		ID:          c.ID,
		Category:    c.Category,
		Type:        c.TypeLabel(),
		Description: c.Description,
		Attachments: nonNilAttachments(c.Attachments),
	}
}

// Feature renders c as GeoJSON with the category as only property.
func Feature(c *Contribution) *geojson.Feature {
	f := geojson.NewFeature(c.Geom.Geometry)
	f.ID = c.ID
	f.Properties = geojson.Properties{"category": c.Category}
	return f
}

// CustomTypeItem is the list rendering of a custom type.
type CustomTypeItem struct {
	ID          uint   `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Stations    []uint `json:"stations"`
}

// CustomTypeDetail adds the fields and their schema.
type CustomTypeDetail struct {
	CustomTypeItem
	Fields     []CustomFieldSpecification `json:"fields"`
	JSONSchema *Schema                    `json:"json_schema"`
}

func NewCustomTypeItem(t *CustomContributionType) CustomTypeItem {
	return CustomTypeItem{
		ID:          t.ID,
		Label:       t.Label,
		Description: t.Description,
		Stations:    t.StationIDs(),
	}
}

func NewCustomTypeDetail(t *CustomContributionType) CustomTypeDetail {
	fields := t.Fields
	if fields == nil {
		fields = []CustomFieldSpecification{}
	}
	return CustomTypeDetail{
		CustomTypeItem: NewCustomTypeItem(t),
		Fields:         fields,
		JSONSchema:     GenerateCustomSchema(t),
	}
}

// CustomBody renders a custom contribution with its field values at the
// top level, next to the fixed keys.
func CustomBody(c *CustomContribution) map[string]any {
	out := make(map[string]any, len(c.Data)+6)
	for k, v := range c.Data {
		out[k] = v
	}
	out["id"] = c.ID
	out["custom_type"] = c.CustomTypeID
	out["station"] = c.StationID
	out["validated"] = c.Validated
	out["contributed_at"] = c.ContributedAt
	out["attachments"] = nonNilAttachments(c.Attachments)
	return out
}

func nonNilAttachments(a []attachment.Attachment) []attachment.Attachment {
	if a == nil {
		return []attachment.Attachment{}
	}
	return a
}
