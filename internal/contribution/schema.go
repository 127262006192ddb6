package contribution

import (
	"context"

	"github.com/georiviere/georiviere-api/internal/i18n"
	"gorm.io/gorm"
)

// Schema is the JSON Schema document clients validate submissions against.
type Schema struct {
	Type       string              `json:"type"`
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
	AllOf      []Branch            `json:"allOf,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Format      string   `json:"format,omitempty"`
	MaxLength   int      `json:"maxLength,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Branch applies Then when the submission's category equals If.
type Branch struct {
	If   Condition  `json:"if"`
	Then BranchBody `json:"then"`
}

type Condition struct {
	Properties map[string]Const `json:"properties"`
}

type Const struct {
	Const string `json:"const"`
}

type BranchBody struct {
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// SchemaFunc builds the standard contribution schema.
type SchemaFunc func(ctx context.Context, tx *gorm.DB, lang string) (*Schema, error)

// GenerateSchema builds the schema of standard contributions. Categories and
// types come from the registry, extra field enums from their lookup tables,
// read on every call.
func GenerateSchema(ctx context.Context, tx *gorm.DB, lang string) (*Schema, error) {
	tx = tx.WithContext(ctx)
	p := i18n.Printer(lang)

	s := &Schema{
		Type:     "object",
		Required: []string{"email_author", "date_observation", "category"},
		Properties: map[string]Property{
			"name_author":       {Type: "string", Title: p.Sprintf(i18n.TitleNameAuthor), MaxLength: 128},
			"first_name_author": {Type: "string", Title: p.Sprintf(i18n.TitleFirstNameAuthor), MaxLength: 128},
			"email_author":      {Type: "string", Title: p.Sprintf(i18n.TitleEmailAuthor), Format: "email"},
			"date_observation":  {Type: "string", Title: p.Sprintf(i18n.TitleDateObservation), Format: "date"},
			"description":       {Type: "string", Title: p.Sprintf(i18n.TitleDescription)},
			"category":          {Type: "string", Title: p.Sprintf(i18n.TitleCategory), Enum: Labels()},
		},
	}

	for _, cat := range registry {
		body := BranchBody{Properties: map[string]Property{}}
		for _, f := range cat.Fields() {
			prop := Property{Type: "string", Title: p.Sprintf(f.Title)}
			switch {
			case f.Lookup != nil:
				labels, err := f.Lookup.Labels(tx)
				if err != nil {
					return nil, err
				}
				prop.Enum = labels
			default:
				for _, c := range f.Choices {
					prop.Enum = append(prop.Enum, c.Label)
				}
			}
			body.Properties[f.Key] = prop
			if f.Required {
				body.Required = append(body.Required, f.Key)
			}
		}
		s.AllOf = append(s.AllOf, Branch{
			If:   Condition{Properties: map[string]Const{"category": {Const: cat.Label}}},
			Then: body,
		})
	}
	return s, nil
}

// GenerateCustomSchema builds the schema of one custom contribution type
// from its current field specifications.
func GenerateCustomSchema(t *CustomContributionType) *Schema {
	s := &Schema{
		Type:       "object",
		Required:   []string{},
		Properties: map[string]Property{},
	}
	for _, f := range t.Fields {
		prop := Property{
			Type:        f.ValueType.jsonType(),
			Title:       f.Label,
			Description: f.HelpText,
		}
		if prop.Type == "string" {
			prop.Enum = []string(f.Options)
		}
		if f.ValueType == ValueDate {
			prop.Format = "date"
		}
		s.Properties[f.Key] = prop
		if f.Required {
			s.Required = append(s.Required, f.Key)
		}
	}
	return s
}
