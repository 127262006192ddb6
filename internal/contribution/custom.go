package contribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/i18n"
	"github.com/georiviere/georiviere-api/internal/portal"
	"github.com/georiviere/georiviere-api/internal/station"
	"github.com/georiviere/georiviere-api/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomOwnerType tags attachments of custom contributions.
const CustomOwnerType = "custom_contribution"

var (
	ErrCustomTypeNotFound = errors.New("custom contribution type not found")
	ErrEmptyFieldKey      = errors.New("field key is empty")
	ErrReservedFieldKey   = errors.New("field key is reserved")
)

// reservedKeys are the keys CustomBody writes itself; a field stored
// under one of them would never be returned.
var reservedKeys = map[string]bool{
	"id":             true,
	"custom_type":    true,
	"station":        true,
	"validated":      true,
	"contributed_at": true,
	"attachments":    true,
}

// IsReservedKey reports whether key clashes with a fixed response key.
func IsReservedKey(key string) bool { return reservedKeys[key] }

// maxSafeInteger bounds integer values to what survives a round trip
// through a JSON number.
const maxSafeInteger = 1 << 53

// ValueType is the type of a custom field.
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueText    ValueType = "text"
	ValueInteger ValueType = "integer"
	ValueFloat   ValueType = "float"
	ValueBoolean ValueType = "boolean"
	ValueDate    ValueType = "date"
)

// Valid reports whether v is one of the supported value types.
func (v ValueType) Valid() bool {
	switch v {
	case ValueString, ValueText, ValueInteger, ValueFloat, ValueBoolean, ValueDate:
		return true
	}
	return false
}

func (v ValueType) jsonType() string {
	switch v {
	case ValueInteger:
		return "integer"
	case ValueFloat:
		return "number"
	case ValueBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// CustomContributionType is a contribution form defined by administrators
// and offered at a set of stations.
type CustomContributionType struct {
	ID          uint                       `gorm:"primaryKey" json:"id"`
	Label       string                     `gorm:"not null;size:128;uniqueIndex" json:"label"`
	Description string                     `json:"description"`
	Stations    []station.Station          `gorm:"many2many:custom_contribution_type_stations;constraint:OnDelete:CASCADE" json:"-"`
	Fields      []CustomFieldSpecification `gorm:"foreignKey:CustomTypeID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time                  `json:"-"`
	UpdatedAt   time.Time                  `json:"-"`
}

// StationIDs returns the ids of the associated stations.
func (t *CustomContributionType) StationIDs() []uint {
	out := make([]uint, len(t.Stations))
	for i, s := range t.Stations {
		out[i] = s.ID
	}
	return out
}

// HasStation reports whether the type is offered at station id.
func (t *CustomContributionType) HasStation(id uint) bool {
	return slices.Contains(t.StationIDs(), id)
}

// CustomFieldSpecification is one field of a custom type. Key is derived
// from Label when left empty and is unique within the type.
type CustomFieldSpecification struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	CustomTypeID uint         `gorm:"not null;uniqueIndex:idx_custom_field_key" json:"-"`
	Key          string       `gorm:"not null;size:128;uniqueIndex:idx_custom_field_key" json:"key"`
	Label        string       `gorm:"not null;size:128" json:"label"`
	ValueType    ValueType    `gorm:"not null;size:16" json:"value_type"`
	Required     bool         `gorm:"not null;default:false" json:"required"`
	HelpText     string       `json:"help_text"`
	Options      db.TextArray `json:"options"`
	Order        int          `gorm:"column:sort_order;not null;default:0" json:"order"`
}

func (f *CustomFieldSpecification) BeforeSave(tx *gorm.DB) error {
	if strings.TrimSpace(f.Key) == "" {
		f.Key = utils.Slugify(f.Label)
	}
	if f.Key == "" {
		return ErrEmptyFieldKey
	}
	if IsReservedKey(f.Key) {
		return fmt.Errorf("%w: %s", ErrReservedFieldKey, f.Key)
	}
	return nil
}

// CustomContribution is a submission of a custom type. Field values live
// in Data, keyed by field key.
type CustomContribution struct {
	ID            uint                    `gorm:"primaryKey" json:"id"`
	CustomTypeID  uint                    `gorm:"not null;index" json:"custom_type"`
	CustomType    *CustomContributionType `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	StationID     uint                    `gorm:"not null;index" json:"station"`
	Station       *station.Station        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PortalID      uint                    `gorm:"not null;index" json:"-"`
	Portal        *portal.Portal          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Validated     bool                    `gorm:"not null;default:false;index" json:"validated"`
	ContributedAt *time.Time              `json:"contributed_at"`
	Data          datatypes.JSONMap       `json:"-"`
	CreatedAt     time.Time               `json:"-"`
	UpdatedAt     time.Time               `json:"-"`

	Attachments []attachment.Attachment `gorm:"-" json:"attachments"`
}

func (c *CustomContribution) AfterDelete(tx *gorm.DB) error {
	return attachment.DeleteForOwner(tx, attachment.Owner{Type: CustomOwnerType, ID: c.ID})
}

// GetCustomType loads a type with its stations and ordered fields.
func GetCustomType(ctx context.Context, tx *gorm.DB, id uint) (*CustomContributionType, error) {
	var t CustomContributionType
	err := tx.WithContext(ctx).
		Preload("Fields", func(q *gorm.DB) *gorm.DB { return q.Order("sort_order, id") }).
		Preload("Stations", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCustomTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load custom type %d: %w", id, err)
	}
	return &t, nil
}

// ValidateCustomValues checks raw against specs and returns the typed
// values. Blank values of optional fields are left out, unknown keys are
// ignored.
func ValidateCustomValues(lang string, specs []CustomFieldSpecification, raw map[string]any) (map[string]any, []FieldError) {
	values := map[string]any{}
	var errs []FieldError

	for _, f := range specs {
		v, present := raw[f.Key]
		if !present || isBlank(v) {
			if f.Required {
				errs = append(errs, FieldError{Key: f.Key, Message: i18n.Sprintf(lang, i18n.FieldRequired)})
			}
			continue
		}

		typed, ok := coerce(f.ValueType, v)
		if !ok {
			msg := i18n.Sprintf(lang, i18n.FieldInvalidType, string(f.ValueType), fmt.Sprint(v))
			if f.ValueType == ValueDate {
				msg = i18n.Sprintf(lang, i18n.InvalidDate, fmt.Sprint(v))
			}
			errs = append(errs, FieldError{Key: f.Key, Message: msg})
			continue
		}
		if len(f.Options) > 0 && !slices.Contains([]string(f.Options), fmt.Sprint(typed)) {
			errs = append(errs, FieldError{Key: f.Key, Message: i18n.Sprintf(lang, i18n.FieldNotAChoice, fmt.Sprint(typed))})
			continue
		}
		values[f.Key] = typed
	}
	return values, errs
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// coerce accepts native JSON values as well as their string form, as sent
// by multipart forms.
func coerce(t ValueType, v any) (any, bool) {
	switch t {
	case ValueString, ValueText:
		s, ok := v.(string)
		return s, ok
	case ValueInteger:
		var n int64
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) || math.Abs(x) > maxSafeInteger {
				return nil, false
			}
			n = int64(x)
		case json.Number:
			i, err := x.Int64()
			if err != nil {
				return nil, false
			}
			n = i
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, false
			}
			n = i
		default:
			return nil, false
		}
		if n > maxSafeInteger || n < -maxSafeInteger {
			return nil, false
		}
		return n, true
	case ValueFloat:
		switch x := v.(type) {
		case float64:
			return x, true
		case json.Number:
			n, err := x.Float64()
			return n, err == nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			return n, err == nil
		}
	case ValueBoolean:
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "1", "on", "yes", "oui":
				return true, true
			case "false", "0", "off", "no", "non":
				return false, true
			}
		}
	case ValueDate:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		d, err := time.Parse(dateLayout, strings.TrimSpace(s))
		if err != nil {
			return nil, false
		}
		return d.Format(dateLayout), true
	}
	return nil, false
}

// CustomSubmission is a custom contribution as received from a client.
// Values holds "station", "contributed_at" and the field values.
type CustomSubmission struct {
	Lang   string
	Portal *portal.Portal
	Type   *CustomContributionType
	Values map[string]any
	Files  []attachment.Upload
}

var contributedAtLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", dateLayout}

// SubmitCustom validates and stores a custom contribution. It is created
// unvalidated; no mail is sent.
func (p *Pipeline) SubmitCustom(ctx context.Context, s CustomSubmission) (*CustomContribution, error) {
	c, err := p.buildCustom(s)
	if err == nil {
		err = db.DB.WithContext(ctx).Omit(clause.Associations).Create(c).Error
	}
	p.Metrics.Submission("custom", s.Type.Label, outcomeOf(err))
	if err != nil {
		return nil, err
	}

	c.Attachments = p.attach(ctx, s.Files, attachment.Owner{Type: CustomOwnerType, ID: c.ID})
	p.logger().Info("custom contribution created",
		"id", c.ID, "custom_type", c.CustomTypeID, "station_id", c.StationID,
		"attachments", len(c.Attachments))
	return c, nil
}

func (p *Pipeline) buildCustom(s CustomSubmission) (*CustomContribution, error) {
	var errs []FieldError

	stationID, ok := asID(s.Values["station"])
	switch {
	case isBlank(s.Values["station"]):
		errs = append(errs, FieldError{Key: "station", Message: i18n.Sprintf(s.Lang, i18n.FieldRequired)})
	case !ok:
		errs = append(errs, FieldError{Key: "station", Message: i18n.Sprintf(s.Lang, i18n.FieldInvalidType, "integer", fmt.Sprint(s.Values["station"]))})
	case !s.Type.HasStation(stationID):
		errs = append(errs, FieldError{Key: "station", Message: i18n.Sprintf(s.Lang, i18n.StationNotInType, stationID)})
	}

	contributedAt := time.Now()
	if raw, ok := s.Values["contributed_at"].(string); ok && strings.TrimSpace(raw) != "" {
		t, err := parseDateTime(raw)
		if err != nil {
			errs = append(errs, FieldError{Key: "contributed_at", Message: i18n.Sprintf(s.Lang, i18n.InvalidDateTime, raw)})
		}
		contributedAt = t
	}

	values, fieldErrs := ValidateCustomValues(s.Lang, s.Type.Fields, s.Values)
	errs = append(errs, fieldErrs...)
	if len(errs) > 0 {
		return nil, &FieldTypeError{Errors: errs}
	}

	return &CustomContribution{
		CustomTypeID:  s.Type.ID,
		StationID:     stationID,
		PortalID:      s.Portal.ID,
		ContributedAt: &contributedAt,
		Data:          datatypes.JSONMap(values),
	}, nil
}

func parseDateTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var err error
	for _, layout := range contributedAtLayouts {
		t, perr := time.Parse(layout, raw)
		if perr == nil {
			return t, nil
		}
		err = perr
	}
	return time.Time{}, err
}

func asID(v any) (uint, bool) {
	switch x := v.(type) {
	case float64:
		if x <= 0 || x != math.Trunc(x) {
			return 0, false
		}
		return uint(x), true
	case json.Number:
		n, err := strconv.ParseUint(x.String(), 10, 64)
		return uint(n), err == nil && n > 0
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		return uint(n), err == nil && n > 0
	}
	return 0, false
}
