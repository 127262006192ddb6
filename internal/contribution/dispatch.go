package contribution

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/geo"
	"github.com/georiviere/georiviere-api/internal/geocoding"
	"github.com/georiviere/georiviere-api/internal/i18n"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/metrics"
	"github.com/georiviere/georiviere-api/internal/notification"
	"github.com/georiviere/georiviere-api/internal/portal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

// Submission is a standard contribution as received from a client.
type Submission struct {
	Lang       string
	Portal     *portal.Portal
	Geom       string
	Properties string
	Files      []attachment.Upload
}

// Geocoder turns a point into a locality.
type Geocoder interface {
	Reverse(ctx context.Context, lng, lat float64) (*geocoding.Result, error)
}

// Pipeline carries the collaborators of both submission flows. Nil
// collaborators are skipped: no geocoding, no mail, no metrics, and
// uploaded files are dropped when there is no Creator.
type Pipeline struct {
	Schema   SchemaFunc
	Creator  attachment.Creator
	Notifier *notification.Notifier
	Geocoder Geocoder
	Metrics  *metrics.ContributionMetrics
	Log      *slog.Logger
}

// Default is the pipeline behind the HTTP handlers. main wires its
// collaborators at start-up.
var Default = &Pipeline{Schema: GenerateSchema}

// Submit validates a submission, stores it with its category extension and
// photos, and notifies. Rejections are one of SchemaValidationError,
// CategoryNotValidError or DispatchInconsistencyError.
func (p *Pipeline) Submit(ctx context.Context, s Submission) (*Contribution, error) {
	c, err := p.dispatch(ctx, s)
	if err != nil {
		outcome := outcomeOf(err)
		p.Metrics.Submission("standard", "", outcome)
		if outcome == metrics.OutcomeError {
			p.logger().Error("store contribution", "portal_id", s.Portal.ID, "error", err)
		}
		return nil, err
	}
	p.Metrics.Submission("standard", c.Category, metrics.OutcomeCreated)

	c.Attachments = p.attach(ctx, s.Files, attachment.Owner{Type: OwnerType, ID: c.ID})

	sent := p.Notifier.ContributionCreated(ctx, notification.ContributionEvent{
		ID:              c.ID,
		Lang:            s.Lang,
		PortalName:      s.Portal.Name,
		Category:        c.Category,
		Type:            c.TypeLabel(),
		Description:     c.Description,
		AuthorEmail:     c.EmailAuthor,
		AuthorName:      strings.TrimSpace(c.FirstNameAuthor + " " + c.NameAuthor),
		DateObservation: c.DateObservation,
		Locality:        c.Locality,
	})
	p.Metrics.Mail(sent)

	p.logger().Info("contribution created",
		"id", c.ID, "portal_id", c.PortalID, "category", c.Category,
		"attachments", len(c.Attachments), "mails", sent)
	return c, nil
}

func (p *Pipeline) dispatch(ctx context.Context, s Submission) (*Contribution, error) {
	geom, err := geo.ParseGeometry(s.Geom)
	point, isPoint := geom.Point()
	if err != nil || !isPoint {
		return nil, violation(s.Lang, "geom", i18n.InvalidGeometry)
	}

	var props map[string]any
	if err := json.Unmarshal([]byte(s.Properties), &props); err != nil || props == nil {
		return nil, violation(s.Lang, "", i18n.InvalidProperties)
	}

	schemaFn := p.Schema
	if schemaFn == nil {
		schemaFn = GenerateSchema
	}
	schema, err := schemaFn(ctx, db.DB, s.Lang)
	if err != nil {
		return nil, err
	}
	violations, err := schema.Validate(props)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &SchemaValidationError{Violations: violations}
	}

	label := stringProp(props, "category")
	cat, err := LookupCategory(label)
	if err != nil {
		return nil, &CategoryNotValidError{Category: label}
	}
	typeLabel := stringProp(props, "type")
	code, ok := cat.TypeCode(typeLabel)
	if !ok {
		return nil, &DispatchInconsistencyError{Key: "type", Value: typeLabel, Category: label}
	}

	observed, err := time.Parse(dateLayout, stringProp(props, "date_observation"))
	if err != nil {
		return nil, &SchemaValidationError{Violations: []Violation{{
			Path:    "date_observation",
			Message: i18n.Sprintf(s.Lang, i18n.InvalidDate, stringProp(props, "date_observation")),
		}}}
	}

	c := &Contribution{
		PortalID:        s.Portal.ID,
		Geom:            geom,
		NameAuthor:      stringProp(props, "name_author"),
		FirstNameAuthor: stringProp(props, "first_name_author"),
		EmailAuthor:     stringProp(props, "email_author"),
		DateObservation: observed,
		Description:     stringProp(props, "description"),
		Category:        cat.Label,
		Locality:        p.locality(ctx, point[0], point[1]),
	}
	ext := cat.NewExtension()
	ext.setType(code)

	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range cat.Extras {
			value := stringProp(props, f.Key)
			if f.Lookup == nil || value == "" {
				continue
			}
			id, err := f.Lookup.Resolve(tx, value)
			if errors.Is(err, ErrUnknownLookup) {
				return &SchemaValidationError{Violations: []Violation{{
					Path:    f.Key,
					Message: i18n.Sprintf(s.Lang, i18n.UnknownLookup, f.Key, i18n.Sprintf(s.Lang, f.Title), value),
				}}}
			}
			if err != nil {
				return err
			}
			if setter, ok := ext.(lookupSetter); ok {
				setter.setLookup(f.Key, id)
			}
		}

		statusID, err := defaultStatus(tx)
		if err != nil {
			return err
		}
		c.StatusID = statusID

		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return err
		}
		ext.setContribution(c.ID)
		return tx.Omit(clause.Associations).Create(ext).Error
	})
	if err != nil {
		return nil, err
	}
	c.Ext = ext
	return c, nil
}

// attach stores the photo fields of files. Whatever cannot be stored is
// dropped; the owner is kept either way.
func (p *Pipeline) attach(ctx context.Context, files []attachment.Upload, owner attachment.Owner) []attachment.Attachment {
	var photos []attachment.Upload
	for _, f := range files {
		if attachment.IsPhotoField(f.Field) {
			photos = append(photos, f)
		}
	}
	if len(photos) == 0 {
		return []attachment.Attachment{}
	}
	if p.Creator == nil {
		p.Metrics.Attachment(metrics.AttachmentDropped, len(photos))
		return []attachment.Attachment{}
	}

	created := attachment.AcceptAll(ctx, p.Creator, photos, owner, p.logger())
	p.Metrics.Attachment(metrics.AttachmentStored, len(created))
	p.Metrics.Attachment(metrics.AttachmentDropped, len(photos)-len(created))
	if created == nil {
		created = []attachment.Attachment{}
	}
	return created
}

func (p *Pipeline) locality(ctx context.Context, lng, lat float64) string {
	if p.Geocoder == nil {
		return ""
	}
	res, err := p.Geocoder.Reverse(ctx, lng, lat)
	if err != nil {
		p.logger().Warn("reverse geocoding failed", "lng", lng, "lat", lat, "error", err)
		return ""
	}
	return res.Label()
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return logger.Module("contribution")
}

func defaultStatus(tx *gorm.DB) (*uint, error) {
	var ids []uint
	err := tx.Model(&ContributionStatus{}).Where("label = ?", DefaultStatusLabel).Limit(1).Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return &ids[0], nil
}

func outcomeOf(err error) string {
	var (
		schemaErr   *SchemaValidationError
		categoryErr *CategoryNotValidError
		dispatchErr *DispatchInconsistencyError
		fieldErr    *FieldTypeError
	)
	switch {
	case err == nil:
		return metrics.OutcomeCreated
	case errors.As(err, &schemaErr):
		return metrics.OutcomeSchemaInvalid
	case errors.As(err, &categoryErr):
		return metrics.OutcomeCategoryInvalid
	case errors.As(err, &dispatchErr):
		return metrics.OutcomeInconsistent
	case errors.As(err, &fieldErr):
		return metrics.OutcomeFieldInvalid
	default:
		return metrics.OutcomeError
	}
}

func violation(lang, path, key string) *SchemaValidationError {
	return &SchemaValidationError{Violations: []Violation{{Path: path, Message: i18n.Sprintf(lang, key)}}}
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}
