package contribution

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func contributionsURL(portalID uint) string {
	return fmt.Sprintf("/api/fr/portals/%d/contributions", portalID)
}

func submit(t *testing.T, h http.Handler, portalID uint, props string, files map[string][]byte) (int, map[string]any) {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"geom": "POINT(0 0)", "properties": props}, files)
	rec := do(t, h, http.MethodPost, contributionsURL(portalID), body, ct)
	return rec.Code, decode[map[string]any](t, rec)
}

type failingCreator struct{}

func (failingCreator) Create(context.Context, attachment.Upload, attachment.Owner) (*attachment.Attachment, error) {
	return nil, attachment.ErrAttachmentInvalid
}

func TestSchemaEndpoint(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")

	rec := do(t, h, http.MethodGet, contributionsURL(p.ID)+"/json_schema", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	assert.ElementsMatch(t, []string{"type", "required", "properties", "allOf"}, keys(doc))

	rec = do(t, h, http.MethodGet, contributionsURL(999)+"/json_schema", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreate_EachCategory(t *testing.T) {
	h, mailer := setup(t)
	p := newPortal(t, "Portail")
	require.NoError(t, db.DB.Create(&NaturePollution{Label: "Baz"}).Error)
	require.NoError(t, db.DB.Create(&SeverityType{Label: "Boo"}).Error)
	status := ContributionStatus{Label: DefaultStatusLabel}
	require.NoError(t, db.DB.Create(&status).Error)

	tests := []struct {
		category string
		extra    map[string]any
		table    any
	}{
		{"Contribution Élément Paysagers", map[string]any{"type": "Doline"}, &ContributionLandscapeElements{}},
		{"Contribution Quantité", map[string]any{"type": "A sec"}, &ContributionQuantity{}},
		{"Contribution Qualité", map[string]any{"type": "Pollution", "nature_pollution": "Baz"}, &ContributionQuality{}},
		{"Contribution Faune-Flore", map[string]any{"type": "Espèce invasive", "severity": "Boo"}, &ContributionFaunaFlora{}},
		{"Contribution Dégâts Potentiels", map[string]any{"type": "Éboulements"}, &ContributionPotentialDamage{}},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			code, body := submit(t, h, p.ID, properties(tt.category, tt.extra), nil)
			require.Equal(t, http.StatusCreated, code, body)
			assert.Equal(t, tt.category, body["category"])
			assert.Equal(t, tt.extra["type"], body["type"])

			id := uint(body["id"].(float64))
			assert.Equal(t, int64(1), count(t, tt.table, "contribution_id = ?", id))

			var c Contribution
			require.NoError(t, db.DB.First(&c, id).Error)
			assert.False(t, c.Published)
			require.NotNil(t, c.StatusID)
			assert.Equal(t, status.ID, *c.StatusID)
			assert.Equal(t, "2022-08-16", c.DateObservation.Format("2006-01-02"))
		})
	}

	assert.Equal(t, int64(len(tests)), count(t, &Contribution{}, ""))
	assert.Len(t, mailer.Outbox(), len(tests), "one mail to the author per contribution")

	var q ContributionQuality
	require.NoError(t, db.DB.Preload("NaturePollution").First(&q).Error)
	require.NotNil(t, q.NaturePollution)
	assert.Equal(t, "Baz", q.NaturePollution.Label)

	var f ContributionFaunaFlora
	require.NoError(t, db.DB.Preload("Severity").First(&f).Error)
	require.NotNil(t, f.Severity)
	assert.Equal(t, "Boo", f.Severity.Label)
}

func TestCreate_ManagersAreNotified(t *testing.T) {
	h, mailer := setup(t)
	p := newPortal(t, "Portail")
	Default.Notifier.Managers = []string{"manager@example.org"}

	code, body := submit(t, h, p.ID, properties("Contribution Élément Paysagers", map[string]any{"type": "Doline"}), nil)
	require.Equal(t, http.StatusCreated, code, body)

	outbox := mailer.Outbox()
	require.Len(t, outbox, 2)
	assert.Equal(t, []string{"manager@example.org"}, outbox[0].To)
	assert.Equal(t, []string{"jane.doe@example.org"}, outbox[1].To)
}

func TestCreate_UnknownCategory(t *testing.T) {
	h, mailer := setup(t)
	p := newPortal(t, "Portail")

	code, body := submit(t, h, p.ID, properties("Foo", nil), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]any{
		"properties": []any{"'Foo' is not one of " + allCategories},
	}, body)
	assert.Zero(t, count(t, &Contribution{}, ""))
	assert.Empty(t, mailer.Outbox())
}

func TestCreate_CategoryMissingFromRegistry(t *testing.T) {
	h, mailer := setup(t)
	p := newPortal(t, "Portail")
	Default.Schema = func(ctx context.Context, tx *gorm.DB, lang string) (*Schema, error) {
		s, err := GenerateSchema(ctx, tx, lang)
		if err != nil {
			return nil, err
		}
		category := s.Properties["category"]
		category.Enum = []string{"foo"}
		s.Properties["category"] = category
		s.AllOf = nil
		return s, nil
	}

	code, body := submit(t, h, p.ID, properties("foo", nil), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]any{"Error": "La catégorie n'est pas valide"}, body)
	assert.Zero(t, count(t, &Contribution{}, ""))
	assert.Empty(t, mailer.Outbox())
}

func TestCreate_TypeMissingFromModel(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")
	Default.Schema = func(ctx context.Context, tx *gorm.DB, lang string) (*Schema, error) {
		s, err := GenerateSchema(ctx, tx, lang)
		if err != nil {
			return nil, err
		}
		s.AllOf = []Branch{{
			If: Condition{Properties: map[string]Const{"category": {Const: "Contribution Quantité"}}},
			Then: BranchBody{Properties: map[string]Property{
				"type": {Type: "string", Enum: []string{"Landing"}},
			}},
		}}
		return s, nil
	}

	code, body := submit(t, h, p.ID, properties("Contribution Quantité", map[string]any{"type": "Landing"}), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"Error"}, keys(body))
	assert.Contains(t, body["Error"], "Landing")
	assert.Zero(t, count(t, &Contribution{}, ""))
	assert.Zero(t, count(t, &ContributionQuantity{}, ""))
}

func TestCreate_InvalidInput(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")

	body, ct := multipartBody(t, map[string]string{
		"geom":       "LINESTRING(0 0, 1 1)",
		"properties": properties("Contribution Quantité", map[string]any{"type": "A sec"}),
	}, nil)
	rec := do(t, h, http.MethodPost, contributionsURL(p.ID), body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec), "geom")

	body, ct = multipartBody(t, map[string]string{"geom": "POINT(0 0)", "properties": "not json"}, nil)
	rec = do(t, h, http.MethodPost, contributionsURL(p.ID), body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, resp := submit(t, h, p.ID, properties("Contribution Qualité", map[string]any{
		"type": "Pollution", "nature_pollution": "Unknown",
	}), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp, "properties")

	rec = do(t, h, http.MethodPost, contributionsURL(999), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Zero(t, count(t, &Contribution{}, ""))
}

func TestCreate_JSONBody(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")

	rec := doJSON(t, h, http.MethodPost, contributionsURL(p.ID), map[string]any{
		"geom": map[string]any{"type": "Point", "coordinates": []float64{6.9, 43.6}},
		"properties": map[string]any{
			"email_author":     "a@example.org",
			"date_observation": "2022-08-16",
			"category":         "Contribution Quantité",
			"type":             "Débordement",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Débordement", decode[map[string]any](t, rec)["type"])
}

func TestCreate_Attachments(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")
	props := properties("Contribution Élément Paysagers", map[string]any{"type": "Doline"})

	code, body := submit(t, h, p.ID, props, map[string][]byte{
		"image_1": pngBytes(t),
		"image_2": pngBytes(t),
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Len(t, body["attachments"], 2)
	id := uint(body["id"].(float64))
	assert.Equal(t, int64(2), count(t, &attachment.Attachment{}, "owner_type = ? AND owner_id = ?", OwnerType, id))

	code, body = submit(t, h, p.ID, props, map[string][]byte{"image_1": []byte("plain text, not a picture")})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Empty(t, body["attachments"])

	code, body = submit(t, h, p.ID, props, map[string][]byte{"document": pngBytes(t)})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Empty(t, body["attachments"], "only image fields are attachments")

	Default.Creator = failingCreator{}
	code, body = submit(t, h, p.ID, props, map[string][]byte{"image_1": pngBytes(t), "image_2": pngBytes(t)})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Empty(t, body["attachments"])

	assert.Equal(t, int64(4), count(t, &Contribution{}, ""))
	assert.Equal(t, int64(2), count(t, &attachment.Attachment{}, ""))
}

func TestListAndDetail_OnlyPublished(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")
	other := newPortal(t, "Autre")
	props := properties("Contribution Élément Paysagers", map[string]any{"type": "Doline"})

	create := func(portalID uint, publish bool) uint {
		code, body := submit(t, h, portalID, props, map[string][]byte{"image_1": pngBytes(t)})
		require.Equal(t, http.StatusCreated, code, body)
		id := uint(body["id"].(float64))
		require.NoError(t, db.DB.Model(&Contribution{}).Where("id = ?", id).Update("published", publish).Error)
		return id
	}
	visible := create(p.ID, true)
	hidden := create(p.ID, false)
	elsewhere := create(other.ID, true)

	uncategorized := Contribution{
		PortalID:        p.ID,
		Geom:            geo.NewPoint(1, 1),
		EmailAuthor:     "x@example.org",
		DateObservation: time.Date(2022, 8, 16, 0, 0, 0, 0, time.UTC),
		Published:       true,
	}
	require.NoError(t, db.DB.Omit(clause.Associations).Create(&uncategorized).Error)

	rec := do(t, h, http.MethodGet, contributionsURL(p.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, float64(visible), list[0]["id"])
	assert.ElementsMatch(t, []string{"id", "category", "description", "type", "attachments"}, keys(list[0]))
	assert.Equal(t, "Doline", list[0]["type"])
	assert.Len(t, list[0]["attachments"], 1)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("%s/%d", contributionsURL(p.ID), visible), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"id", "category", "description", "type", "attachments"}, keys(decode[map[string]any](t, rec)))

	for _, id := range []uint{hidden, elsewhere, uncategorized.ID} {
		rec = do(t, h, http.MethodGet, fmt.Sprintf("%s/%d", contributionsURL(p.ID), id), nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "contribution %d", id)
	}

	rec = do(t, h, http.MethodGet, contributionsURL(p.ID)+".geojson", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	fc := decode[map[string]any](t, rec)
	assert.ElementsMatch(t, []string{"type", "features"}, keys(fc))
	assert.Len(t, fc["features"], 1)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("%s/%d.geojson", contributionsURL(p.ID), visible), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	feature := decode[map[string]any](t, rec)
	assert.ElementsMatch(t, []string{"id", "type", "geometry", "properties"}, keys(feature))
	assert.Equal(t, map[string]any{"category": "Contribution Élément Paysagers"}, feature["properties"])

	rec = do(t, h, http.MethodGet, contributionsURL(other.ID)+".json", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestDeleteRemovesExtensionAndAttachments(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")

	code, body := submit(t, h, p.ID, properties("Contribution Quantité", map[string]any{"type": "A sec"}),
		map[string][]byte{"image_1": pngBytes(t)})
	require.Equal(t, http.StatusCreated, code, body)
	id := uint(body["id"].(float64))

	require.NoError(t, db.DB.Delete(&Contribution{ID: id}).Error)
	assert.Zero(t, count(t, &ContributionQuantity{}, ""))
	assert.Zero(t, count(t, &attachment.Attachment{}, ""))
}

func TestModeration(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")
	review := ContributionStatus{Label: "En cours"}
	require.NoError(t, db.DB.Create(&review).Error)

	code, body := submit(t, h, p.ID, properties("Contribution Quantité", map[string]any{"type": "A sec"}), nil)
	require.Equal(t, http.StatusCreated, code, body)
	url := fmt.Sprintf("%s/%d/moderation", contributionsURL(p.ID), uint(body["id"].(float64)))

	rec := doJSON(t, h, http.MethodPatch, url, map[string]any{"published": true})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	staff := loginAs(t, "moderator", "staff")
	rec = doJSON(t, h, http.MethodPatch, url, map[string]any{"published": true, "status_id": review.ID}, staff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moderated := decode[map[string]any](t, rec)
	assert.Equal(t, true, moderated["published"])
	assert.Equal(t, float64(review.ID), moderated["status_id"])

	rec = doJSON(t, h, http.MethodPatch, url, map[string]any{"status_id": 999}, staff)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, h, http.MethodPatch, url, map[string]any{"assigned_user_id": "nobody"}, staff)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, h, http.MethodPatch, url, map[string]any{}, staff)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, contributionsURL(p.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestCreate_FormatSuffix(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")
	props := properties("Contribution Quantité", map[string]any{"type": "A sec"})

	for _, suffix := range []string{".json", ".geojson"} {
		body, ct := multipartBody(t, map[string]string{"geom": "POINT(0 0)", "properties": props}, nil)
		rec := do(t, h, http.MethodPost, contributionsURL(p.ID)+suffix, body, ct)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "A sec", decode[map[string]any](t, rec)["type"])
	}
	assert.Equal(t, int64(2), count(t, &Contribution{}, ""))
}

func TestCreate_ExtensionFailureRollsBackEnvelope(t *testing.T) {
	h, mailer := setup(t)
	p := newPortal(t, "Portail")

	require.NoError(t, db.DB.Callback().Create().Before("gorm:create").Register("test:fail_quantity", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Model.(*ContributionQuantity); ok {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	code, _ := submit(t, h, p.ID, properties("Contribution Quantité", map[string]any{"type": "A sec"}), nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Zero(t, count(t, &Contribution{}, ""))
	assert.Zero(t, count(t, &ContributionQuantity{}, ""))
	assert.Empty(t, mailer.Outbox())

	code, body := submit(t, h, p.ID, properties("Contribution Élément Paysagers", map[string]any{"type": "Doline"}), nil)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, int64(1), count(t, &Contribution{}, ""))
	assert.Len(t, mailer.Outbox(), 1)
}

func TestCreate_UploadLimits(t *testing.T) {
	h, _ := setup(t)
	p := newPortal(t, "Portail")
	prev := MaxUploadBytes
	MaxUploadBytes = 1024
	t.Cleanup(func() { MaxUploadBytes = prev })

	props := properties("Contribution Élément Paysagers", map[string]any{"type": "Doline"})
	oversized := append(pngBytes(t), make([]byte, 2048)...)
	code, body := submit(t, h, p.ID, props, map[string][]byte{"image_1": pngBytes(t), "image_2": oversized})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Len(t, body["attachments"], 1)

	rec := doJSON(t, h, http.MethodPost, contributionsURL(p.ID), map[string]any{
		"geom":       "POINT(0 0)",
		"properties": strings.Repeat("x", int(bodyLimit())),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, int64(1), count(t, &Contribution{}, ""))
}
