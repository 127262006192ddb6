package contribution

import (
	"encoding/json"
	"testing"

	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCustomValues(t *testing.T) {
	specs := []CustomFieldSpecification{
		{Key: "field_string", ValueType: ValueString},
		{Key: "field_text", ValueType: ValueText},
		{Key: "field_integer", ValueType: ValueInteger},
		{Key: "field_float", ValueType: ValueFloat},
		{Key: "field_boolean", ValueType: ValueBoolean},
		{Key: "field_date", ValueType: ValueDate},
		{Key: "field_choice", ValueType: ValueString, Options: []string{"clear", "muddy"}},
		{Key: "field_required", ValueType: ValueString, Required: true},
	}

	t.Run("typed values", func(t *testing.T) {
		values, errs := ValidateCustomValues("en", specs, map[string]any{
			"field_string":   "foo",
			"field_text":     "a longer text",
			"field_integer":  "12",
			"field_float":    "1.1",
			"field_boolean":  "true",
			"field_date":     "2020-01-01",
			"field_choice":   "muddy",
			"field_required": "here",
			"unknown":        "ignored",
		})
		require.Empty(t, errs)
		assert.Equal(t, map[string]any{
			"field_string":   "foo",
			"field_text":     "a longer text",
			"field_integer":  int64(12),
			"field_float":    1.1,
			"field_boolean":  true,
			"field_date":     "2020-01-01",
			"field_choice":   "muddy",
			"field_required": "here",
		}, values)
	})

	t.Run("native JSON values", func(t *testing.T) {
		values, errs := ValidateCustomValues("en", specs, map[string]any{
			"field_integer":  float64(3),
			"field_float":    1.1,
			"field_boolean":  false,
			"field_required": "x",
		})
		require.Empty(t, errs)
		assert.Equal(t, int64(3), values["field_integer"])
		assert.Equal(t, 1.1, values["field_float"])
		assert.Equal(t, false, values["field_boolean"])
	})

	t.Run("blank optional values are left out", func(t *testing.T) {
		values, errs := ValidateCustomValues("en", specs, map[string]any{
			"field_string":   "",
			"field_boolean":  "",
			"field_float":    nil,
			"field_required": "x",
		})
		require.Empty(t, errs)
		assert.Equal(t, map[string]any{"field_required": "x"}, values)
	})

	t.Run("errors", func(t *testing.T) {
		_, errs := ValidateCustomValues("en", specs, map[string]any{
			"field_string":  12.0,
			"field_integer": "1.5",
			"field_float":   "abc",
			"field_boolean": "maybe",
			"field_date":    "01/01/2020",
			"field_choice":  "green",
		})
		got := map[string]string{}
		for _, e := range errs {
			got[e.Key] = e.Message
		}
		assert.Len(t, got, 7)
		assert.Equal(t, "This field is required.", got["field_required"])
		assert.Equal(t, `"green" is not a valid choice.`, got["field_choice"])
		assert.Equal(t, `Expected a value of type float, got "abc".`, got["field_float"])
		assert.Contains(t, got, "field_string")
		assert.Contains(t, got, "field_integer")
		assert.Contains(t, got, "field_boolean")
		assert.Contains(t, got, "field_date")
	})
}

func TestFieldKeyDerivedFromLabel(t *testing.T) {
	setupDB(t)

	ct := CustomContributionType{Label: "Relevé"}
	require.NoError(t, db.DB.Create(&ct).Error)

	f := CustomFieldSpecification{CustomTypeID: ct.ID, Label: "Hauteur d'eau (cm)", ValueType: ValueInteger}
	require.NoError(t, db.DB.Create(&f).Error)
	assert.Equal(t, "hauteur_d_eau_cm", f.Key)

	dup := CustomFieldSpecification{CustomTypeID: ct.ID, Label: "Hauteur d’eau, cm", ValueType: ValueFloat}
	assert.Error(t, db.DB.Create(&dup).Error, "keys are unique within a type")

	blank := CustomFieldSpecification{CustomTypeID: ct.ID, Label: "!!!", ValueType: ValueString}
	assert.ErrorIs(t, db.DB.Create(&blank).Error, ErrEmptyFieldKey)
}

func TestFieldKeyReserved(t *testing.T) {
	setupDB(t)

	ct := CustomContributionType{Label: "Relevé"}
	require.NoError(t, db.DB.Create(&ct).Error)

	for _, label := range []string{"Id", "Validated", "Station", "Contributed at", "Custom type", "Attachments"} {
		f := CustomFieldSpecification{CustomTypeID: ct.ID, Label: label, ValueType: ValueString}
		assert.ErrorIs(t, db.DB.Create(&f).Error, ErrReservedFieldKey, label)
	}
	assert.Zero(t, count(t, &CustomFieldSpecification{}, ""))
}

func TestValidateCustomValues_IntegerRange(t *testing.T) {
	specs := []CustomFieldSpecification{{Key: "count", ValueType: ValueInteger}}

	for _, v := range []any{1e30, -1e30, float64(1<<53) * 2, "9223372036854775807", json.Number("18014398509481984")} {
		_, errs := ValidateCustomValues("en", specs, map[string]any{"count": v})
		require.Len(t, errs, 1, "%v", v)
		assert.Equal(t, "count", errs[0].Key)
	}

	values, errs := ValidateCustomValues("en", specs, map[string]any{"count": float64(1 << 53)})
	require.Empty(t, errs)
	assert.Equal(t, int64(1<<53), values["count"])
}

func TestParseDateTime(t *testing.T) {
	for _, raw := range []string{"2020-01-01T00:00", "2020-01-01T00:00:00", "2020-01-01T00:00:00Z", "2020-01-01"} {
		got, err := parseDateTime(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, 2020, got.Year())
	}
	_, err := parseDateTime("yesterday")
	assert.Error(t, err)
}
