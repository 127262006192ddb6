package contribution

import (
	"errors"
	"fmt"
	"slices"

	"github.com/georiviere/georiviere-api/internal/i18n"
	"gorm.io/gorm"
)

var ErrCategoryNotRegistered = errors.New("category not registered")

// Kind is the closed set of contribution categories.
type Kind int

const (
	KindQuantity Kind = iota + 1
	KindQuality
	KindFaunaFlora
	KindLandscapeElements
	KindPotentialDamage
)

// Choice is one allowed value of a category's "type" field. Code is what
// gets stored, Label is what clients send and receive.
type Choice struct {
	Code  int
	Label string
}

// Field describes one category-specific property of a submission.
type Field struct {
	Key      string
	Title    string
	Choices  []Choice
	Required bool
	// Lookup is set for fields whose allowed values live in a lookup table.
	Lookup *Lookup
}

// Category is one registered contribution category.
type Category struct {
	Kind   Kind
	Label  string
	Types  []Choice
	Extras []Field

	newExtension func() Extension
	load         func(tx *gorm.DB, contributionIDs []uint, preload ...string) ([]Extension, error)
	preload      []string
}

// TypeCode resolves a type label to its stored code.
func (c Category) TypeCode(label string) (int, bool) {
	for _, t := range c.Types {
		if t.Label == label {
			return t.Code, true
		}
	}
	return 0, false
}

// TypeLabel is the inverse of TypeCode.
func (c Category) TypeLabel(code int) string {
	for _, t := range c.Types {
		if t.Code == code {
			return t.Label
		}
	}
	return ""
}

// Fields returns the category-specific fields, "type" first.
func (c Category) Fields() []Field {
	out := make([]Field, 0, 1+len(c.Extras))
	out = append(out, Field{Key: "type", Title: i18n.TitleType, Choices: c.Types, Required: true})
	return append(out, c.Extras...)
}

// NewExtension returns an empty extension record of this category.
func (c Category) NewExtension() Extension {
	return c.newExtension()
}

var registry = []Category{
	{
		Kind:  KindQuantity,
		Label: "Contribution Quantité",
		Types: []Choice{
			{1, "A sec"},
			{2, "En cours d'assèchement"},
			{3, "Débordement"},
		},
		newExtension: func() Extension { return &ContributionQuantity{} },
		load:         findExtensions[ContributionQuantity],
	},
	{
		Kind:  KindQuality,
		Label: "Contribution Qualité",
		Types: []Choice{
			{1, "Développement algal"},
			{2, "Pollution"},
			{3, "Température de l'eau"},
		},
		Extras: []Field{
			{Key: "nature_pollution", Title: i18n.TitleNaturePollution, Lookup: &naturePollutions},
		},
		newExtension: func() Extension { return &ContributionQuality{} },
		load:         findExtensions[ContributionQuality],
		preload:      []string{"NaturePollution"},
	},
	{
		Kind:  KindFaunaFlora,
		Label: "Contribution Faune-Flore",
		Types: []Choice{
			{1, "Espèce invasive"},
			{2, "Espèce patrimoniale"},
			{3, "Espèce de poisson"},
			{4, "Mortalité piscicole"},
		},
		Extras: []Field{
			{Key: "severity", Title: i18n.TitleSeverity, Lookup: &severityTypes},
		},
		newExtension: func() Extension { return &ContributionFaunaFlora{} },
		load:         findExtensions[ContributionFaunaFlora],
		preload:      []string{"Severity"},
	},
	{
		Kind:  KindLandscapeElements,
		Label: "Contribution Élément Paysagers",
		Types: []Choice{
			{1, "Doline"},
			{2, "Perte"},
			{3, "Résurgence"},
			{4, "Source"},
			{5, "Cascade"},
			{6, "Lac"},
		},
		newExtension: func() Extension { return &ContributionLandscapeElements{} },
		load:         findExtensions[ContributionLandscapeElements],
	},
	{
		Kind:  KindPotentialDamage,
		Label: "Contribution Dégâts Potentiels",
		Types: []Choice{
			{1, "Atterrissement"},
			{2, "Éboulements"},
			{3, "Embâcle perturbant"},
			{4, "Érosion de berge"},
			{5, "Coupe excessive de la ripisylve"},
			{6, "Incision du lit"},
			{7, "Piétinement du bétail"},
			{8, "Dégradation d'ouvrage"},
		},
		newExtension: func() Extension { return &ContributionPotentialDamage{} },
		load:         findExtensions[ContributionPotentialDamage],
	},
}

// Categories returns the registered categories in registry order.
func Categories() []Category {
	return slices.Clone(registry)
}

// Labels returns the category labels in registry order.
func Labels() []string {
	out := make([]string, len(registry))
	for i, c := range registry {
		out[i] = c.Label
	}
	return out
}

// LookupCategory returns the category registered under label.
func LookupCategory(label string) (Category, error) {
	for _, c := range registry {
		if c.Label == label {
			return c, nil
		}
	}
	return Category{}, fmt.Errorf("%w: %q", ErrCategoryNotRegistered, label)
}

// ByKind returns the category of k.
func ByKind(k Kind) (Category, bool) {
	for _, c := range registry {
		if c.Kind == k {
			return c, true
		}
	}
	return Category{}, false
}

// FieldsFor returns the category-specific fields of label.
func FieldsFor(label string) ([]Field, error) {
	c, err := LookupCategory(label)
	if err != nil {
		return nil, err
	}
	return c.Fields(), nil
}

// ModelFor returns the extension constructor of label.
func ModelFor(label string) (func() Extension, error) {
	c, err := LookupCategory(label)
	if err != nil {
		return nil, err
	}
	return c.newExtension, nil
}
