package contribution

import (
	"errors"
	"fmt"
	"time"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/auth"
	"github.com/georiviere/georiviere-api/internal/geo"
	"github.com/georiviere/georiviere-api/internal/portal"
	"gorm.io/gorm"
)

// OwnerType tags attachments of standard contributions.
const OwnerType = "contribution"

// DefaultStatusLabel is the status given to new contributions.
const DefaultStatusLabel = "Informé"

var ErrUnknownLookup = errors.New("unknown lookup value")

// Contribution is the envelope shared by every category. Exactly one
// extension record (see Extension) hangs off it.
type Contribution struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	PortalID        uint          `gorm:"not null;index" json:"-"`
	Portal          portal.Portal `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Geom            geo.Geometry  `gorm:"not null" json:"geometry"`
	NameAuthor      string        `gorm:"size:128" json:"name_author"`
	FirstNameAuthor string        `gorm:"size:128" json:"first_name_author"`
	EmailAuthor     string        `gorm:"not null" json:"email_author"`
	DateObservation time.Time     `gorm:"type:date;not null" json:"date_observation"`
	Description     string        `json:"description"`
	Category        string        `gorm:"index" json:"category"`
	Locality        string        `json:"locality"`

	Published      bool                `gorm:"not null;default:false;index" json:"published"`
	StatusID       *uint               `json:"status_id"`
	Status         *ContributionStatus `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	AssignedUserID *string             `json:"assigned_user_id"`
	AssignedUser   *auth.User          `gorm:"foreignKey:AssignedUserID;references:UserID;constraint:OnDelete:SET NULL" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Ext         Extension               `gorm:"-" json:"-"`
	Attachments []attachment.Attachment `gorm:"-" json:"-"`
}

// AfterDelete drops the attachments; extensions go with the foreign key.
func (c *Contribution) AfterDelete(tx *gorm.DB) error {
	return attachment.DeleteForOwner(tx, attachment.Owner{Type: OwnerType, ID: c.ID})
}

// TypeLabel is the label of the extension's type, empty when no extension
// is loaded.
func (c *Contribution) TypeLabel() string {
	if c.Ext == nil {
		return ""
	}
	cat, ok := ByKind(c.Ext.Kind())
	if !ok {
		return ""
	}
	return cat.TypeLabel(c.Ext.TypeCode())
}

// Extension is the category-specific half of a contribution. The concrete
// type tells the category apart.
type Extension interface {
	Kind() Kind
	TypeCode() int
	ContributionID() uint
	setContribution(id uint)
	setType(code int)
}

// ExtensionBase holds the columns every extension table has.
type ExtensionBase struct {
	ID             uint `gorm:"primaryKey"`
	ContributionFK uint `gorm:"column:contribution_id;not null;uniqueIndex"`
	Type           int  `gorm:"not null"`
}

func (e *ExtensionBase) TypeCode() int           { return e.Type }
func (e *ExtensionBase) ContributionID() uint    { return e.ContributionFK }
func (e *ExtensionBase) setContribution(id uint) { e.ContributionFK = id }
func (e *ExtensionBase) setType(code int)        { e.Type = code }

type ContributionQuantity struct {
	ExtensionBase
	Contribution *Contribution `gorm:"foreignKey:ContributionFK;constraint:OnDelete:CASCADE"`
}

func (*ContributionQuantity) Kind() Kind { return KindQuantity }

type ContributionQuality struct {
	ExtensionBase
	Contribution      *Contribution `gorm:"foreignKey:ContributionFK;constraint:OnDelete:CASCADE"`
	NaturePollutionID *uint
	NaturePollution   *NaturePollution `gorm:"constraint:OnDelete:SET NULL"`
}

func (*ContributionQuality) Kind() Kind { return KindQuality }

func (q *ContributionQuality) setLookup(key string, id uint) {
	if key == "nature_pollution" {
		q.NaturePollutionID = &id
	}
}

type ContributionFaunaFlora struct {
	ExtensionBase
	Contribution *Contribution `gorm:"foreignKey:ContributionFK;constraint:OnDelete:CASCADE"`
	SeverityID   *uint
	Severity     *SeverityType `gorm:"constraint:OnDelete:SET NULL"`
}

func (*ContributionFaunaFlora) Kind() Kind { return KindFaunaFlora }

func (f *ContributionFaunaFlora) setLookup(key string, id uint) {
	if key == "severity" {
		f.SeverityID = &id
	}
}

type ContributionLandscapeElements struct {
	ExtensionBase
	Contribution *Contribution `gorm:"foreignKey:ContributionFK;constraint:OnDelete:CASCADE"`
}

func (*ContributionLandscapeElements) Kind() Kind { return KindLandscapeElements }

type ContributionPotentialDamage struct {
	ExtensionBase
	Contribution *Contribution `gorm:"foreignKey:ContributionFK;constraint:OnDelete:CASCADE"`
}

func (*ContributionPotentialDamage) Kind() Kind { return KindPotentialDamage }

type lookupSetter interface {
	setLookup(key string, id uint)
}

// NaturePollution is a lookup of the Quality category.
type NaturePollution struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Label string `gorm:"not null;uniqueIndex" json:"label"`
}

// SeverityType is a lookup of the Fauna-Flora category.
type SeverityType struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Label string `gorm:"not null;uniqueIndex" json:"label"`
}

// ContributionStatus is the moderation state of a contribution.
type ContributionStatus struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Label string `gorm:"not null;uniqueIndex" json:"label"`
}

// Lookup is a label table backing an enumerated field.
type Lookup struct {
	Name  string
	model func() any
}

var (
	naturePollutions = Lookup{Name: "nature_pollution", model: func() any { return &NaturePollution{} }}
	severityTypes    = Lookup{Name: "severity", model: func() any { return &SeverityType{} }}
)

// Labels returns every label of the table, sorted.
func (l *Lookup) Labels(tx *gorm.DB) ([]string, error) {
	out := []string{}
	if err := tx.Model(l.model()).Order("label").Pluck("label", &out).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", l.Name, err)
	}
	return out, nil
}

// Resolve returns the id of the row labelled label.
func (l *Lookup) Resolve(tx *gorm.DB, label string) (uint, error) {
	var ids []uint
	if err := tx.Model(l.model()).Where("label = ?", label).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("resolve %s: %w", l.Name, err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrUnknownLookup, l.Name, label)
	}
	return ids[0], nil
}

// findExtensions loads the extension rows of T owned by contributionIDs.
func findExtensions[T any, PT interface {
	*T
	Extension
}](tx *gorm.DB, contributionIDs []uint, preload ...string) ([]Extension, error) {
	var rows []T
	q := tx.Where("contribution_id IN ?", contributionIDs)
	for _, p := range preload {
		q = q.Preload(p)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Extension, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

// loadExtensions attaches the extension record of every contribution.
func loadExtensions(tx *gorm.DB, cs []Contribution) error {
	byCategory := map[string][]uint{}
	for _, c := range cs {
		byCategory[c.Category] = append(byCategory[c.Category], c.ID)
	}

	exts := map[uint]Extension{}
	for label, ids := range byCategory {
		cat, err := LookupCategory(label)
		if err != nil {
			continue
		}
		found, err := cat.load(tx, ids, cat.preload...)
		if err != nil {
			return fmt.Errorf("load %s extensions: %w", label, err)
		}
		for _, e := range found {
			exts[e.ContributionID()] = e
		}
	}

	for i := range cs {
		cs[i].Ext = exts[cs[i].ID]
	}
	return nil
}

// loadAttachments attaches the stored files of every contribution.
func loadAttachments(tx *gorm.DB, cs []Contribution) error {
	ids := make([]uint, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	byOwner, err := attachment.ForOwners(tx, OwnerType, ids)
	if err != nil {
		return err
	}
	for i := range cs {
		cs[i].Attachments = byOwner[cs[i].ID]
	}
	return nil
}
