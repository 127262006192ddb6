package attachment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrAttachmentInvalid is returned by a Creator when a file fails its
	// integrity check.
	ErrAttachmentInvalid = errors.New("attachment failed integrity check")
	// ErrAttachmentRejected marks a file dropped by the acceptance policy.
	ErrAttachmentRejected = errors.New("attachment rejected")
)

// Creator stores a file and records it against owner.
type Creator interface {
	Create(ctx context.Context, f Upload, owner Owner) (*Attachment, error)
}

// LocalStore writes files under Root and records them in the database.
type LocalStore struct {
	Root     string
	MaxBytes int64
}

func NewLocalStore(root string, maxBytes int64) *LocalStore {
	return &LocalStore{Root: root, MaxBytes: maxBytes}
}

// Check is the integrity check run before anything is written.
func (s *LocalStore) Check(f Upload) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrAttachmentInvalid)
	}
	if s.MaxBytes > 0 && int64(len(f.Data)) > s.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrAttachmentInvalid, len(f.Data), s.MaxBytes)
	}
	if ct := ContentType(f.Data); !mimetype.EqualsAny(ct, ImageTypes...) {
		return fmt.Errorf("%w: content type %s", ErrAttachmentInvalid, ct)
	}
	return nil
}

func (s *LocalStore) Create(ctx context.Context, f Upload, owner Owner) (*Attachment, error) {
	if err := s.Check(f); err != nil {
		return nil, err
	}

	m := mimetype.Detect(f.Data)
	rel := path.Join(owner.Type, uuid.NewString()+m.Extension())
	full := filepath.Join(s.Root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(full, f.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", rel, err)
	}

	a := Attachment{
		OwnerType:   owner.Type,
		OwnerID:     owner.ID,
		FilePath:    rel,
		Title:       title(f.Filename),
		ContentType: m.String(),
		Size:        int64(len(f.Data)),
	}
	if err := db.DB.WithContext(ctx).Create(&a).Error; err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("record attachment: %w", err)
	}
	return &a, nil
}

// ForOwners loads the attachments of several owners of the same type,
// keyed by owner id.
func ForOwners(tx *gorm.DB, ownerType string, ids []uint) (map[uint][]Attachment, error) {
	out := make(map[uint][]Attachment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Attachment
	err := tx.Where("owner_type = ? AND owner_id IN ?", ownerType, ids).Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, a := range rows {
		out[a.OwnerID] = append(out[a.OwnerID], a)
	}
	return out, nil
}

// DeleteForOwner removes the attachment records of one owner. Files are left
// on disk.
func DeleteForOwner(tx *gorm.DB, owner Owner) error {
	return tx.Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).Delete(&Attachment{}).Error
}

func title(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
