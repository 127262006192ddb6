package attachment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// IsPhotoField reports whether a multipart field carries a photo
// ("image", "image_1", "image_2", ...).
func IsPhotoField(name string) bool {
	return strings.HasPrefix(name, "image")
}

// AcceptAll runs the acceptance policy over uploads: non-images are
// dropped, creator failures are dropped, and the rest are stored. One bad
// file never affects the others or the owner.
func AcceptAll(ctx context.Context, c Creator, uploads []Upload, owner Owner, log *slog.Logger) []Attachment {
	var created []Attachment
	for _, f := range uploads {
		if err := accept(ctx, c, f, owner, &created); err != nil {
			log.Warn("attachment dropped",
				"owner_type", owner.Type, "owner_id", owner.ID,
				"field", f.Field, "filename", f.Filename, "error", err)
		}
	}
	return created
}

func accept(ctx context.Context, c Creator, f Upload, owner Owner, created *[]Attachment) error {
	if !IsImage(f.Data) {
		return fmt.Errorf("%w: not an image", ErrAttachmentRejected)
	}
	a, err := c.Create(ctx, f, owner)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAttachmentRejected, err)
	}
	*created = append(*created, *a)
	return nil
}
