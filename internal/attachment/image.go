package attachment

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
)

// ImageTypes are the content types accepted as photos.
var ImageTypes = []string{"image/jpeg", "image/png", "image/gif"}

// IsImage reports whether data is a decodable JPEG, PNG or GIF.
func IsImage(data []byte) bool {
	if len(data) == 0 || !mimetype.EqualsAny(ContentType(data), ImageTypes...) {
		return false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil && cfg.Width > 0 && cfg.Height > 0
}

// ContentType sniffs the MIME type of data.
func ContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
