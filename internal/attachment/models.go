package attachment

import (
	"encoding/json"
	"strings"
	"time"
)

// MediaURL prefixes FilePath in API output.
var MediaURL = "/media/"

// Attachment is a stored file owned by a contribution or a custom contribution.
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerType   string    `gorm:"not null;index:idx_attachment_owner" json:"-"`
	OwnerID     uint      `gorm:"not null;index:idx_attachment_owner" json:"-"`
	FilePath    string    `gorm:"not null" json:"-"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"-"`
}

// URL is the public address of the file.
func (a Attachment) URL() string {
	return strings.TrimRight(MediaURL, "/") + "/" + a.FilePath
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	type plain Attachment
	return json.Marshal(struct {
		plain
		URL string `json:"url"`
	}{plain(a), a.URL()})
}

// Owner identifies the record an attachment hangs off.
type Owner struct {
	Type string
	ID   uint
}

// Upload is one file received with a submission.
type Upload struct {
	Field    string
	Filename string
	Data     []byte
}
