package attachment

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func setupDB(t *testing.T) {
	t.Helper()
	logger.Discard()
	require.NoError(t, db.ConnectSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared"))
	Init()
}

type failingCreator struct{ calls int }

func (f *failingCreator) Create(context.Context, Upload, Owner) (*Attachment, error) {
	f.calls++
	return nil, ErrAttachmentInvalid
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage(pngBytes(t)))
	assert.False(t, IsImage(nil))
	assert.False(t, IsImage([]byte("not an image at all")))
	// PNG signature with a truncated body
	assert.False(t, IsImage([]byte("\x89PNG\r\n\x1a\n")))
}

func TestLocalStore_Create(t *testing.T) {
	setupDB(t)
	store := NewLocalStore(t.TempDir(), 1<<20)

	a, err := store.Create(context.Background(),
		Upload{Field: "image_1", Filename: "photo berge.png", Data: pngBytes(t)},
		Owner{Type: "contribution", ID: 7})
	require.NoError(t, err)

	assert.Equal(t, "photo berge", a.Title)
	assert.Equal(t, "image/png", a.ContentType)
	assert.FileExists(t, filepath.Join(store.Root, filepath.FromSlash(a.FilePath)))

	byOwner, err := ForOwners(db.DB, "contribution", []uint{7, 8})
	require.NoError(t, err)
	assert.Len(t, byOwner[7], 1)
	assert.Empty(t, byOwner[8])

	out, err := json.Marshal(a)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "/media/"+a.FilePath, m["url"])
	assert.Equal(t, "photo berge", m["title"])
}

func TestLocalStore_Check(t *testing.T) {
	store := NewLocalStore(t.TempDir(), 10)

	err := store.Check(Upload{Data: pngBytes(t)})
	assert.ErrorIs(t, err, ErrAttachmentInvalid)

	store.MaxBytes = 0
	assert.NoError(t, store.Check(Upload{Data: pngBytes(t)}))
	assert.ErrorIs(t, store.Check(Upload{Data: []byte("plain text")}), ErrAttachmentInvalid)
	assert.ErrorIs(t, store.Check(Upload{}), ErrAttachmentInvalid)
}

func TestAcceptAll(t *testing.T) {
	setupDB(t)
	store := NewLocalStore(t.TempDir(), 1<<20)
	owner := Owner{Type: "contribution", ID: 1}
	log := logger.Module("test")

	created := AcceptAll(context.Background(), store, []Upload{
		{Field: "image_1", Filename: "ok.png", Data: pngBytes(t)},
		{Field: "image_2", Filename: "notes.txt", Data: []byte("hello")},
	}, owner, log)
	assert.Len(t, created, 1)

	failing := &failingCreator{}
	created = AcceptAll(context.Background(), failing, []Upload{
		{Field: "image_1", Filename: "ok.png", Data: pngBytes(t)},
		{Field: "image_2", Filename: "bad.txt", Data: []byte("hello")},
	}, owner, log)
	assert.Empty(t, created)
	assert.Equal(t, 1, failing.calls, "non-images never reach the creator")

	var count int64
	require.NoError(t, db.DB.Model(&Attachment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	entries, err := os.ReadDir(filepath.Join(store.Root, "contribution"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestIsPhotoField(t *testing.T) {
	assert.True(t, IsPhotoField("image"))
	assert.True(t, IsPhotoField("image_3"))
	assert.False(t, IsPhotoField("geom"))
}
