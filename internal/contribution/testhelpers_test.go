package contribution

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/auth"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/notification"
	"github.com/georiviere/georiviere-api/internal/portal"
	"github.com/georiviere/georiviere-api/internal/station"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	logger.Discard()
	require.NoError(t, db.ConnectSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared"))
	portal.Init()
	station.Init()
	auth.Init()
	attachment.Init()
	Init()
}

// setup migrates a fresh database, installs a pipeline with an in-memory
// mailer and returns the API router.
func setup(t *testing.T) (http.Handler, *notification.MemoryMailer) {
	t.Helper()
	setupDB(t)

	mailer := &notification.MemoryMailer{}
	Default = &Pipeline{
		Schema:   GenerateSchema,
		Creator:  attachment.NewLocalStore(t.TempDir(), 1<<20),
		Notifier: &notification.Notifier{Mailer: mailer, NotifyAuthor: true},
	}
	t.Cleanup(func() { Default = &Pipeline{Schema: GenerateSchema} })

	r := chi.NewRouter()
	r.Route("/api/{lang}", func(r chi.Router) {
		r.Route("/portals/{portalID}", RegisterRoutes)
		r.Route("/admin", RegisterAdminRoutes)
	})
	return r, mailer
}

func newPortal(t *testing.T, name string) *portal.Portal {
	t.Helper()
	p := portal.Portal{Name: name}
	require.NoError(t, db.DB.Create(&p).Error)
	return &p
}

func newStation(t *testing.T, code string) *station.Station {
	t.Helper()
	s := station.Station{Code: code, Label: "Station " + code}
	require.NoError(t, db.DB.Create(&s).Error)
	return &s
}

// loginAs creates a user of role with a live session and returns its cookie.
func loginAs(t *testing.T, username, role string) *http.Cookie {
	t.Helper()
	u, err := auth.CreateUser(username, "", "secret", role)
	require.NoError(t, err)
	sess := auth.Session{SessionID: uuid.NewString(), UserID: u.UserID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.DB.Create(&sess).Error)
	return &http.Cookie{Name: "session_id", Value: sess.SessionID}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func properties(category string, extra map[string]any) string {
	m := map[string]any{
		"name_author":      "Doe",
		"email_author":     "jane.doe@example.org",
		"date_observation": "2022-08-16",
		"description":      "Foo",
		"category":         category,
	}
	for k, v := range extra {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, method, url string, body io.Reader, contentType string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, h http.Handler, method, url string, v any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return do(t, h, method, url, body, "application/json", cookies...)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.DB.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
