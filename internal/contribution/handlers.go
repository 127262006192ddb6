package contribution

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/i18n"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/portal"
	"github.com/georiviere/georiviere-api/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
)

const maxFormMemory = 32 << 20

// Upload limits applied while a submission is read. main sets
// MaxUploadBytes from the configuration.
var (
	MaxUploadBytes int64 = 10 << 20
	MaxPhotos            = 5
)

// bodyLimit caps a whole request: every photo at its limit plus room for
// the other fields and the multipart framing.
func bodyLimit() int64 {
	return MaxUploadBytes*int64(MaxPhotos) + 1<<20
}

func SchemaHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePortal(w, r); !ok {
		return
	}
	schemaFn := Default.Schema
	if schemaFn == nil {
		schemaFn = GenerateSchema
	}
	schema, err := schemaFn(r.Context(), db.DB, lang(r))
	if err != nil {
		logger.Module("contribution").Error("generate schema", "error", err)
		http.Error(w, "Failed to generate schema", http.StatusInternalServerError)
		return
	}
	writeJSON(w, schema)
}

// published selects what the public may see of a portal.
func published(tx *gorm.DB, portalID uint) *gorm.DB {
	return tx.Where("portal_id = ? AND published = ? AND category <> ''", portalID, true)
}

func ListHandler(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := requirePortal(w, r)
		if !ok {
			return
		}
		tx := db.DB.WithContext(r.Context())

		contributions := []Contribution{}
		if err := published(tx, p.ID).Order("id").Find(&contributions).Error; err != nil {
			http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		if format == utils.FormatGeoJSON {
			fc := geojson.NewFeatureCollection()
			for i := range contributions {
				fc.Append(Feature(&contributions[i]))
			}
			writeJSON(w, fc)
			return
		}

		if err := loadExtensions(tx, contributions); err != nil {
			http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if err := loadAttachments(tx, contributions); err != nil {
			http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		items := make([]Item, len(contributions))
		for i := range contributions {
			items[i] = NewItem(&contributions[i])
		}
		writeJSON(w, items)
	}
}

func DetailHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePortal(w, r)
	if !ok {
		return
	}
	raw, format := utils.SplitFormat(chi.URLParam(r, "contributionID"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "Contribution not found", http.StatusNotFound)
		return
	}
	tx := db.DB.WithContext(r.Context())

	var c Contribution
	err = published(tx, p.ID).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Contribution not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if format == utils.FormatGeoJSON {
		writeJSON(w, Feature(&c))
		return
	}
	one := []Contribution{c}
	if err := loadExtensions(tx, one); err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := loadAttachments(tx, one); err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, NewItem(&one[0]))
}

func CreateHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePortal(w, r)
	if !ok {
		return
	}

	form, err := readForm(w, r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	c, err := Default.Submit(r.Context(), Submission{
		Lang:       lang(r),
		Portal:     p,
		Geom:       form.text("geom"),
		Properties: form.text("properties"),
		Files:      form.files,
	})
	if err != nil {
		writeSubmitError(w, lang(r), err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, NewItem(c))
}

// submittedForm is a request body reduced to its values and files,
// whatever the content type.
type submittedForm struct {
	values map[string]any
	files  []attachment.Upload
}

// text returns a value as a string; objects are re-encoded as JSON.
func (f submittedForm) text(key string) string {
	switch v := f.values[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func readForm(w http.ResponseWriter, r *http.Request) (submittedForm, error) {
	out := submittedForm{values: map[string]any{}}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit())
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return out, err
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(body, &out.values); err != nil {
			return out, err
		}
		if out.values == nil {
			out.values = map[string]any{}
		}
		return out, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return out, err
		}
		defer r.MultipartForm.RemoveAll()
		for key, vals := range r.MultipartForm.Value {
			if len(vals) > 0 {
				out.values[key] = vals[0]
			}
		}
		for field, headers := range r.MultipartForm.File {
			for _, h := range headers {
				up, err := readUpload(field, h)
				if err != nil {
					return out, err
				}
				if up != nil {
					out.files = append(out.files, *up)
				}
			}
		}
		return out, nil

	default:
		if err := r.ParseForm(); err != nil {
			return out, err
		}
		for key, vals := range r.PostForm {
			if len(vals) > 0 {
				out.values[key] = vals[0]
			}
		}
		return out, nil
	}
}

// readUpload loads one multipart file. Files over MaxUploadBytes are
// dropped without being read past the limit.
func readUpload(field string, h *multipart.FileHeader) (*attachment.Upload, error) {
	log := logger.Module("contribution")
	if h.Size > MaxUploadBytes {
		log.Warn("attachment dropped", "field", field, "filename", h.Filename, "size", h.Size)
		return nil, nil
	}
	file, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxUploadBytes {
		log.Warn("attachment dropped", "field", field, "filename", h.Filename, "size", len(data))
		return nil, nil
	}
	return &attachment.Upload{Field: field, Filename: h.Filename, Data: data}, nil
}

func writeFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, "Invalid Data", http.StatusBadRequest)
}

// writeSubmitError maps a pipeline rejection to its 400 body. Anything else
// is a server error.
func writeSubmitError(w http.ResponseWriter, lng string, err error) {
	var (
		schemaErr   *SchemaValidationError
		categoryErr *CategoryNotValidError
		dispatchErr *DispatchInconsistencyError
		fieldErr    *FieldTypeError
	)
	switch {
	case errors.As(err, &schemaErr):
		body := map[string][]string{}
		for _, v := range schemaErr.Violations {
			key := "properties"
			if v.Path == "geom" {
				key = "geom"
			}
			body[key] = append(body[key], v.Message)
		}
		writeJSONStatus(w, http.StatusBadRequest, body)
	case errors.As(err, &categoryErr):
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{
			"Error": i18n.Sprintf(lng, i18n.CategoryNotValid),
		})
	case errors.As(err, &dispatchErr):
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{
			"Error": i18n.Sprintf(lng, i18n.DispatchInconsistency, dispatchErr.Value, dispatchErr.Key, dispatchErr.Category),
		})
	case errors.As(err, &fieldErr):
		writeJSONStatus(w, http.StatusBadRequest, fieldErr.Body())
	default:
		http.Error(w, "Failed to create contribution", http.StatusInternalServerError)
	}
}

func requirePortal(w http.ResponseWriter, r *http.Request) (*portal.Portal, bool) {
	p, err := portal.FromRequest(r)
	if errors.Is(err, portal.ErrPortalNotFound) {
		http.Error(w, "Portal not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logger.Module("contribution").Error("load portal", "error", err)
		http.Error(w, "Failed to load portal", http.StatusInternalServerError)
		return nil, false
	}
	return p, true
}

func lang(r *http.Request) string {
	return chi.URLParam(r, "lang")
}

// idParam parses a numeric route parameter, tolerating a format suffix.
func idParam(r *http.Request, name string) (uint, error) {
	raw, _ := utils.SplitFormat(chi.URLParam(r, name))
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
