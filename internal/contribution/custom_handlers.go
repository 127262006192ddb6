package contribution

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"gorm.io/gorm"
)

func CustomTypeListHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePortal(w, r); !ok {
		return
	}

	var stationID uint
	if raw := r.URL.Query().Get("station"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid station", http.StatusBadRequest)
			return
		}
		stationID = uint(id)
	}

	var types []CustomContributionType
	err := db.DB.WithContext(r.Context()).
		Preload("Stations", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		Order("label, id").
		Find(&types).Error
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := []CustomTypeItem{}
	for i := range types {
		if stationID != 0 && !types[i].HasStation(stationID) {
			continue
		}
		items = append(items, NewCustomTypeItem(&types[i]))
	}
	writeJSON(w, items)
}

func CustomTypeDetailHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePortal(w, r); !ok {
		return
	}
	t, ok := requireCustomType(w, r)
	if !ok {
		return
	}
	writeJSON(w, NewCustomTypeDetail(t))
}

// CustomListHandler lists the validated contributions of a type in the
// portal, restricted to the stations the type is offered at.
func CustomListHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePortal(w, r)
	if !ok {
		return
	}
	t, ok := requireCustomType(w, r)
	if !ok {
		return
	}

	out := []map[string]any{}
	stations := t.StationIDs()
	if len(stations) == 0 {
		writeJSON(w, out)
		return
	}

	tx := db.DB.WithContext(r.Context())
	var rows []CustomContribution
	err := tx.Where("custom_type_id = ? AND portal_id = ? AND validated = ? AND station_id IN ?", t.ID, p.ID, true, stations).
		Order("id").
		Find(&rows).Error
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	ids := make([]uint, len(rows))
	for i, c := range rows {
		ids[i] = c.ID
	}
	byOwner, err := attachment.ForOwners(tx, CustomOwnerType, ids)
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	for i := range rows {
		rows[i].Attachments = byOwner[rows[i].ID]
		out = append(out, CustomBody(&rows[i]))
	}
	writeJSON(w, out)
}

func CustomCreateHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePortal(w, r)
	if !ok {
		return
	}
	t, ok := requireCustomType(w, r)
	if !ok {
		return
	}

	form, err := readForm(w, r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	c, err := Default.SubmitCustom(r.Context(), CustomSubmission{
		Lang:   lang(r),
		Portal: p,
		Type:   t,
		Values: form.values,
		Files:  form.files,
	})
	if err != nil {
		writeSubmitError(w, lang(r), err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, CustomBody(c))
}

func requireCustomType(w http.ResponseWriter, r *http.Request) (*CustomContributionType, bool) {
	id, err := idParam(r, "typeID")
	if err != nil {
		http.Error(w, "Custom contribution type not found", http.StatusNotFound)
		return nil, false
	}
	t, err := GetCustomType(r.Context(), db.DB, id)
	if errors.Is(err, ErrCustomTypeNotFound) {
		http.Error(w, "Custom contribution type not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logger.Module("contribution").Error("load custom type", "type_id", id, "error", err)
		http.Error(w, "Failed to load custom contribution type", http.StatusInternalServerError)
		return nil, false
	}
	return t, true
}
