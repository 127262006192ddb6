package contribution

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/station"
	"github.com/georiviere/georiviere-api/internal/utils"
	"gorm.io/gorm"
)

type customTypeRequest struct {
	Label       string `json:"label" validate:"required,max=128"`
	Description string `json:"description"`
	StationIDs  []uint `json:"station_ids" validate:"dive,gt=0"`
}

type fieldRequest struct {
	Label     string   `json:"label" validate:"required,max=128"`
	Key       string   `json:"key" validate:"omitempty,max=128"`
	ValueType string   `json:"value_type" validate:"required,oneof=string text integer float boolean date"`
	Required  bool     `json:"required"`
	HelpText  string   `json:"help_text"`
	Options   []string `json:"options"`
	Order     int      `json:"order"`
}

type fieldPatchRequest struct {
	Label     *string   `json:"label" validate:"omitempty,min=1,max=128"`
	ValueType *string   `json:"value_type" validate:"omitempty,oneof=string text integer float boolean date"`
	Required  *bool     `json:"required"`
	HelpText  *string   `json:"help_text"`
	Options   *[]string `json:"options"`
	Order     *int      `json:"order"`
}

type stationsRequest struct {
	StationIDs []uint `json:"station_ids" validate:"dive,gt=0"`
}

func CreateCustomTypeHandler(w http.ResponseWriter, r *http.Request) {
	var req customTypeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	tx := db.DB.WithContext(r.Context())

	if exists(tx, &CustomContributionType{}, "label = ?", req.Label) {
		http.Error(w, "Label already used", http.StatusConflict)
		return
	}
	stations, ok := loadStations(w, tx, req.StationIDs)
	if !ok {
		return
	}

	t := CustomContributionType{Label: req.Label, Description: req.Description, Stations: stations}
	if err := tx.Create(&t).Error; err != nil {
		http.Error(w, "Failed to create custom contribution type", http.StatusInternalServerError)
		return
	}
	logger.Module("contribution").Info("custom type created", "id", t.ID, "label", t.Label)
	respondCustomType(w, r, t.ID, http.StatusCreated)
}

func AddFieldHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := requireCustomType(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if !decodeValid(w, r, &req) {
		return
	}

	f := CustomFieldSpecification{
		CustomTypeID: t.ID,
		Key:          utils.Slugify(req.Key),
		Label:        strings.TrimSpace(req.Label),
		ValueType:    ValueType(req.ValueType),
		Required:     req.Required,
		HelpText:     req.HelpText,
		Options:      req.Options,
		Order:        req.Order,
	}
	if f.Key == "" {
		f.Key = utils.Slugify(f.Label)
	}
	if f.Key == "" {
		http.Error(w, "Field key is empty", http.StatusBadRequest)
		return
	}
	if IsReservedKey(f.Key) {
		http.Error(w, "Field key "+f.Key+" is reserved", http.StatusBadRequest)
		return
	}

	tx := db.DB.WithContext(r.Context())
	if exists(tx, &CustomFieldSpecification{}, `custom_type_id = ? AND "key" = ?`, t.ID, f.Key) {
		http.Error(w, "Field key already used", http.StatusConflict)
		return
	}
	if err := tx.Create(&f).Error; err != nil {
		http.Error(w, "Failed to create field", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, f)
}

func UpdateFieldHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := requireField(w, r)
	if !ok {
		return
	}
	var req fieldPatchRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if req.Label != nil {
		f.Label = strings.TrimSpace(*req.Label)
	}
	if req.ValueType != nil {
		f.ValueType = ValueType(*req.ValueType)
	}
	if req.Required != nil {
		f.Required = *req.Required
	}
	if req.HelpText != nil {
		f.HelpText = *req.HelpText
	}
	if req.Options != nil {
		f.Options = *req.Options
	}
	if req.Order != nil {
		f.Order = *req.Order
	}

	if err := db.DB.WithContext(r.Context()).Save(f).Error; err != nil {
		http.Error(w, "Failed to update field", http.StatusInternalServerError)
		return
	}
	writeJSON(w, f)
}

func DeleteFieldHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := requireField(w, r)
	if !ok {
		return
	}
	if err := db.DB.WithContext(r.Context()).Delete(f).Error; err != nil {
		http.Error(w, "Failed to delete field", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func SetStationsHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := requireCustomType(w, r)
	if !ok {
		return
	}
	var req stationsRequest
	if !decodeValid(w, r, &req) {
		return
	}
	tx := db.DB.WithContext(r.Context())
	stations, ok := loadStations(w, tx, req.StationIDs)
	if !ok {
		return
	}
	if err := tx.Model(t).Association("Stations").Replace(stations); err != nil {
		http.Error(w, "Failed to update stations", http.StatusInternalServerError)
		return
	}
	respondCustomType(w, r, t.ID, http.StatusOK)
}

func requireField(w http.ResponseWriter, r *http.Request) (*CustomFieldSpecification, bool) {
	typeID, err := idParam(r, "typeID")
	if err != nil {
		http.Error(w, "Field not found", http.StatusNotFound)
		return nil, false
	}
	fieldID, err := idParam(r, "fieldID")
	if err != nil {
		http.Error(w, "Field not found", http.StatusNotFound)
		return nil, false
	}
	var f CustomFieldSpecification
	err = db.DB.WithContext(r.Context()).Where("custom_type_id = ?", typeID).First(&f, fieldID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Field not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return &f, true
}

// loadStations resolves ids, answering 400 when one is unknown.
func loadStations(w http.ResponseWriter, tx *gorm.DB, ids []uint) ([]station.Station, bool) {
	stations := []station.Station{}
	if len(ids) == 0 {
		return stations, true
	}
	if err := tx.Where("id IN ?", ids).Order("id").Find(&stations).Error; err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	found := map[uint]bool{}
	for _, s := range stations {
		found[s.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			http.Error(w, "Unknown station", http.StatusBadRequest)
			return nil, false
		}
	}
	return stations, true
}

func respondCustomType(w http.ResponseWriter, r *http.Request, id uint, status int) {
	t, err := GetCustomType(r.Context(), db.DB, id)
	if err != nil {
		http.Error(w, "Failed to load custom contribution type", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, status, NewCustomTypeDetail(t))
}

func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, "Invalid Data: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
