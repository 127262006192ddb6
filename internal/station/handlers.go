package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/georiviere/georiviere-api/internal/db"
	"gorm.io/gorm"
)

var ErrStationNotFound = errors.New("station not found")

// Get loads a station by primary key.
func Get(ctx context.Context, id uint) (*Station, error) {
	var s Station
	err := db.DB.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load station %d: %w", id, err)
	}
	return &s, nil
}

func ListHandler(w http.ResponseWriter, r *http.Request) {
	stations := []Station{}
	if err := db.DB.WithContext(r.Context()).Order("label, id").Find(&stations).Error; err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stations); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
