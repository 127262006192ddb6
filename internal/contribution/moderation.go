package contribution

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/georiviere/georiviere-api/internal/auth"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/utils"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type moderationRequest struct {
	Published *bool `json:"published"`
	StatusID  *uint `json:"status_id" validate:"omitempty,gt=0"`
	// An empty string unassigns.
	AssignedUserID *string `json:"assigned_user_id" validate:"omitempty,max=64"`
}

type customModerationRequest struct {
	Validated *bool `json:"validated" validate:"required"`
}

// ModerateHandler lets staff publish a contribution, change its status or
// assign it.
func ModerateHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePortal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "contributionID")
	if err != nil {
		http.Error(w, "Contribution not found", http.StatusNotFound)
		return
	}

	var req moderationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Invalid Data: "+err.Error(), http.StatusBadRequest)
		return
	}

	tx := db.DB.WithContext(r.Context())
	var c Contribution
	err = tx.Where("portal_id = ?", p.ID).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Contribution not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	updates := map[string]any{}
	if req.Published != nil {
		updates["published"] = *req.Published
	}
	if req.StatusID != nil {
		if !exists(tx, &ContributionStatus{}, "id = ?", *req.StatusID) {
			http.Error(w, "Unknown status", http.StatusBadRequest)
			return
		}
		updates["status_id"] = *req.StatusID
	}
	if req.AssignedUserID != nil {
		if *req.AssignedUserID == "" {
			updates["assigned_user_id"] = nil
		} else if !exists(tx, &auth.User{}, "user_id = ?", *req.AssignedUserID) {
			http.Error(w, "Unknown user", http.StatusBadRequest)
			return
		} else {
			updates["assigned_user_id"] = *req.AssignedUserID
		}
	}
	if len(updates) == 0 {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	if err := tx.Model(&c).Updates(updates).Error; err != nil {
		http.Error(w, "Failed to update contribution", http.StatusInternalServerError)
		return
	}
	if err := tx.First(&c, c.ID).Error; err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	moderator, _ := utils.GetUserIDFromContext(r.Context())
	logger.Module("contribution").Info("contribution moderated",
		"id", c.ID, "moderator", moderator, "role", utils.RoleFromContext(r.Context()), "published", c.Published)
	writeJSON(w, c)
}

// ValidateCustomHandler lets staff validate or unvalidate a custom
// contribution.
func ValidateCustomHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePortal(w, r)
	if !ok {
		return
	}
	typeID, err := idParam(r, "typeID")
	if err != nil {
		http.Error(w, "Custom contribution type not found", http.StatusNotFound)
		return
	}
	id, err := idParam(r, "customID")
	if err != nil {
		http.Error(w, "Custom contribution not found", http.StatusNotFound)
		return
	}

	var req customModerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Invalid Data: "+err.Error(), http.StatusBadRequest)
		return
	}

	tx := db.DB.WithContext(r.Context())
	var c CustomContribution
	err = tx.Where("portal_id = ? AND custom_type_id = ?", p.ID, typeID).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Custom contribution not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := tx.Model(&c).Update("validated", *req.Validated).Error; err != nil {
		http.Error(w, "Failed to update custom contribution", http.StatusInternalServerError)
		return
	}
	c.Validated = *req.Validated
	writeJSON(w, CustomBody(&c))
}

func exists(tx *gorm.DB, model any, query string, args ...any) bool {
	var n int64
	if err := tx.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}
