package auth

import (
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/utils"
)

// SessionInfo backs the session and role middlewares with the database.
type SessionInfo struct{}

func (SessionInfo) FindSessionByID(id string) (utils.SessionData, error) {
	var s Session
	if err := db.DB.Where("session_id = ?", id).Take(&s).Error; err != nil {
		return utils.SessionData{}, err
	}
	return utils.SessionData{UserID: s.UserID, ExpiresAt: s.ExpiresAt}, nil
}

// FindRoleByUserID only loads the role column; the middlewares never need
// the rest of the account.
func (SessionInfo) FindRoleByUserID(userID string) (string, error) {
	var roles []string
	err := db.DB.Model(&User{}).Where("user_id = ?", userID).Limit(1).Pluck("role", &roles).Error
	if err != nil {
		return "", err
	}
	if len(roles) == 0 {
		return "", ErrUserNotFound
	}
	return roles[0], nil
}
