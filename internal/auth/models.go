package auth

import "time"

// Roles understood by the staff middlewares.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;unique" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

// User is a staff account: moderators ("staff") and administrators ("admin").
// Contributors never log in.
type User struct {
	UserID         string  `gorm:"primaryKey" json:"user_id"`
	Username       string  `gorm:"not null;uniqueIndex" json:"username"`
	Email          string  `json:"email"`
	HashedPassword string  `json:"-"`
	Role           string  `gorm:"not null;default:'staff'" json:"role"`
	Session        Session `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
