package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/utils"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const sessionTTL = 6 * time.Hour

var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrInvalidRole   = errors.New("role must be admin or staff")
	ErrUserNotFound  = errors.New("user not found")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type loginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

type MeResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// CreateUser registers a staff account. Used by the seeder; there is no
// public registration endpoint.
func CreateUser(username, email, password, role string) (*User, error) {
	if role != RoleAdmin && role != RoleStaff {
		return nil, ErrInvalidRole
	}
	username = strings.TrimSpace(username)

	var existing User
	err := db.DB.First(&existing, "username = ?", username).Error
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		UserID:         utils.GenerateUUID(),
		Username:       username,
		Email:          email,
		HashedPassword: string(hashed),
		Role:           role,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// startSession replaces any session the user already has.
func startSession(userID string) (*Session, error) {
	s := &Session{
		SessionID: utils.GenerateUUID(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&Session{}).Error; err != nil {
			return err
		}
		return tx.Create(s).Error
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func sessionCookie(r *http.Request, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     "session_id",
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	return c
}

// authenticate returns nil for unknown users and wrong passwords alike.
func authenticate(username, password string) *User {
	var user User
	if err := db.DB.Where("username = ?", strings.TrimSpace(username)).Take(&user).Error; err != nil {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil
	}
	return &user
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user := authenticate(req.Username, req.Password)
	if user == nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}

	session, err := startSession(user.UserID)
	if err != nil {
		logger.Module("auth").Error("create session", "user_id", user.UserID, "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, sessionCookie(r, session.SessionID, session.ExpiresAt))

	writeJSON(w, meResponse(user))
}

func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
		return
	}
	if err := db.DB.Where("session_id = ?", cookie.Value).Delete(&Session{}).Error; err != nil {
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, sessionCookie(r, "", time.Time{}))
	w.WriteHeader(http.StatusNoContent)
}

func MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var user User
	if err := db.DB.Where("user_id = ?", userID).Take(&user).Error; err != nil {
		http.Error(w, "Couldn't find user", http.StatusNotFound)
		return
	}
	writeJSON(w, meResponse(&user))
}

func meResponse(u *User) MeResponse {
	return MeResponse{UserID: u.UserID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
