package auth

import (
	"log"

	"github.com/georiviere/georiviere-api/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&User{}, &Session{}); err != nil {
		log.Fatal("Failed to auto-migrate auth tables: ", err)
	}
}
