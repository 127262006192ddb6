package attachment

import (
	"log"

	"github.com/georiviere/georiviere-api/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Attachment{}); err != nil {
		log.Fatal("Failed to auto-migrate attachment tables: ", err)
	}
}
