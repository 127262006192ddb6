package river

import (
	"log"

	"github.com/georiviere/georiviere-api/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Stream{}); err != nil {
		log.Fatal("Failed to auto-migrate river tables: ", err)
	}
}
