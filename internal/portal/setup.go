package portal

import (
	"log"

	"github.com/georiviere/georiviere-api/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Portal{}, &MapBaseLayer{}, &MapGroupLayer{}, &MapLayer{}); err != nil {
		log.Fatal("Failed to auto-migrate portal tables: ", err)
	}
}
