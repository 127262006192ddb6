package station

import (
	"log"

	"github.com/georiviere/georiviere-api/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Station{}); err != nil {
		log.Fatal("Failed to auto-migrate station tables: ", err)
	}
}
