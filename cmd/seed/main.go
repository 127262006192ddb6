package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/auth"
	"github.com/georiviere/georiviere-api/internal/config"
	"github.com/georiviere/georiviere-api/internal/contribution"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/portal"
	"github.com/georiviere/georiviere-api/internal/seeds"
	"github.com/georiviere/georiviere-api/internal/station"
	"github.com/joho/godotenv"
)

// Seeds reference data from a YAML file. When ADMIN_USERNAME and
// ADMIN_PASSWORD are set an admin account is created as well.
func main() {
	path := flag.String("file", "data/seed.yaml", "seed document")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	logger.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if err := db.Connect(cfg); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	portal.Init()
	station.Init()
	auth.Init()
	attachment.Init()
	contribution.Init()

	if err := seeds.SeedAll(*path); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	username, password := os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD")
	if username != "" && password != "" {
		_, err := auth.CreateUser(username, os.Getenv("ADMIN_EMAIL"), password, auth.RoleAdmin)
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			log.Printf("⚠️ User %s exists, skipping", username)
		case err != nil:
			log.Fatalf("❌ Failed to create admin: %v", err)
		default:
			log.Printf("✅ Created admin %s", username)
		}
	}
	log.Printf("✅ Seeded %s", *path)
}
