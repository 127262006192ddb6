package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/georiviere/georiviere-api/internal/attachment"
	"github.com/georiviere/georiviere-api/internal/auth"
	"github.com/georiviere/georiviere-api/internal/config"
	"github.com/georiviere/georiviere-api/internal/contribution"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/geocoding"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/metrics"
	"github.com/georiviere/georiviere-api/internal/middleware"
	"github.com/georiviere/georiviere-api/internal/notification"
	"github.com/georiviere/georiviere-api/internal/portal"
	"github.com/georiviere/georiviere-api/internal/river"
	"github.com/georiviere/georiviere-api/internal/station"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	appLog := logger.Module("main")

	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	portal.Init()
	station.Init()
	auth.Init()
	river.Init()
	attachment.Init()
	contribution.Init()

	portal.DefaultExtent = cfg.SpatialExtent
	attachment.MediaURL = cfg.MediaURL

	var mailer notification.Mailer = notification.NopMailer{}
	if cfg.SMTPURL != "" {
		m, err := notification.NewShoutrrrMailer(cfg.SMTPURL, cfg.MailTimeout)
		if err != nil {
			log.Fatalf("Mailer setup failed: %v", err)
		}
		mailer = m
	} else {
		appLog.Warn("SMTP_URL not set, contribution mails are disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(registry)

	pipeline := &contribution.Pipeline{
		Schema:  contribution.GenerateSchema,
		Creator: attachment.NewLocalStore(cfg.MediaRoot, cfg.MaxUploadBytes),
		Notifier: &notification.Notifier{
			Mailer:       mailer,
			Managers:     cfg.Managers,
			NotifyAuthor: cfg.NotifyAuthor,
			Log:          logger.Module("notification"),
		},
		Metrics: m,
		Log:     logger.Module("contribution"),
	}
	// A nil *Client stored in the interface would not compare equal to nil.
	if gc := geocoding.NewClient(cfg.GoogleMapsAPIKey); gc != nil {
		pipeline.Geocoder = gc
	}
	contribution.Default = pipeline
	contribution.MaxUploadBytes = cfg.MaxUploadBytes
	contribution.SubmitLimit = middleware.RateLimit(cfg.SubmitRate, cfg.SubmitBurst)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/", RootHandler)
	r.Handle("/metrics", m.Handler())
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaRoot))))
	r.Mount("/auth", auth.SetupRoutes())

	r.Route("/api/{lang}", func(r chi.Router) {
		river.RegisterRoutes(r)
		r.Route("/portals/{portalID}", func(r chi.Router) {
			portal.RegisterRoutes(r)
			station.RegisterRoutes(r)
			contribution.RegisterRoutes(r)
		})
		r.Route("/admin", contribution.RegisterAdminRoutes)
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	appLog.Info("Server listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server stopped: %v", err)
	}
}
