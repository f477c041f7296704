package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dogspots-bxl/data-importer/internal/business/pipeline"
	"github.com/dogspots-bxl/data-importer/internal/platform/config"
	firestoreclient "github.com/dogspots-bxl/data-importer/internal/platform/firestore"
	"github.com/dogspots-bxl/data-importer/internal/platform/foursquare"
	apirouter "github.com/dogspots-bxl/data-importer/internal/platform/http"
	"github.com/dogspots-bxl/data-importer/internal/platform/overpass"
	"github.com/dogspots-bxl/data-importer/internal/platform/places"
	"github.com/dogspots-bxl/data-importer/internal/platform/urbis"
	"github.com/dogspots-bxl/data-importer/internal/repository"
	"github.com/dogspots-bxl/data-importer/pkg/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	gin.SetMode(cfg.GinMode)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	firestoreClient, credsSource, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("firestore init: %v", err)
	}
	defer firestoreClient.Close()

	if err := firestoreclient.Ping(ctx, firestoreClient); err != nil {
		log.Fatalf("firestore ping: %v", err)
	}
	log.Printf("connected to Firestore project %s using %s credentials", cfg.FirebaseProjectID, credsSource)

	store := repository.NewStore(firestoreClient)
	runRepo := repository.NewRunRepository(firestoreClient)

	registry := pipeline.NewRegistry()
	registry.Register(model.ProviderGoogle, places.New(nil, places.Config{APIKey: cfg.GooglePlacesAPIKey}))
	registry.Register(model.ProviderURBIS, urbis.New(nil, urbis.Config{BaseURL: cfg.URBISBaseURL}))
	registry.Register(model.ProviderOSM, overpass.New(nil, overpass.Config{BaseURL: cfg.OverpassBaseURL}))
	registry.Register(model.ProviderFoursquare, foursquare.New(nil, foursquare.Config{APIKey: cfg.FoursquareAPIKey}))

	bus := pipeline.NewEventBus(logger)
	versions := pipeline.NewVersionService()
	service := pipeline.NewService(registry, versions, store, runRepo, bus, logger)

	notifier := pipeline.NewNotifier(cfg.SlackWebhookURL, cfg.NotifyEmail, logger)
	scheduler := pipeline.NewScheduler(service, pipeline.BuildPipelines(cfg), notifier, logger, pipeline.SchedulerOptions{
		Environment:      cfg.GinMode,
		MaxConcurrent:    cfg.MaxConcurrentPipelines,
		VersionKeepCount: cfg.VersionKeepCount,
	})

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("scheduler start: %v", err)
	}
	defer scheduler.Stop()

	router := apirouter.NewRouter(scheduler, service, runRepo)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("server listening on :%s", cfg.Port)

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	log.Println("server exited")
}
