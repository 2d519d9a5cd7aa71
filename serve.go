package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/camden-git/fieldsurvey/config"
	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/handlers"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/metrics"
	"github.com/camden-git/fieldsurvey/realtime"
	"github.com/camden-git/fieldsurvey/repository"
	"github.com/camden-git/fieldsurvey/services"
	"github.com/camden-git/fieldsurvey/workers"
)

const (
	editorSweepInterval = time.Minute
	editorMaxIdle       = 30 * time.Minute
	shutdownTimeout     = 15 * time.Second
)

func serve() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, p := range []string{filepath.Dir(cfg.DatabasePath), filepath.Dir(cfg.CacheDBPath), cfg.MediaStoragePath} {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			return fmt.Errorf("create storage directory %s: %w", p, err)
		}
	}

	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.DatabasePath, err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	cacheDB, err := database.InitDB(cfg.CacheDBPath)
	if err != nil {
		return err
	}
	defer cacheDB.Close()

	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, media.DefaultSubDirs())
	if err != nil {
		return fmt.Errorf("initialize media store: %w", err)
	}
	mediaProcessor := media.NewProcessor(mediaStore)
	uploader := media.NewUploader(mediaStore, cfg.PublicMediaURL, cfg.MaxUploadBytes)

	m := metrics.New()
	hub := realtime.NewHub()
	go hub.Run()
	defer hub.Stop()

	userRepo := repository.NewGormUserRepository(gormDB)
	imageRepo := repository.NewImageRepository(gormDB)

	log.Printf("Initializing image processor worker pool (Workers: %d, Queue Size: %d)...", cfg.NumRenderWorkers, cfg.RenderQueueSize)
	imageProcessor := workers.NewImageProcessor(cfg, workers.Deps{
		DB:        cacheDB,
		Images:    imageRepo,
		Processor: mediaProcessor,
		Events:    hub,
		Metrics:   m,
	}, cfg.RenderQueueSize, cfg.NumRenderWorkers)
	defer imageProcessor.Stop()

	surveyService := &services.SurveyService{
		Surveys: repository.NewGormSurveyRepository(gormDB),
		CacheDB: cacheDB,
		Renders: imageProcessor,
		Events:  hub,
		Metrics: m,
	}
	imageService := &services.ImageService{
		Uploader:   uploader,
		Images:     imageRepo,
		Thumbnails: imageProcessor,
		Events:     hub,
		Metrics:    m,
	}
	editors := services.NewEditorManager(surveyService, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go editors.RunJanitor(ctx, editorSweepInterval, editorMaxIdle)

	router := handlers.NewRouter(handlers.RouterDeps{
		Users:          userRepo,
		Tokens:         handlers.NewTokenIssuer(cfg.JWTSecret),
		Surveys:        surveyService,
		Images:         imageService,
		Editors:        editors,
		Exporter:       &services.Exporter{Surveys: surveyService, Images: imageRepo, Store: mediaStore, CacheDB: cacheDB},
		Uploader:       uploader,
		Store:          mediaStore,
		Processor:      mediaProcessor,
		Hub:            hub,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", cfg.ListenAddr)
		log.Printf("Using database: %s (render cache: %s)", cfg.DatabasePath, cfg.CacheDBPath)
		log.Printf("Storing media in: %s, served at %s", cfg.MediaStoragePath, cfg.PublicMediaURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
