package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"policonv/internal/config"
	"policonv/internal/extractor"
	_ "policonv/internal/extractor/claude"
	"policonv/internal/handler"
	"policonv/internal/mapping"
	"policonv/internal/port"
	"policonv/internal/repository/postgres"
	"policonv/internal/router"
	"policonv/internal/service"
	"policonv/internal/snapshot"
	s3storage "policonv/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	jobRepo := postgres.NewJobRepo(db)
	snapshots := snapshot.NewFSRepository(cfg.Snapshot.Dir)

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize extraction and mapping clients
	visionExt, err := extractor.NewExtractor(&cfg.Extractor)
	if err != nil {
		return fmt.Errorf("failed to initialize vision extractor: %w", err)
	}

	var mappingClient port.MappingClient
	if cfg.Mapper.LLMEnabled {
		mappingClient = mapping.NewClient(&cfg.Mapper)
	}

	// Initialize services
	jobSvc := service.NewJobService(jobRepo, snapshots, s3Client, cfg.S3)
	mapSvc := service.NewMappingService(jobRepo, snapshots, s3Client, visionExt, mappingClient, cfg.S3, cfg.Queue.MaxRetries)

	// Initialize handlers
	jobH := handler.NewJobHandler(jobSvc, mapSvc)
	healthH := handler.NewHealthHandler(db, cfg.Snapshot.Dir)

	// Setup router
	r := router.Setup(jobH, healthH, cfg.CORS.AllowedOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the background mapping worker
	worker := service.NewMappingQueueWorker(jobRepo, mapSvc, service.MappingQueueConfig{
		PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		MaxRetries:   cfg.Queue.MaxRetries,
		Concurrency:  cfg.Queue.Concurrency,
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		<-workerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	<-workerDone

	return nil
}
