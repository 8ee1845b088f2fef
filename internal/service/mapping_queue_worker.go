package service

import (
	"context"
	"log"
	"sync"
	"time"

	"policonv/internal/port"
)

// MappingQueueConfig holds settings for the mapping queue worker.
type MappingQueueConfig struct {
	PollInterval time.Duration
	MaxRetries   int
	Concurrency  int
}

// MappingQueueWorker polls for queued jobs and dispatches them for mapping.
type MappingQueueWorker struct {
	jobRepo    port.JobRepository
	mapService MappingService
	cfg        MappingQueueConfig
	wg         sync.WaitGroup
}

// NewMappingQueueWorker creates a new MappingQueueWorker.
func NewMappingQueueWorker(jobRepo port.JobRepository, mapService MappingService, cfg MappingQueueConfig) *MappingQueueWorker {
	return &MappingQueueWorker{
		jobRepo:    jobRepo,
		mapService: mapService,
		cfg:        cfg,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight mapping goroutines have finished.
func (w *MappingQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Printf("mappingQueueWorker: started (poll=%s, concurrency=%d, maxRetries=%d)",
		w.cfg.PollInterval, w.cfg.Concurrency, w.cfg.MaxRetries)

	for {
		select {
		case <-ctx.Done():
			log.Printf("mappingQueueWorker: shutting down, waiting for in-flight jobs...")
			w.wg.Wait()
			log.Printf("mappingQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			jobs, err := w.jobRepo.ClaimQueued(ctx, available)
			if err != nil {
				if ctx.Err() != nil {
					// Context canceled during poll; exit gracefully
					continue
				}
				log.Printf("mappingQueueWorker: ClaimQueued error: %v", err)
				continue
			}

			for i := range jobs {
				job := jobs[i] // copy for goroutine
				job.MapAttempts++

				sem <- struct{}{} // acquire
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }() // release

					// Use a fresh context independent of the poll context
					// so in-flight jobs complete even during shutdown.
					mapCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
					defer cancel()

					log.Printf("mappingQueueWorker: dispatching job %s (attempt %d)", job.ID, job.MapAttempts)
					w.mapService.MapJob(mapCtx, &job, w.cfg.MaxRetries)
				}()
			}
		}
	}
}
