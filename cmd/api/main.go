package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"storyreel/internal/api"
	"storyreel/internal/config"
	"storyreel/internal/db"
	"storyreel/internal/queue"
	"storyreel/internal/render"
	"storyreel/internal/storage"
	"storyreel/internal/worker"
)

func main() {
	log.Println("Starting StoryReel API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	nudger, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer nudger.Close()
	if cfg.RedisURL != "" {
		log.Println("Connected to Redis wake channel")
	}

	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	handler := api.NewHandler(database, nudger, stor, api.RenderDefaults{
		Resolution: cfg.RenderResolution,
		FPS:        cfg.RenderFPS,
		Quality:    cfg.RenderQuality,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	group, workerCtx := errgroup.WithContext(workerCtx)

	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting render scheduler...")

		encoder := render.NewFFmpeg(
			time.Duration(cfg.ClipTimeoutSeconds)*time.Second,
			time.Duration(cfg.ConcatTimeoutSeconds)*time.Second,
		)
		normalizer := &render.Normalizer{
			StorageRoot: cfg.StorageRoot,
			BaseURL:     cfg.PublicBaseURL,
		}
		pipeline := render.NewPipeline(database, stor, encoder, normalizer, cfg.TempDir)
		w := worker.New(database, nudger, pipeline)

		// Recovery must complete before the scheduler claims anything:
		// jobs interrupted by the previous run go back to pending first.
		if err := w.Recover(workerCtx); err != nil {
			log.Fatalf("Failed to recover interrupted jobs: %v", err)
		}

		group.Go(func() error {
			w.Run(workerCtx)
			return nil
		})
		group.Go(func() error {
			nudger.Listen(workerCtx)
			return nil
		})
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	workerCancel()
	if err := group.Wait(); err != nil {
		log.Printf("Worker shutdown error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
