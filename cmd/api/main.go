package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yorism7/STORYTALE/internal/api"
	"github.com/Yorism7/STORYTALE/internal/config"
	"github.com/Yorism7/STORYTALE/internal/db"
	"github.com/Yorism7/STORYTALE/internal/services"
	"github.com/Yorism7/STORYTALE/internal/story"
)

func main() {
	log.Println("Starting StoryTale API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open database
	database, err := db.New(cfg.DBDir)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	log.Printf("Database ready in %s", cfg.DBDir)

	// Initialize services
	pollinations := services.NewPollinationsService(cfg.PollinationsKey, cfg.PollinationsBase)
	if cfg.PollinationsKey != "" {
		log.Printf("Pollinations API key configured (%s)", maskKey(cfg.PollinationsKey))
	} else {
		log.Println("WARNING: No POLLINATIONS_API_KEY set — generation may be rate-limited")
	}

	tts := services.NewEdgeTTSService(cfg.TTSVoice)
	log.Printf("TTS voice: %s", cfg.TTSVoice)

	ffmpeg := services.NewFFmpegService()
	exporter := services.NewVideoExportService(tts, ffmpeg)

	stories := story.New(database, pollinations, tts, exporter, cfg.MaxConcurrentExports)

	// Create API handler
	handler := api.NewHandler(stories)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		StaticDir:          cfg.StaticDir,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
