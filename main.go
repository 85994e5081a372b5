package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utsavbalhara/promptdj/audio"
	"github.com/utsavbalhara/promptdj/config"
	"github.com/utsavbalhara/promptdj/server"
	"github.com/utsavbalhara/promptdj/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Track this session in Redis (optional, degrades to nil)
	registry := session.NewRegistry(cfg.RedisURL, cfg.RedisPassword, cfg.SessionTimeout)
	if id := registry.ID(); id != "" {
		log.Printf("Session registry id: %s", id)
	}

	// Create playback controller
	ctrl := session.NewController(cfg, func() (audio.Sink, error) {
		return audio.NewPlayerSink(cfg.PlayerCommand)
	}, registry)

	srv := server.New(cfg, ctrl)
	ctrl.Start()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		ctrl.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
