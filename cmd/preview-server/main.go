package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfagnish/preview-server/internal/config"
	"github.com/alfagnish/preview-server/internal/preview"
	"github.com/alfagnish/preview-server/internal/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 1. Load configuration from environment variables.
	cfg := config.Load()

	// 2. Fix the safe root for the lifetime of the process.
	v, err := preview.NewValidator(cfg.PreviewDir, cfg.AllowedExtensions)
	if err != nil {
		log.Fatalf("invalid preview directory: %v", err)
	}
	log.Printf("config: listen=%s route=%s root=%s extensions=%v",
		cfg.ListenAddr, cfg.PreviewRoute, v.Root(), v.Extensions())

	// Non-fatal: an external process populates the directory and may not
	// have created it yet. Requests return 404 until it exists.
	if info, err := os.Stat(v.Root()); err != nil {
		log.Printf("WARNING: preview directory unavailable: %v", err)
	} else if !info.IsDir() {
		log.Printf("WARNING: preview root %s is not a directory", v.Root())
	}

	// 3. Set up the chi router with all handlers.
	handler, err := server.New(cfg, v)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	// 4. Start the HTTP server.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		WriteTimeout:      0, // large PDFs stream for as long as the client reads
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("preview server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-done
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
		if err := srv.Close(); err != nil {
			log.Printf("forced close error: %v", err)
		}
	}

	log.Println("preview server stopped")
}
