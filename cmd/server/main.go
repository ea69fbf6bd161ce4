package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/emworks/ux-agent/internal/app"
	"github.com/emworks/ux-agent/internal/config"
)

// @title Estimation Rooms API
// @version 1.0
// @description Users, rooms and chat history for real-time estimation sessions
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("Close: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  GET/POST /api/users")
		log.Println("  GET/POST /api/rooms")
		log.Println("  GET/DELETE /api/rooms/{id}")
		log.Println("  PUT /api/rooms/{id}/join, /api/rooms/{id}/leave")
		log.Println("  GET /api/rooms/{id}/messages")
		log.Println("  WS  /rooms/{id}?userId=")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// hijacked WebSocket connections are not tracked by the server
		a.Hub.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
	}
	log.Println("Server exited")
}
