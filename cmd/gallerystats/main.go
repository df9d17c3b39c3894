// main.go - HTTP server for gallery analytics, views and catalog
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gallerystats/internal"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

func main() {
	// A .env file is optional; production passes real environment variables
	_ = godotenv.Load()

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Start()
	}()
	log.Println("Application started")

	waitForShutdownSignal(app, serverErr)
}

// waitForShutdownSignal blocks until a signal arrives or the server stops on
// its own, then shuts the application down.
func waitForShutdownSignal(app *internal.Application, serverErr <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Server stopped: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	log.Println("Initiating graceful shutdown...")
	if err := app.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
	log.Println("Server shutdown complete")
}
