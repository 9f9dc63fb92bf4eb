package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"coliseum/config"
	"coliseum/database"
	"coliseum/events"
	"coliseum/httpapi"
	"coliseum/infrastructure"
	"coliseum/repository"
	"coliseum/service"
	"coliseum/webhook"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting coliseum...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	log.Println("Initializing event bus...")
	eventBus := events.NewBus()

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize services
	log.Println("Initializing services...")
	ledgerService := service.NewLedgerService(uowFactory)
	battleService := service.NewBattleService(uowFactory)
	showService := service.NewShowService(uowFactory)
	moderationService := service.NewModerationService(uowFactory)
	log.Println("Services initialized successfully")

	// Forward bus events to NATS when a server is reachable
	var forwarder *infrastructure.EventForwarder
	if cfg.NATSServers != "" {
		forwarder, err = infrastructure.NewEventForwarder(cfg.NATSServers)
		if err != nil {
			log.Printf("NATS unavailable, events stay in-process: %v", err)
		} else {
			forwarder.Attach(eventBus)
			log.Println("NATS event forwarder attached")
		}
	}

	// Start the expiration sweeper
	sweeper := service.NewSweeper(uowFactory, battleService, cfg.SweepInterval)
	go sweeper.Run(ctx)

	// Start the HTTP listener: engine API plus the media webhook
	mux := http.NewServeMux()
	httpapi.NewServer(ledgerService, battleService, showService, moderationService).Register(mux)
	webhook.NewHandler(uowFactory).Register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP listener on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	log.Printf("Running in %s mode...", cfg.Environment)
	select {
	case err := <-serverErr:
		return fmt.Errorf("http listener failed: %w", err)
	case <-ctx.Done():
	}

	// Cleanup resources
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down http listener: %v", err)
	}

	if forwarder != nil {
		forwarder.Close()
	}

	log.Println("Closing database connection...")
	db.Close()

	log.Println("Shutdown completed")
	return nil
}
