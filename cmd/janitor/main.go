// Janitor periodically deactivates expired and idle sessions.
// Set DATABASE_URL; JANITOR_INTERVAL controls the sweep cadence (default 60s).
// With KAFKA_BROKERS set, sweep results are emitted to the security event stream.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eco-puntos/backend/internal/config"
	"eco-puntos/backend/internal/db"
	"eco-puntos/backend/internal/events"
	sessionrepo "eco-puntos/backend/internal/session/repository"
	"eco-puntos/backend/internal/session/service"
	settingsrepo "eco-puntos/backend/internal/settings/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("janitor: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	producer := events.NewKafkaProducer(cfg.SecurityKafkaBrokersList(), cfg.SecurityKafkaTopic)
	if producer != nil {
		defer producer.Close()
	}

	sessions := sessionrepo.NewPostgresRepository(conn)
	settings := settingsrepo.NewPostgresRepository(conn)
	manager := service.NewManager(sessions, settings, nil, nil, producer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("janitor: shutting down...")
		cancel()
	}()

	interval := cfg.SweepInterval()
	log.Printf("janitor: sweeping every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep(ctx, manager, settings)
	for {
		select {
		case <-ctx.Done():
			log.Println("janitor: stopped")
			return
		case <-ticker.C:
			sweep(ctx, manager, settings)
		}
	}
}

// sweep runs one expired plus one idle pass. Idle budgets come from the
// configurable session timeouts so admin behavior changes take effect without
// a restart.
func sweep(ctx context.Context, manager *service.Manager, settings settingsrepo.Repository) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := manager.SweepExpired(sweepCtx); err != nil {
		log.Printf("janitor: expired sweep failed: %v", err)
	}

	timeouts, err := settings.GetSessionTimeouts(sweepCtx)
	if err != nil {
		log.Printf("janitor: timeout lookup failed, skipping idle sweep: %v", err)
		return
	}
	if _, err := manager.SweepInactive(sweepCtx, timeouts.Admin, timeouts.User); err != nil {
		log.Printf("janitor: idle sweep failed: %v", err)
	}
}
