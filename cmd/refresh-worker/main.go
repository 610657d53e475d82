// Command refresh-worker consumes queued refresh requests and runs them
// against the shared document store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"finlink/internal/app"
	"finlink/internal/domain/connection"
	"finlink/internal/domain/openfinance"
	"finlink/internal/infrastructure/amqp"
	"finlink/internal/shared/config"
	"finlink/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Worker error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.AMQP.Enabled() {
		return errors.New("AMQP_URL is required for the refresh worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Telemetry.ServiceName = "finlink-refresh-worker"
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(tctx)
	}()

	services, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.ConsumeRefresh(ctx, handleRefresh(services.Refresh))
	if errors.Is(err, context.Canceled) {
		log.Println("Refresh worker stopped")
		return nil
	}
	return err
}

// refresher is satisfied by openfinance.RefreshService.
type refresher interface {
	RefreshConnection(ctx context.Context, id string) (*openfinance.RefreshOutcome, error)
}

// handleRefresh runs one queued refresh. Failures that a retry cannot fix are
// acknowledged: unknown connections and rejected credentials.
func handleRefresh(r refresher) func(context.Context, *amqp.RefreshRequest) error {
	return func(ctx context.Context, req *amqp.RefreshRequest) error {
		outcome, err := r.RefreshConnection(ctx, req.ConnectionID)
		switch {
		case err == nil:
			log.Printf("Connection %s: queued refresh %s done (updated=%d, relinked=%d)",
				req.ConnectionID, req.ID, outcome.Updated, outcome.Relinked)
			return nil
		case errors.Is(err, connection.ErrConnectionNotFound),
			errors.Is(err, openfinance.ErrProviderUnauthorized),
			errors.Is(err, openfinance.ErrRelinkRequired):
			log.Printf("Connection %s: queued refresh %s dropped: %v", req.ConnectionID, req.ID, err)
			return nil
		default:
			return fmt.Errorf("refresh %s: %w", req.ConnectionID, err)
		}
	}
}
