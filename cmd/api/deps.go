package main

import (
	"context"
	"log"

	"finlink/internal/app"
	"finlink/internal/infrastructure/amqp"
	httphandlers "finlink/internal/interfaces/http"
	"finlink/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Services *app.Services
	Queue    *amqp.Client

	// Handlers
	ConnectionHandler *httphandlers.ConnectionHandler
	LedgerHandler     *httphandlers.LedgerHandler
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	services, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Services: services}

	// The refresh queue is optional; without it ?async=1 is rejected.
	var queue httphandlers.RefreshPublisher
	if cfg.AMQP.Enabled() {
		client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			log.Printf("Warning: refresh queue disabled: %v", err)
		} else {
			deps.Queue = client
			queue = client
			log.Printf("Refresh queue enabled (%s)", cfg.AMQP.Queue)
		}
	}

	deps.ConnectionHandler = httphandlers.NewConnectionHandler(services.Connections, services.Link, services.Refresh, queue)
	deps.LedgerHandler = httphandlers.NewLedgerHandler(services.Ledger, services.AutoFill)

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Queue != nil {
		d.Queue.Close()
	}
	if d.Services != nil {
		d.Services.Close()
	}
}
