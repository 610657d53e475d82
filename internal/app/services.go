// Package app wires storage, the aggregation client and the domain services
// shared by the API, the admin CLI and the refresh worker.
package app

import (
	"context"
	"fmt"
	"log"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
	"finlink/internal/domain/notification"
	"finlink/internal/domain/openfinance"
	"finlink/internal/domain/reconcile"
	"finlink/internal/infrastructure/catalog"
	"finlink/internal/infrastructure/crypto"
	"finlink/internal/infrastructure/docstore"
	"finlink/internal/infrastructure/firebase"
	ofclient "finlink/internal/infrastructure/openfinance"
	"finlink/internal/infrastructure/sheets"
	"finlink/internal/shared/config"
	"finlink/internal/shared/messages"
)

// Services holds the initialized domain services.
type Services struct {
	Store       docstore.Store
	Connections *connection.Service
	Ledger      ledger.Repository
	Notifier    *notification.Service
	Link        *openfinance.LinkService
	Refresh     *openfinance.RefreshService
	AutoFill    *openfinance.AutoFillService
}

// New opens storage and builds every service. Push notifications and the
// Sheets export are optional; a failure to set either up is logged and the
// feature is left disabled.
func New(ctx context.Context, cfg *config.Config) (*Services, error) {
	store, err := docstore.Open(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := build(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return svc, nil
}

func build(ctx context.Context, cfg *config.Config, store docstore.Store) (*Services, error) {
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	connRepo := docstore.NewConnectionRepository(store, encryptor)
	ledgerRepo := docstore.NewLedgerRepository(store)

	ofClient := ofclient.NewClient(
		cfg.OpenFinance.ClientID,
		cfg.OpenFinance.Secret,
		ofclient.WithBaseURL(cfg.OpenFinance.BaseURL),
		ofclient.WithTimeout(cfg.OpenFinance.Timeout),
	)
	connections := connection.NewService(connRepo, ofClient)

	cat, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load product catalog: %w", err)
	}
	matcher := reconcile.NewMatcher(cat.CatalogNames, nil)

	msgs, err := messages.Load(cfg.Messages.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification messages: %w", err)
	}

	notifier := newNotifier(ctx, cfg.Firebase, msgs)

	var exporter openfinance.Exporter
	if cfg.Sheets.Enabled() {
		sx, err := sheets.NewExporter(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, cfg.Sheets.CredentialsFile)
		if err != nil {
			log.Printf("Warning: Sheets export disabled: %v", err)
		} else {
			exporter = sx
			log.Printf("Sheets export enabled (sheet %q)", cfg.Sheets.SheetName)
		}
	}

	lock := openfinance.NewDocLock()

	return &Services{
		Store:       store,
		Connections: connections,
		Ledger:      ledgerRepo,
		Notifier:    notifier,
		Link:        openfinance.NewLinkService(lock, connections, ledgerRepo, matcher, notifier),
		Refresh:     openfinance.NewRefreshService(lock, connections, ledgerRepo, ofClient, notifier, cfg.OpenFinance.RefreshConcurrency),
		AutoFill:    openfinance.NewAutoFillService(ledgerRepo, exporter),
	}, nil
}

// newNotifier returns a notification service backed by FCM when credentials
// are configured. Tokens FCM rejects are dropped from the service.
func newNotifier(ctx context.Context, cfg config.FirebaseConfig, msgs *messages.Messages) *notification.Service {
	if cfg.CredentialsFile == "" || len(cfg.DeviceTokens) == 0 {
		log.Println("Push notifications disabled (no Firebase credentials or device tokens)")
		return notification.NewService(nil, nil, msgs)
	}

	var notifier *notification.Service
	fcm, err := firebase.NewClient(ctx, cfg.CredentialsFile, func(token string) {
		notifier.DropToken(token)
	})
	if err != nil {
		log.Printf("Warning: push notifications disabled: %v", err)
		return notification.NewService(nil, nil, msgs)
	}

	notifier = notification.NewService(fcm, cfg.DeviceTokens, msgs)
	log.Printf("Push notifications enabled for %d device(s)", len(cfg.DeviceTokens))
	return notifier
}

// Close releases storage.
func (s *Services) Close() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
