package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/openfinance"
	"finlink/internal/infrastructure/amqp"
)

type MockRefresher struct {
	RefreshConnectionFunc func(ctx context.Context, id string) (*openfinance.RefreshOutcome, error)
}

func (m *MockRefresher) RefreshConnection(ctx context.Context, id string) (*openfinance.RefreshOutcome, error) {
	return m.RefreshConnectionFunc(ctx, id)
}

func TestHandleRefresh(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "Success"},
		{name: "Unknown connection", err: fmt.Errorf("load: %w", connection.ErrConnectionNotFound)},
		{name: "Unauthorized", err: openfinance.ErrProviderUnauthorized},
		{name: "Relink required", err: openfinance.ErrRelinkRequired},
		{name: "Transient failure", err: errors.New("timeout"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			r := &MockRefresher{
				RefreshConnectionFunc: func(ctx context.Context, id string) (*openfinance.RefreshOutcome, error) {
					gotID = id
					outcome := &openfinance.RefreshOutcome{ConnectionID: id}
					if tt.err != nil {
						outcome.Error = tt.err.Error()
					}
					return outcome, tt.err
				},
			}

			err := handleRefresh(r)(context.Background(), amqp.NewRefreshRequest("item_1"))
			if (err != nil) != tt.wantErr {
				t.Errorf("handleRefresh() error = %v, wantErr %v", err, tt.wantErr)
			}
			if gotID != "item_1" {
				t.Errorf("refreshed %q, want item_1", gotID)
			}
		})
	}
}
