package openfinance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("client-id", "secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestFetchBalancesWithStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != balancesPath {
			t.Errorf("request = %s %s, want POST %s", r.Method, r.URL.Path, balancesPath)
		}
		var body credentialRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.AccessToken != "access-1" || body.ClientID != "client-id" || body.Secret != "secret" {
			t.Errorf("body = %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"accounts": [
				{"account_id": "acct_123", "name": "Gold", "type": "credit",
				 "balances": {"current": 321.45, "available": null, "limit": 1000, "iso_currency_code": "USD"}},
				{"account_id": "acct_456", "name": "Checking", "type": "depository",
				 "balances": {"current": 50, "available": 45.5, "limit": null, "iso_currency_code": null, "unofficial_currency_code": "XYZ"}}
			],
			"item": {"item_id": "item_1"},
			"request_id": "req-1"
		}`))
	})

	resp, status, err := client.FetchBalancesWithStatus(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("FetchBalancesWithStatus() error: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if len(resp.Accounts) != 2 {
		t.Fatalf("len(Accounts) = %d, want 2", len(resp.Accounts))
	}
	gold := resp.Accounts[0].Balances
	if *gold.Current != 321.45 || gold.Available != nil || *gold.Limit != 1000 || gold.CurrencyCode() != "USD" {
		t.Errorf("gold balances = %+v", gold)
	}
	if got := resp.Accounts[1].Balances.CurrencyCode(); got != "XYZ" {
		t.Errorf("CurrencyCode() = %q, want XYZ", got)
	}
}

func TestFetchBalancesWithStatus_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantLogin  bool
	}{
		{
			name:       "Unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error_code":"INVALID_ACCESS_TOKEN","error_message":"bad token"}`,
			wantStatus: http.StatusUnauthorized,
			wantLogin:  true,
		},
		{
			name:       "Login required",
			status:     http.StatusBadRequest,
			body:       `{"error_type":"ITEM_ERROR","error_code":"ITEM_LOGIN_REQUIRED","error_message":"login"}`,
			wantStatus: http.StatusUnauthorized,
			wantLogin:  true,
		},
		{
			name:       "Server error",
			status:     http.StatusInternalServerError,
			body:       `{"error_code":"INTERNAL_SERVER_ERROR","error_message":"boom"}`,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "Non-JSON error",
			status:     http.StatusBadGateway,
			body:       `upstream down`,
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			resp, status, err := client.FetchBalancesWithStatus(context.Background(), "access-1")
			if err == nil {
				t.Fatal("FetchBalancesWithStatus() expected error, got nil")
			}
			if resp != nil {
				t.Errorf("resp = %+v, want nil", resp)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if errors.Is(err, ErrLoginRequired) != tt.wantLogin {
				t.Errorf("errors.Is(err, ErrLoginRequired) = %v, want %v (err = %v)", !tt.wantLogin, tt.wantLogin, err)
			}
		})
	}
}

func TestRevokeCredential(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"request_id":"req-2"}`))
	})

	if err := client.RevokeCredential(context.Background(), "access-1"); err != nil {
		t.Fatalf("RevokeCredential() error: %v", err)
	}
	if gotPath != itemRemovePath {
		t.Errorf("path = %q, want %q", gotPath, itemRemovePath)
	}
}
