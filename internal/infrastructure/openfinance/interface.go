package openfinance

import (
	"context"
)

// ClientInterface defines the methods required from the account-aggregation API client
type ClientInterface interface {
	// FetchBalancesWithStatus returns the balance response and the HTTP status code,
	// so callers can react to 401 without parsing error strings.
	FetchBalancesWithStatus(ctx context.Context, accessToken string) (*BalanceResponse, int, error)
	RevokeCredential(ctx context.Context, accessToken string) error
}
