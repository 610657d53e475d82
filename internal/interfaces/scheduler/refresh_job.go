package scheduler

import (
	"context"
	"fmt"
	"log"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/openfinance"
)

// Refresher refreshes one connection's balances.
type Refresher interface {
	RefreshConnection(ctx context.Context, id string) (*openfinance.RefreshOutcome, error)
}

// ConnectionLister lists stored connections.
type ConnectionLister interface {
	List(ctx context.Context) ([]connection.Connection, error)
}

// RefreshJob implements the Job interface for refreshing one connection
type RefreshJob struct {
	connectionID string
	institution  string
	refresher    Refresher
}

// NewRefreshJob creates a new refresh job for a connection
func NewRefreshJob(conn connection.Connection, refresher Refresher) *RefreshJob {
	return &RefreshJob{
		connectionID: conn.ID,
		institution:  conn.InstitutionName,
		refresher:    refresher,
	}
}

// Execute runs the refresh job
func (j *RefreshJob) Execute(ctx context.Context) error {
	if _, err := j.refresher.RefreshConnection(ctx, j.connectionID); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	return nil
}

// Key returns the connection ID associated with this job
func (j *RefreshJob) Key() string {
	return j.connectionID
}

// Description returns a human-readable description of the job
func (j *RefreshJob) Description() string {
	return fmt.Sprintf("Balance refresh for %s (%s)", j.institution, j.connectionID)
}

// RefreshJobProvider yields one RefreshJob per stored connection. Connections
// waiting for a re-link are left out.
func RefreshJobProvider(lister ConnectionLister, refresher Refresher) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		conns, err := lister.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list connections: %w", err)
		}

		jobs := make([]Job, 0, len(conns))
		for _, c := range conns {
			if c.RequiresRelink {
				log.Printf("Connection %s: skipping scheduled refresh, re-link required", c.ID)
				continue
			}
			jobs = append(jobs, NewRefreshJob(c, refresher))
		}
		return jobs, nil
	}
}
