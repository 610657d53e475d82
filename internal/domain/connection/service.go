package connection

import (
	"context"
	"fmt"
	"log"
)

// RemoveOutcome reports what happened when a connection was removed.
// Revocation is best-effort: a failure is recorded but does not block removal.
type RemoveOutcome struct {
	ConnectionID string `json:"connectionId"`
	Removed      bool   `json:"removed"`
	Revoked      bool   `json:"revoked"`
	RevokeError  string `json:"revokeError,omitempty"`
}

// Service is the connection store: a thin layer over Repository that keeps
// connections unique by id.
type Service struct {
	repo    Repository
	revoker Revoker
}

// NewService creates a new connection service. revoker may be nil.
func NewService(repo Repository, revoker Revoker) *Service {
	return &Service{repo: repo, revoker: revoker}
}

// List returns all stored connections.
func (s *Service) List(ctx context.Context) ([]Connection, error) {
	return s.repo.Load(ctx)
}

// Get returns the connection with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Connection, error) {
	conns, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range conns {
		if conns[i].ID == id {
			c := conns[i].Clone()
			return &c, nil
		}
	}
	return nil, ErrConnectionNotFound
}

// Upsert stores conn, replacing any existing connection with the same id.
func (s *Service) Upsert(ctx context.Context, conn Connection) error {
	if err := conn.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}

	conns, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, Replace(conns, conn))
}

// Remove deletes the connection and then makes a best-effort attempt to
// revoke its credential.
func (s *Service) Remove(ctx context.Context, id string) (*RemoveOutcome, error) {
	removed, err := s.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Revoke(ctx, removed), nil
}

// Delete drops the connection from the store and returns it. The credential
// is left untouched; callers follow up with Revoke once the store is saved.
func (s *Service) Delete(ctx context.Context, id string) (*Connection, error) {
	conns, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range conns {
		if conns[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrConnectionNotFound
	}

	removed := conns[idx]
	remaining := make([]Connection, 0, len(conns)-1)
	remaining = append(remaining, conns[:idx]...)
	remaining = append(remaining, conns[idx+1:]...)
	if err := s.repo.Save(ctx, remaining); err != nil {
		return nil, fmt.Errorf("failed to save connections: %w", err)
	}
	return &removed, nil
}

// Revoke revokes the credential of a connection already deleted from the
// store. A failure is recorded in the outcome, never returned.
func (s *Service) Revoke(ctx context.Context, conn *Connection) *RemoveOutcome {
	outcome := &RemoveOutcome{ConnectionID: conn.ID, Removed: true}
	if s.revoker == nil {
		return outcome
	}
	if err := s.revoker.RevokeCredential(ctx, conn.AccessCredential); err != nil {
		log.Printf("Connection %s: credential revoke failed (connection already removed): %v", conn.ID, err)
		outcome.RevokeError = err.Error()
		return outcome
	}
	outcome.Revoked = true
	return outcome
}

// Replace returns conns with conn replacing the entry of the same id, or
// appended when no such entry exists. The input slice is not modified.
func Replace(conns []Connection, conn Connection) []Connection {
	out := make([]Connection, 0, len(conns)+1)
	replaced := false
	for _, c := range conns {
		if c.ID == conn.ID {
			out = append(out, conn)
			replaced = true
			continue
		}
		out = append(out, c)
	}
	if !replaced {
		out = append(out, conn)
	}
	return out
}
