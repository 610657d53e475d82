package connection

import "context"

// Repository persists the full set of connections as one document.
// Implementations replace the whole document on Save.
type Repository interface {
	// Load returns every stored connection; an empty store yields an empty slice.
	Load(ctx context.Context) ([]Connection, error)

	// Save replaces the stored connections with conns.
	Save(ctx context.Context, conns []Connection) error
}

// Revoker invalidates an access credential at the aggregation service.
type Revoker interface {
	RevokeCredential(ctx context.Context, accessCredential string) error
}
