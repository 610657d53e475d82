package ledger

import "context"

// Repository loads and stores the local card and bank account documents.
// Each Save replaces both documents wholesale.
type Repository interface {
	Load(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, l *Ledger) error
}
