package reconciliation

import "context"

// Store is the durable home of the three ledgers. Load reads them fully; Flush writes back
// only the entries Books marks dirty, updating existing rows in place and appending new
// ones, then clears the dirty set. A store is a single-writer resource.
type Store interface {
	Load(ctx context.Context) (*Books, error)
	Flush(ctx context.Context, books *Books) error
}
