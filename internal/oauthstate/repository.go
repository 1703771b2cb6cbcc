package oauthstate

import "context"

type Repository interface {
	// Store persists a state record with its natural expiry.
	Store(ctx context.Context, state State) error
	// Consume atomically reads and deletes a state record. A second Consume
	// of the same ID must fail with serviceerr.ErrNotFound, never return
	// stale data; this is the single-use guarantee the callback relies on.
	Consume(ctx context.Context, stateID string) (State, error)
	// List returns all live state records, for housekeeping.
	List(ctx context.Context) ([]State, error)
	Delete(ctx context.Context, stateID string) error
}
