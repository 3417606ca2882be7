package contract

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Contract entities.
type Repository interface {
	// Upsert inserts a new contract or reactivates an existing one. Presets are
	// always overwritten; StartDate is overwritten only when it is valid.
	Upsert(ctx context.Context, c *Contract) error
	// Remove deletes the contract together with its delivery records.
	// Removing an unknown id is not an error.
	Remove(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Contract, error)
	ListActive(ctx context.Context) ([]*Contract, error) // Contracts with a start date
	ListIDs(ctx context.Context) ([]int64, error)
}
