// internal/domain/notification/repository.go
package notification

import (
	"context"
)

// Catalog is the read side of the notification rule table.
type Catalog interface {
	// ListRules returns every rule ordered by week offset, then id.
	ListRules(ctx context.Context) ([]*Rule, error)
}

// Ledger tracks which (notification, contract) pairs were already delivered.
type Ledger interface {
	Has(ctx context.Context, notificationID, contractID int64) (bool, error)
	// Record stores the pair. It returns ErrAlreadyDelivered from the database
	// package when the pair exists; the existing row is left untouched.
	Record(ctx context.Context, notificationID, contractID int64) error
	Purge(ctx context.Context, contractID int64) error
	ListDelivered(ctx context.Context, contractID int64) ([]*Delivery, error)
}

// Repository is the full persistence surface for rules and deliveries.
type Repository interface {
	Catalog
	Ledger

	// UpsertRules inserts or replaces rules by id. Used by catalog seeding.
	UpsertRules(ctx context.Context, rules []*Rule) error
}
