package store

import (
	"context"

	"github.com/notemirror/notemirror/internal/model"
)

// Locker defines the interface for per-account run lock management.
// Implementations keep two workers from syncing the same account at
// once.
type Locker interface {
	// Acquire attempts to take the account's run lock for the given owner.
	Acquire(ctx context.Context, accountID, ownerID string) (*model.RunLock, error)

	// Extend pushes the lock expiry out if the owner still holds it.
	Extend(ctx context.Context, accountID, ownerID string) (*model.RunLock, error)

	// Release removes the lock if the owner holds it.
	Release(ctx context.Context, accountID, ownerID string) error

	// Status retrieves the current lock, nil when the account is free.
	Status(ctx context.Context, accountID string) (*model.RunLock, error)
}
