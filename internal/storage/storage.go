// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"tweet_relay/internal/model"
)

// Storage is the interface for tenant persistence.
//
// GetTenant returns (nil, nil) when no record exists. SaveTenant is an
// upsert. Saves for different tenant IDs are safe to call concurrently;
// callers serialize saves for the same tenant (the poller's per-tenant
// in-flight guard).
type Storage interface {
	GetTenant(ctx context.Context, id int64) (*model.Tenant, error)
	SaveTenant(ctx context.Context, t *model.Tenant) error
	ListEnabled(ctx context.Context) ([]model.Tenant, error)

	Close() error
}
