// Package store defines the persistence contract for control plan
// collections and the row shapes of the five target tables.
//
// A collection's rows are only ever written by Replace, which swaps the
// whole row set for one collection id inside a single transaction.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoRowsAffected is returned when an insert that should have written
	// rows reports zero affected rows. The surrounding transaction is rolled
	// back.
	ErrNoRowsAffected = errors.New("insert affected no rows")

	// ErrCollectionExists is returned by RegisterCollection for a duplicate id.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrEmptyCollectionID is returned for a blank collection id.
	ErrEmptyCollectionID = errors.New("collection id is empty")
)

// DefaultBatchSize is the number of rows inserted per chunk when a backend
// is not configured otherwise.
const DefaultBatchSize = 500

// Collection is a registered control plan collection.
type Collection struct {
	ID        string    `json:"id" db:"collection_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Store persists collections and their row sets.
type Store interface {
	// CollectionExists reports whether id is registered, matching exactly.
	CollectionExists(ctx context.Context, id string) (bool, error)

	// RegisterCollection creates a collection.
	RegisterCollection(ctx context.Context, id string) (Collection, error)

	// ListCollections returns every collection ordered by id.
	ListCollections(ctx context.Context) ([]Collection, error)

	// Replace deletes every row of the collection in all five tables and
	// inserts rows, atomically. It returns the number of rows written per
	// table. On error nothing is changed.
	Replace(ctx context.Context, collectionID string, rows RowSet) (TableCounts, error)

	// Count returns the committed row count of one table for a collection.
	Count(ctx context.Context, table Table, collectionID string) (int, error)

	// Snapshot returns the committed rows of a collection ordered by
	// sort order.
	Snapshot(ctx context.Context, collectionID string) (RowSet, error)

	Close() error
}

// Migrator is implemented by stores that manage their own schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
