// Package memstore is an in-memory store.Store. Replace builds the new row
// set off to the side and swaps it in under the lock, so readers never see
// a partial write.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]time.Time
	rows        map[string]store.RowSet
	now         func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]time.Time),
		rows:        make(map[string]store.RowSet),
		now:         time.Now,
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CollectionExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.collections[id]
	return ok, nil
}

func (s *Store) RegisterCollection(ctx context.Context, id string) (store.Collection, error) {
	if err := ctx.Err(); err != nil {
		return store.Collection{}, err
	}
	if strings.TrimSpace(id) == "" {
		return store.Collection{}, store.ErrEmptyCollectionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[id]; ok {
		return store.Collection{}, fmt.Errorf("%w: %s", store.ErrCollectionExists, id)
	}
	created := s.now().UTC()
	s.collections[id] = created
	return store.Collection{ID: id, CreatedAt: created}, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]store.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Collection, 0, len(s.collections))
	for id, created := range s.collections {
		out = append(out, store.Collection{ID: id, CreatedAt: created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Replace(ctx context.Context, collectionID string, rows store.RowSet) (store.TableCounts, error) {
	next := rows.WithCollection(collectionID)
	for _, p := range next.Processes {
		if p.ProcessNo == "" {
			return store.TableCounts{}, fmt.Errorf("insert %s: empty process_no", store.TableProcesses)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Checked under the lock: a cancelled run must not commit.
	if err := ctx.Err(); err != nil {
		return store.TableCounts{}, err
	}
	if _, ok := s.collections[collectionID]; !ok {
		return store.TableCounts{}, fmt.Errorf("collection %q not registered", collectionID)
	}

	s.rows[collectionID] = next
	return next.Counts(), nil
}

func (s *Store) Count(ctx context.Context, table store.Table, collectionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rows[collectionID].Counts().Get(table), nil
}

func (s *Store) Snapshot(ctx context.Context, collectionID string) (store.RowSet, error) {
	if err := ctx.Err(); err != nil {
		return store.RowSet{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Rows are never mutated after the swap; copying the slices is enough.
	return s.rows[collectionID].WithCollection(collectionID), nil
}

func (s *Store) Close() error { return nil }
