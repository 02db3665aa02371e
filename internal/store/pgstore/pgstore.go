// Package pgstore implements store.Store on a pgx connection pool.
//
// Replace runs in a serializable transaction behind an advisory lock on
// the collection id, so concurrent imports of the same collection queue up
// instead of interleaving. Rows are written with COPY.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
)

// cleanupTimeout bounds the rollback and unlock issued after a run, which
// must complete even when the run's context was cancelled.
const cleanupTimeout = 5 * time.Second

// Store is a PostgreSQL store.Store.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Migrator = (*Store)(nil)
)

// New wraps a pool. The pool is closed by Close.
func New(pool *pgxpool.Pool, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = store.DefaultBatchSize
	}
	return &Store{pool: pool, batchSize: batchSize}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, store.Schema()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cp_collections WHERE collection_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return exists, nil
}

func (s *Store) RegisterCollection(ctx context.Context, id string) (store.Collection, error) {
	if strings.TrimSpace(id) == "" {
		return store.Collection{}, store.ErrEmptyCollectionID
	}

	c := store.Collection{ID: id}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO cp_collections (collection_id) VALUES ($1)
		ON CONFLICT (collection_id) DO NOTHING
		RETURNING created_at`, id).Scan(&c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Collection{}, fmt.Errorf("%w: %s", store.ErrCollectionExists, id)
	}
	if err != nil {
		return store.Collection{}, fmt.Errorf("register collection: %w", err)
	}
	return c, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]store.Collection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT collection_id, created_at FROM cp_collections ORDER BY collection_id`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[store.Collection])
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return out, nil
}

// Replace swaps the collection's rows inside one transaction.
//
// The advisory lock is a session lock taken before BEGIN on the same
// connection: a serializable snapshot is fixed by the first statement of
// the transaction, so the lock must already be held by then.
func (s *Store) Replace(ctx context.Context, collectionID string, rows store.RowSet) (counts store.TableCounts, err error) {
	rows = rows.WithCollection(collectionID)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return counts, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, collectionID); err != nil {
		return counts, fmt.Errorf("lock collection: %w", err)
	}
	defer s.unlock(ctx, conn, collectionID)

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return counts, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		// ctx may already be cancelled; the rollback still has to reach the server.
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	for _, t := range store.AllTables {
		if _, err = tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE collection_id = $1`, t.SQLName()), collectionID); err != nil {
			return store.TableCounts{}, fmt.Errorf("delete %s: %w", t, err)
		}
	}

	for _, t := range store.AllTables {
		var n int
		n, err = s.copyTable(ctx, tx, t, rows.Values(t))
		if err != nil {
			return store.TableCounts{}, err
		}
		counts.Set(t, n)
	}

	if err = tx.Commit(ctx); err != nil {
		return store.TableCounts{}, fmt.Errorf("commit: %w", err)
	}
	return counts, nil
}

// unlock releases the session advisory lock. If that fails the connection
// is closed, which ends the session and drops the lock with it.
func (s *Store) unlock(ctx context.Context, conn *pgxpool.Conn, collectionID string) {
	unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, collectionID); err != nil {
		_ = conn.Conn().Close(unlockCtx)
	}
}

func (s *Store) copyTable(ctx context.Context, tx pgx.Tx, t store.Table, values [][]any) (int, error) {
	written := 0
	for _, chunk := range store.Chunk(values, s.batchSize) {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{t.SQLName()}, store.Columns(t), pgx.CopyFromRows(chunk))
		if err != nil {
			return written, fmt.Errorf("insert %s: %w", t, err)
		}
		if n == 0 {
			return written, fmt.Errorf("insert %s: %w", t, store.ErrNoRowsAffected)
		}
		if int(n) != len(chunk) {
			return written, fmt.Errorf("insert %s: wrote %d of %d rows", t, n, len(chunk))
		}
		written += int(n)
	}
	return written, nil
}

func (s *Store) Count(ctx context.Context, table store.Table, collectionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE collection_id = $1`, table.SQLName()), collectionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) Snapshot(ctx context.Context, collectionID string) (store.RowSet, error) {
	var (
		rs  store.RowSet
		err error
	)
	if rs.Processes, err = selectRows[store.ProcessRow](ctx, s.pool, store.TableProcesses, collectionID); err != nil {
		return store.RowSet{}, err
	}
	if rs.Detectors, err = selectRows[store.DetectorRow](ctx, s.pool, store.TableDetectors, collectionID); err != nil {
		return store.RowSet{}, err
	}
	if rs.ControlItems, err = selectRows[store.ControlItemRow](ctx, s.pool, store.TableControlItems, collectionID); err != nil {
		return store.RowSet{}, err
	}
	if rs.ControlMethods, err = selectRows[store.ControlMethodRow](ctx, s.pool, store.TableControlMethods, collectionID); err != nil {
		return store.RowSet{}, err
	}
	if rs.ReactionPlans, err = selectRows[store.ReactionPlanRow](ctx, s.pool, store.TableReactionPlans, collectionID); err != nil {
		return store.RowSet{}, err
	}
	return rs, nil
}

// selectRows reads one table into T. Columns map to T's fields by their db tags.
func selectRows[T any](ctx context.Context, pool *pgxpool.Pool, t store.Table, collectionID string) ([]T, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE collection_id = $1 ORDER BY sort_order`,
		strings.Join(store.Columns(t), ", "), t.SQLName())
	rows, err := pool.Query(ctx, q, collectionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", t, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", t, err)
	}
	return out, nil
}
