// Package sqlstore implements store.Store over database/sql with sqlx.
//
// Two dialects are supported:
//
//   - sqlite: modernc.org/sqlite (pure Go), one connection, so writers are
//     serialized by the pool itself
//   - pgx: PostgreSQL through jackc/pgx/v5/stdlib, serializable isolation
//     behind a session advisory lock per collection
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
)

// Dialect selects the SQL driver and its locking strategy.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectPgx    Dialect = "pgx"
)

// unlockTimeout bounds the advisory unlock issued after a run.
const unlockTimeout = 5 * time.Second

// Bind parameter limits per statement.
const (
	sqliteMaxParams   = 999
	postgresMaxParams = 65535
)

// Store is a store.Store backed by a *sqlx.DB.
type Store struct {
	db        *sqlx.DB
	dialect   Dialect
	batchSize int
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Migrator = (*Store)(nil)
)

// Open connects to dsn with the given dialect and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string, batchSize int) (*Store, error) {
	switch dialect {
	case DialectSQLite, DialectPgx:
	default:
		return nil, fmt.Errorf("unknown sql dialect %q", dialect)
	}

	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	return New(db, dialect, batchSize), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB, dialect Dialect, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = store.DefaultBatchSize
	}
	return &Store{db: db, dialect: dialect, batchSize: batchSize}
}

// DB returns the underlying pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range store.SchemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, id string) (bool, error) {
	var n int
	q := s.db.Rebind(`SELECT COUNT(*) FROM cp_collections WHERE collection_id = ?`)
	if err := s.db.GetContext(ctx, &n, q, id); err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return n > 0, nil
}

func (s *Store) RegisterCollection(ctx context.Context, id string) (store.Collection, error) {
	if strings.TrimSpace(id) == "" {
		return store.Collection{}, store.ErrEmptyCollectionID
	}

	exists, err := s.CollectionExists(ctx, id)
	if err != nil {
		return store.Collection{}, err
	}
	if exists {
		return store.Collection{}, fmt.Errorf("%w: %s", store.ErrCollectionExists, id)
	}

	c := store.Collection{ID: id, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
	q := s.db.Rebind(`INSERT INTO cp_collections (collection_id, created_at) VALUES (?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.CreatedAt); err != nil {
		return store.Collection{}, fmt.Errorf("register collection: %w", err)
	}
	return c, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]store.Collection, error) {
	var out []store.Collection
	err := s.db.SelectContext(ctx, &out,
		`SELECT collection_id, created_at FROM cp_collections ORDER BY collection_id`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return out, nil
}

// begin opens the replace transaction. For PostgreSQL a session advisory
// lock on the collection is taken on a dedicated connection first, so the
// serializable snapshot is only taken once the previous run has finished.
func (s *Store) begin(ctx context.Context, collectionID string) (*sqlx.Tx, func(), error) {
	if s.dialect != DialectPgx {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("begin transaction: %w", err)
		}
		return tx, func() {}, nil
	}

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, collectionID); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("lock collection: %w", err)
	}

	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		if _, err := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, collectionID); err != nil {
			// Drop the connection so the server releases the lock with the session.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		conn.Close()
	}

	tx, err := conn.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, release, nil
}

// Replace swaps the collection's rows inside one transaction.
func (s *Store) Replace(ctx context.Context, collectionID string, rows store.RowSet) (counts store.TableCounts, err error) {
	rows = rows.WithCollection(collectionID)

	tx, release, err := s.begin(ctx, collectionID)
	if err != nil {
		return counts, err
	}
	defer release()
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	for _, t := range store.AllTables {
		q := tx.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE collection_id = ?`, t.SQLName()))
		if _, err = tx.ExecContext(ctx, q, collectionID); err != nil {
			return store.TableCounts{}, fmt.Errorf("delete %s: %w", t, err)
		}
	}

	for _, t := range store.AllTables {
		var n int
		n, err = s.insertTable(ctx, tx, t, rows.Values(t))
		if err != nil {
			return store.TableCounts{}, err
		}
		counts.Set(t, n)
	}

	if err = tx.Commit(); err != nil {
		return store.TableCounts{}, fmt.Errorf("commit: %w", err)
	}
	return counts, nil
}

func (s *Store) insertTable(ctx context.Context, tx *sqlx.Tx, t store.Table, values [][]any) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}

	cols := store.Columns(t)
	size := s.chunkSize(len(cols))
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	written := 0
	for _, chunk := range store.Chunk(values, size) {
		var b strings.Builder
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", t.SQLName(), strings.Join(cols, ", "))

		args := make([]any, 0, len(chunk)*len(cols))
		for i, row := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(placeholder)
			args = append(args, row...)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(b.String()), args...)
		if err != nil {
			return written, fmt.Errorf("insert %s: %w", t, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return written, fmt.Errorf("insert %s: rows affected: %w", t, err)
		}
		if affected == 0 {
			return written, fmt.Errorf("insert %s: %w", t, store.ErrNoRowsAffected)
		}
		if int(affected) != len(chunk) {
			return written, fmt.Errorf("insert %s: wrote %d of %d rows", t, affected, len(chunk))
		}
		written += len(chunk)
	}
	return written, nil
}

// chunkSize caps the configured batch size by the driver's bind limit.
func (s *Store) chunkSize(cols int) int {
	limit := sqliteMaxParams
	if s.dialect == DialectPgx {
		limit = postgresMaxParams
	}
	size := s.batchSize
	if size*cols > limit {
		size = limit / cols
	}
	return size
}

func (s *Store) Count(ctx context.Context, table store.Table, collectionID string) (int, error) {
	var n int
	q := s.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE collection_id = ?`, table.SQLName()))
	if err := s.db.GetContext(ctx, &n, q, collectionID); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) Snapshot(ctx context.Context, collectionID string) (store.RowSet, error) {
	var rs store.RowSet
	targets := []struct {
		table store.Table
		dest  any
	}{
		{store.TableProcesses, &rs.Processes},
		{store.TableDetectors, &rs.Detectors},
		{store.TableControlItems, &rs.ControlItems},
		{store.TableControlMethods, &rs.ControlMethods},
		{store.TableReactionPlans, &rs.ReactionPlans},
	}

	for _, tgt := range targets {
		q := s.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE collection_id = ? ORDER BY sort_order`,
			strings.Join(store.Columns(tgt.table), ", "), tgt.table.SQLName()))
		if err := s.db.SelectContext(ctx, tgt.dest, q, collectionID); err != nil {
			return store.RowSet{}, fmt.Errorf("snapshot %s: %w", tgt.table, err)
		}
	}
	return rs, nil
}
