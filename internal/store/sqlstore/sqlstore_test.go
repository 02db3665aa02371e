package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
)

func openSQLite(t *testing.T, batchSize int) *Store {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", regexp.MustCompile(`\W`).ReplaceAllString(t.Name(), "_"))
	s, err := Open(ctx, DialectSQLite, dsn, batchSize)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func sampleRows() store.RowSet {
	return store.RowSet{
		Processes: []store.ProcessRow{
			{ProcessNo: "10", ProcessName: "Cutting", SortOrder: 0},
			{ProcessNo: "20", ProcessName: "Welding", Level: "L2", ProcessDesc: "a\nb", SortOrder: 1},
		},
		Detectors: []store.DetectorRow{
			{ProcessNo: "10", Device: "Saw", SortOrder: 0},
			{ProcessNo: "20", ErrorProofing: "Sensor", SortOrder: 1},
			{ProcessNo: "20", AutoInspection: "Camera", SortOrder: 2},
		},
		ControlItems:   []store.ControlItemRow{{ProcessNo: "10", ProductChar: "Length", Specification: "100±1", SortOrder: 0}},
		ControlMethods: []store.ControlMethodRow{{ProcessNo: "10", SampleSize: "5", Frequency: "1/shift", SortOrder: 0}},
		ReactionPlans:  []store.ReactionPlanRow{{ProcessNo: "20", ReactionPlan: "Stop line", Owner: "QA", SortOrder: 0}},
	}
}

// ============================================================================
// SQLite Tests
// ============================================================================

func TestSQLite_ReplaceAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, 2)

	_, err := s.RegisterCollection(ctx, "CP-1")
	require.NoError(t, err)

	counts, err := s.Replace(ctx, "CP-1", sampleRows())
	require.NoError(t, err)
	assert.Equal(t, store.TableCounts{Processes: 2, Detectors: 3, ControlItems: 1, ControlMethods: 1, ReactionPlans: 1}, counts)

	for _, table := range store.AllTables {
		n, err := s.Count(ctx, table, "CP-1")
		require.NoError(t, err)
		assert.Equal(t, counts.Get(table), n, table)
	}

	snap, err := s.Snapshot(ctx, "CP-1")
	require.NoError(t, err)
	assert.Equal(t, sampleRows().WithCollection("CP-1"), snap)
}

func TestSQLite_ReplaceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, 0)

	_, err := s.RegisterCollection(ctx, "CP-1")
	require.NoError(t, err)

	first, err := s.Replace(ctx, "CP-1", sampleRows())
	require.NoError(t, err)
	second, err := s.Replace(ctx, "CP-1", sampleRows())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n, err := s.Count(ctx, store.TableDetectors, "CP-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLite_ReplaceScopedToCollection(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, 0)

	for _, id := range []string{"CP-1", "CP-2"} {
		_, err := s.RegisterCollection(ctx, id)
		require.NoError(t, err)
		_, err = s.Replace(ctx, id, sampleRows())
		require.NoError(t, err)
	}

	_, err := s.Replace(ctx, "CP-1", store.RowSet{Processes: []store.ProcessRow{{ProcessNo: "99"}}})
	require.NoError(t, err)

	n, err := s.Count(ctx, store.TableProcesses, "CP-2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_FailedReplaceRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, 0)

	_, err := s.RegisterCollection(ctx, "CP-1")
	require.NoError(t, err)
	_, err = s.Replace(ctx, "CP-1", sampleRows())
	require.NoError(t, err)

	// Duplicate process numbers violate the primary key after the deletes ran.
	bad := store.RowSet{Processes: []store.ProcessRow{{ProcessNo: "10"}, {ProcessNo: "10", SortOrder: 1}}}
	_, err = s.Replace(ctx, "CP-1", bad)
	require.Error(t, err)

	snap, err := s.Snapshot(ctx, "CP-1")
	require.NoError(t, err)
	assert.Equal(t, sampleRows().Counts(), snap.Counts())
}

func TestSQLite_LargeBatchIsChunked(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, 10_000)

	_, err := s.RegisterCollection(ctx, "CP-1")
	require.NoError(t, err)

	var rows store.RowSet
	for i := 0; i < 600; i++ {
		rows.Processes = append(rows.Processes, store.ProcessRow{ProcessNo: fmt.Sprintf("%d", i), SortOrder: i})
	}

	counts, err := s.Replace(ctx, "CP-1", rows)
	require.NoError(t, err)
	assert.Equal(t, 600, counts.Processes)
}

func TestSQLite_Collections(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, 0)

	_, err := s.RegisterCollection(ctx, "b")
	require.NoError(t, err)
	_, err = s.RegisterCollection(ctx, "a")
	require.NoError(t, err)

	_, err = s.RegisterCollection(ctx, "a")
	assert.ErrorIs(t, err, store.ErrCollectionExists)
	_, err = s.RegisterCollection(ctx, "")
	assert.ErrorIs(t, err, store.ErrEmptyCollectionID)

	list, err := s.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	ok, err := s.CollectionExists(ctx, "B")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChunkSize(t *testing.T) {
	s := New(nil, DialectSQLite, 500)
	assert.Equal(t, 142, s.chunkSize(7))
	assert.Equal(t, 166, s.chunkSize(6))

	s = New(nil, DialectPgx, 500)
	assert.Equal(t, 500, s.chunkSize(7))
}

// ============================================================================
// Failure injection (sqlmock)
// ============================================================================

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(sqlx.NewDb(db, "sqlite"), DialectSQLite, 0), mock
}

func expectDeletes(mock sqlmock.Sqlmock) {
	for _, table := range store.AllTables {
		mock.ExpectExec("DELETE FROM " + table.SQLName()).
			WithArgs("CP-1").
			WillReturnResult(sqlmock.NewResult(0, 3))
	}
}

func TestReplace_ZeroAffectedRollsBack(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	expectDeletes(mock)
	mock.ExpectExec("INSERT INTO cp_processes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.Replace(context.Background(), "CP-1", sampleRows())
	assert.ErrorIs(t, err, store.ErrNoRowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_PartialWriteRollsBack(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	expectDeletes(mock)
	mock.ExpectExec("INSERT INTO cp_processes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	_, err := s.Replace(context.Background(), "CP-1", sampleRows())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrote 1 of 2 rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_InsertErrorRollsBack(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	expectDeletes(mock)
	mock.ExpectExec("INSERT INTO cp_processes").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO cp_detectors").WillReturnError(boom)
	mock.ExpectRollback()

	_, err := s.Replace(context.Background(), "CP-1", sampleRows())
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_CommitError(t *testing.T) {
	s, mock := newMock(t)
	rows := store.RowSet{Processes: []store.ProcessRow{{ProcessNo: "10"}}}

	mock.ExpectBegin()
	expectDeletes(mock)
	mock.ExpectExec("INSERT INTO cp_processes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	_, err := s.Replace(context.Background(), "CP-1", rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}
