package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/stellargo/starcrawl/internal/crawler"
)

func testRecords(now time.Time) []crawler.Record {
	return []crawler.Record{
		{ID: 1, FullName: "octo/alpha", StarCount: 5, LastCrawledAt: now},
		{ID: 2, FullName: "octo/beta", StarCount: 9, LastCrawledAt: now},
	}
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()
	_, err := NewWithPool(nil)
	require.Error(t, err)
}

func TestSetupExecutesSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS repositories").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Setup(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchWritesAllRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	recs := testRecords(now)

	mock.ExpectExec("INSERT INTO repositories").
		WithArgs(
			recs[0].ID, recs[0].FullName, recs[0].StarCount, recs[0].LastCrawledAt,
			recs[1].ID, recs[1].FullName, recs[1].StarCount, recs[1].LastCrawledAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	rows, err := st.UpsertBatch(context.Background(), recs)
	require.NoError(t, err)
	require.Equal(t, int64(2), rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewWithPool(mock)
	require.NoError(t, err)

	rows, err := st.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchPropagatesFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO repositories").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("connection reset"))

	_, err = st.UpsertBatch(context.Background(), testRecords(time.Now()))
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllOrdersByStars(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT id, full_name, star_count").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "full_name", "star_count", "updated_at", "last_crawled_at"}).
			AddRow(int64(2), "octo/beta", 9, now, now).
			AddRow(int64(1), "octo/alpha", 5, now, now))

	records, err := st.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "octo/beta", records[0].FullName)
	require.Equal(t, 9, records[0].StarCount)
	require.Equal(t, "octo/alpha", records[1].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}
