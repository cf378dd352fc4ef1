package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelac/retrace/internal/cache"
	"github.com/avelac/retrace/internal/memos"
	"github.com/avelac/retrace/internal/resilience"
	"github.com/avelac/retrace/internal/router"
)

// fakeAPI implements router.EntityAPI and records how it was used.
type fakeAPI struct {
	healthy  bool
	entities []memos.Entity
	entity   *memos.Entity
	err      error
	calls    int
}

func (f *fakeAPI) IsHealthy(ctx context.Context) bool { return f.healthy }

func (f *fakeAPI) SearchEntities(ctx context.Context, term string, limit int) ([]memos.Entity, error) {
	f.calls++
	return f.entities, f.err
}

func (f *fakeAPI) GetEntities(ctx context.Context, limit int) ([]memos.Entity, error) {
	f.calls++
	return f.entities, f.err
}

func (f *fakeAPI) GetEntity(ctx context.Context, id int64) (*memos.Entity, error) {
	f.calls++
	return f.entity, f.err
}

type testStack struct {
	base    *Base
	db      *sql.DB
	mock    sqlmock.Sqlmock
	api     *fakeAPI
	breaker *resilience.Breaker
	cache   *cache.Coordinator
}

func setupStack(t *testing.T, api *fakeAPI) *testStack {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c, err := cache.New("")
	require.NoError(t, err)

	breaker := resilience.NewBreaker(3, time.Minute)
	var rt *router.Router
	if api != nil {
		rt = router.New(api, breaker)
	}

	return &testStack{
		base:    NewBase(db, c, rt, breaker),
		db:      db,
		mock:    mock,
		api:     api,
		breaker: breaker,
		cache:   c,
	}
}

func TestExecuteServesFromCacheFirst(t *testing.T) {
	s := setupStack(t, nil)
	ctx := context.Background()
	query := "SELECT id FROM entities"

	s.mock.ExpectQuery("SELECT id FROM entities").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	first := s.base.execute(ctx, query, nil, time.Minute)
	assert.Equal(t, 1, first.Len())

	// Second call must be served from cache: no further expectation set,
	// and the result still comes back intact.
	second := s.base.execute(ctx, query, nil, time.Minute)
	assert.Equal(t, first, second)
	assert.NoError(t, s.mock.ExpectationsWereMet())

	stats := s.base.PerformanceStats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
}

func TestExecuteRoutesToAPIWithoutTouchingSQL(t *testing.T) {
	api := &fakeAPI{
		healthy:  true,
		entities: []memos.Entity{{ID: 1, Filename: "a.png"}, {ID: 2, Filename: "b.png"}},
	}
	s := setupStack(t, api)

	// No sqlmock expectations: any SQL would show up as an unexpected
	// call and an empty result. The entity column set proves the API
	// strategy served this.
	tbl := s.base.execute(context.Background(),
		"SELECT * FROM entities ORDER BY created_at DESC LIMIT ?", []any{2}, time.Minute)

	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 2, tbl.Len())
	assert.Contains(t, tbl.Columns, "file_type_group")
	assert.NoError(t, s.mock.ExpectationsWereMet())

	stats := s.base.PerformanceStats()
	assert.Equal(t, int64(1), stats.APIRequests)
	assert.Equal(t, int64(0), stats.DBQueries)
}

func TestExecuteFallsBackToSQLOnAPIFailure(t *testing.T) {
	api := &fakeAPI{healthy: true, err: errors.New("upstream down")}
	s := setupStack(t, api)

	s.mock.ExpectQuery("SELECT \\* FROM entities").
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename"}).AddRow(int64(7), "x.png"))

	tbl := s.base.execute(context.Background(),
		"SELECT * FROM entities ORDER BY created_at DESC LIMIT ?", []any{10}, time.Minute)

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, "x.png", tbl.Rows[0][1])
	assert.NoError(t, s.mock.ExpectationsWereMet())

	stats := s.base.PerformanceStats()
	assert.Equal(t, int64(1), stats.APIRequests)
	assert.Equal(t, int64(1), stats.APIFailures)
	assert.Equal(t, int64(1), stats.DBQueries)
}

func TestExecuteNeverThrows(t *testing.T) {
	s := setupStack(t, &fakeAPI{healthy: false})

	s.mock.ExpectQuery(".*").WillReturnError(errors.New("connection refused"))

	tbl := s.base.execute(context.Background(),
		"SELECT * FROM entities LIMIT ?", []any{10}, time.Minute)

	assert.True(t, tbl.IsEmpty())
	assert.NoError(t, s.mock.ExpectationsWereMet())

	stats := s.base.PerformanceStats()
	assert.Equal(t, int64(1), stats.DBQueries)
	assert.Equal(t, int64(1), stats.DBFailures)
}

func TestExecuteFailureIsNotCached(t *testing.T) {
	s := setupStack(t, nil)
	query := "SELECT id FROM entities"

	s.mock.ExpectQuery("SELECT id FROM entities").
		WillReturnError(errors.New("locked"))
	s.mock.ExpectQuery("SELECT id FROM entities").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	first := s.base.execute(context.Background(), query, nil, time.Minute)
	assert.True(t, first.IsEmpty())

	// The empty failure result must not have been cached.
	second := s.base.execute(context.Background(), query, nil, time.Minute)
	assert.Equal(t, 1, second.Len())
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestExecuteHonorsDeadline(t *testing.T) {
	s := setupStack(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tbl := s.base.execute(ctx, "SELECT id FROM entities", nil, time.Minute)
	assert.True(t, tbl.IsEmpty())

	// The SQL tier was never reached.
	assert.NoError(t, s.mock.ExpectationsWereMet())
	stats := s.base.PerformanceStats()
	assert.Equal(t, int64(0), stats.DBQueries)
}

func TestQueryDBConvertsBytes(t *testing.T) {
	s := setupStack(t, nil)

	s.mock.ExpectQuery("SELECT filepath FROM entities").
		WillReturnRows(sqlmock.NewRows([]string{"filepath"}).AddRow([]byte("/shots/a.png")))

	tbl := s.base.execute(context.Background(), "SELECT filepath FROM entities", nil, time.Minute)

	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "/shots/a.png", tbl.Rows[0][0])
}

func TestInvalidateCache(t *testing.T) {
	s := setupStack(t, nil)
	ctx := context.Background()

	s.mock.ExpectQuery("SELECT id FROM entities").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	s.base.execute(ctx, "SELECT id FROM entities", nil, time.Minute)

	removed := s.base.InvalidateCache(ctx, "")
	assert.Equal(t, 1, removed)
}

func TestCircuitStatusReflectsBreaker(t *testing.T) {
	s := setupStack(t, &fakeAPI{healthy: true})

	for i := 0; i < 3; i++ {
		s.breaker.RecordFailure("search", "boom")
	}

	status := s.base.CircuitStatus()
	assert.Equal(t, []string{"search"}, status.OpenCircuits)
	assert.Equal(t, 3, status.FailureCounts["search"])
}

func TestJoinsMetadata(t *testing.T) {
	assert.True(t, joinsMetadata("SELECT e.id FROM entities e JOIN metadata_entries m ON m.entity_id = e.id"))
	assert.False(t, joinsMetadata("SELECT id FROM entities"))
}
