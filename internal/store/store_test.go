package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodata/internal/geocode"
	"geodata/internal/geom"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return AttachDB(db), mock
}

func TestStore_GetHit(t *testing.T) {
	s, mock := newMock(t)
	key, err := geocode.NewFreeText("Paris")
	require.NoError(t, err)
	g := geom.PointGeometry(2.35, 48.85)
	raw, err := g.MarshalJSON()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT lon, lat, geometry FROM _geocode_results WHERE cache_key=$1")).
		WithArgs("q:Paris").
		WillReturnRows(sqlmock.NewRows([]string{"lon", "lat", "geometry"}).AddRow(2.35, 48.85, raw))

	r, ok, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.35, r.Lon)
	assert.True(t, g.Equal(r.Geometry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetMiss(t *testing.T) {
	s, mock := newMock(t)
	key, _ := geocode.NewFreeText("Nowhere")
	mock.ExpectQuery("SELECT lon, lat, geometry").WillReturnRows(sqlmock.NewRows([]string{"lon", "lat", "geometry"}))

	_, ok, err := s.Get(context.Background(), key)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Set(t *testing.T) {
	s, mock := newMock(t)
	key, _ := geocode.NewStructured("France", "", "Paris", "", "")
	mock.ExpectExec("INSERT INTO _geocode_results").
		WithArgs(key.CacheKey(), "France, Paris", 2.35, 48.85, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Set(context.Background(), key, geocode.Result{Lon: 2.35, Lat: 48.85, Geometry: geom.PointGeometry(2.35, 48.85)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Stats(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO _geocode_stats_daily").WithArgs(5, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"a", "b"}).AddRow(12, 3))
	mock.ExpectQuery("SELECT lookups FROM _geocode_stats_daily").WillReturnRows(sqlmock.NewRows([]string{"lookups"}).AddRow(5))

	require.NoError(t, s.IncrStats(context.Background(), 5, 2))
	tot, err := s.GetTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Totals{Total: 12, Today: 5, Unresolved: 3}, tot)
	assert.NoError(t, mock.ExpectationsWereMet())
}
