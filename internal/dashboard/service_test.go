package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/cache"
	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/upload"
	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
	"github.com/couchcryptid/xanthos-vis-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	runoffFile = "q_km3peryear_test.csv"
	runoffCSV  = "id,2000,2001,2002\n1,100,1,2\n2,200,3,4\n3,5,5,5\n4,5,5,5\n99,1000,1000,1000\n"
)

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	cells := []domain.GridCell{
		{GridID: 1, BasinID: 10, BasinName: "North", CountryID: 1, CountryName: "Alpha", AreaHectares: 100, Longitude: 10, Latitude: 10},
		{GridID: 2, BasinID: 10, BasinName: "North", CountryID: 2, CountryName: "Beta", AreaHectares: 100, Longitude: 12, Latitude: 14},
		{GridID: 3, BasinID: 20, BasinName: "South", CountryID: 2, CountryName: "Beta", AreaHectares: 100, Longitude: -20, Latitude: -5},
		{GridID: 4, BasinID: 20, BasinName: "South", CountryID: 2, CountryName: "Beta", AreaHectares: 100, Longitude: -22, Latitude: -7},
	}
	cat, err := domain.NewCatalog(cells, domain.FeatureCollection{}, domain.FeatureCollection{})
	require.NoError(t, err)
	return cat
}

type stubGeocoder struct{ calls int }

func (g *stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.Place, error) {
	g.calls++
	return domain.Place{Name: "Somewhere"}, nil
}

type fixture struct {
	svc     *Service
	metrics *observability.Metrics
	geo     *stubGeocoder
	id      string
}

func newFixture(t *testing.T, rowLimit int) *fixture {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	geo := &stubGeocoder{}
	store := cache.NewDatasetStore(4, time.Hour, nil, metrics)
	svc := NewService(testCatalog(t), store, Options{Geocoder: geo, GriddedRowLimit: rowLimit}, metrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	info, err := svc.Upload(context.Background(), runoffFile, []byte(runoffCSV))
	require.NoError(t, err)
	return &fixture{svc: svc, metrics: metrics, geo: geo, id: info.ID}
}

func TestService_Upload(t *testing.T) {
	f := newFixture(t, 0)

	info, err := f.svc.Describe(context.Background(), f.id)
	require.NoError(t, err)
	assert.Equal(t, runoffFile, info.Filename)
	assert.Equal(t, domain.VariableRunoff, info.Variable)
	assert.Equal(t, domain.UnitKm3, info.Unit)
	assert.Equal(t, []domain.Unit{domain.UnitKm3, domain.UnitMM}, info.UnitOptions)
	assert.Len(t, info.Periods, 3)
	assert.Nil(t, info.Months)
	assert.Equal(t, 5, info.Rows)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Uploads.WithLabelValues("success")))
}

func TestService_UploadMalformed(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.svc.Upload(context.Background(), runoffFile, []byte("id,2000\n1,abc\n"))
	assert.ErrorIs(t, err, upload.ErrMalformed)
	assert.True(t, IsUserError(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Uploads.WithLabelValues("malformed")))
}

func TestService_ThroughPeriods(t *testing.T) {
	f := newFixture(t, 0)

	opts, err := f.svc.ThroughPeriods(context.Background(), f.id, "2001")
	require.NoError(t, err)
	assert.Equal(t, []domain.PeriodOption{{Label: "2001", Value: "2001"}, {Label: "2002", Value: "2002"}}, opts)

	_, err = f.svc.ThroughPeriods(context.Background(), f.id, "200101")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_Aggregate(t *testing.T) {
	f := newFixture(t, 0)

	table, err := f.svc.Aggregate(context.Background(), f.id, Query{Area: "basin", Statistic: "mean", Start: "2000", End: "2000"})
	require.NoError(t, err)
	require.Equal(t, []string{"10", "20"}, table.Keys())
	assert.Equal(t, 300.0, table.Rows[0].Value)
	assert.Equal(t, 10.0, table.Rows[1].Value)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Aggregations.WithLabelValues("basin", "success")))
}

func TestService_AggregateDefaults(t *testing.T) {
	f := newFixture(t, 0)

	table, err := f.svc.Aggregate(context.Background(), f.id, Query{})
	require.NoError(t, err)
	assert.Equal(t, domain.AreaBasin, table.AreaType)
	assert.Equal(t, domain.StatMean, table.Statistic)
	assert.Equal(t, []string{"2000", "2001", "2002"}, table.Periods)
}

func TestService_AggregateErrors(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	tests := []struct {
		name  string
		id    string
		query Query
		is    error
	}{
		{"unknown dataset", "7d444840-9dc0-11d1-b245-5ffdce74fad2", Query{}, domain.ErrDatasetNotFound},
		{"start after end", "", Query{Start: "2002", End: "2000"}, domain.ErrInvalidInput},
		{"bad statistic", "", Query{Statistic: "mode"}, domain.ErrInvalidInput},
		{"bad area", "", Query{Area: "continent"}, domain.ErrInvalidInput},
		{"bad unit", "", Query{Units: "litres"}, domain.ErrInvalidInput},
		{"empty range", "", Query{Start: "1990", End: "1995"}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.id
			if id == "" {
				id = f.id
			}
			table, err := f.svc.Aggregate(ctx, id, tt.query)
			assert.ErrorIs(t, err, tt.is)
			assert.Nil(t, table)
			assert.True(t, IsUserError(err))
		})
	}
}

func TestService_GriddedGuard(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.svc.Aggregate(context.Background(), f.id, Query{Area: "cell"})
	assert.ErrorIs(t, err, domain.ErrSelectionRequired)

	res, err := f.svc.Select(context.Background(), f.id, SelectRequest{
		View:      "gridded",
		Selection: domain.Click{Of: domain.AreaBasin, ID: "20"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ViewGridded, res.View)
	assert.Equal(t, []string{"3", "4"}, res.Table.Keys())
}

func TestService_Hydrograph(t *testing.T) {
	f := newFixture(t, 0)

	s, err := f.svc.Hydrograph(context.Background(), f.id, "10", Query{Area: "basin"})
	require.NoError(t, err)
	require.Len(t, s.Points, 3)
	assert.Equal(t, 300.0, s.Points[0].Value)
	assert.Equal(t, 4.0, s.Points[1].Value)

	_, err = f.svc.Hydrograph(context.Background(), f.id, "", Query{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Hydrograph(context.Background(), f.id, "77", Query{})
	assert.ErrorIs(t, err, domain.ErrAreaNotFound)
}

func TestService_SelectAreaView(t *testing.T) {
	f := newFixture(t, 0)

	res, err := f.svc.Select(context.Background(), f.id, SelectRequest{
		Query:     Query{Area: "country", Start: "2000", End: "2000"},
		View:      "area",
		Selection: domain.BoxSelect{Of: domain.AreaCountry, Members: []string{"Alpha"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ViewArea, res.View)
	assert.Equal(t, []string{"Alpha"}, res.Table.Keys())
	assert.Equal(t, 100.0, res.Table.Rows[0].Value)
	assert.Equal(t, "Somewhere", res.Hint.Place)
	assert.Equal(t, 1, f.geo.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Selections.WithLabelValues("box")))
}

func TestService_SelectReset(t *testing.T) {
	f := newFixture(t, 0)

	res, err := f.svc.Select(context.Background(), f.id, SelectRequest{
		View:      "gridded",
		Selection: domain.Click{Of: domain.AreaCell, ID: "1"},
		Reset:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ViewArea, res.View)
	assert.Equal(t, []string{"10", "20"}, res.Table.Keys())
	assert.Equal(t, domain.DefaultViewHint(), res.Hint)
	assert.Equal(t, 0, f.geo.calls)
}

func TestService_CheckReadiness(t *testing.T) {
	f := newFixture(t, 0)
	assert.NoError(t, f.svc.CheckReadiness(context.Background()))

	empty := &Service{}
	assert.Error(t, empty.CheckReadiness(context.Background()))
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(&domain.UnsupportedUnitConversionError{From: domain.UnitM3PerSec, To: domain.UnitKm3}))
	assert.False(t, IsUserError(errors.New("disk on fire")))
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t, 0)

	require.NoError(t, f.svc.Delete(context.Background(), f.id))
	_, err := f.svc.Describe(context.Background(), f.id)
	assert.ErrorIs(t, err, domain.ErrDatasetNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), f.id), domain.ErrDatasetNotFound)
}
