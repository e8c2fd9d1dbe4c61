package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/couchcryptid/xanthos-vis-service/internal/adapter/http"
	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/cache"
	"github.com/couchcryptid/xanthos-vis-service/internal/dashboard"
	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
	"github.com/couchcryptid/xanthos-vis-service/internal/observability"
)

const (
	runoffFile = "q_km3peryear_test.csv"
	runoffCSV  = "id,2000,2001\n1,100,1\n2,200,3\n3,5,5\n4,5,5\n"
)

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	cells := []domain.GridCell{
		{GridID: 1, BasinID: 10, BasinName: "North", CountryID: 1, CountryName: "Alpha", AreaHectares: 100, Longitude: 10, Latitude: 10},
		{GridID: 2, BasinID: 10, BasinName: "North", CountryID: 2, CountryName: "Beta", AreaHectares: 100, Longitude: 12, Latitude: 14},
		{GridID: 3, BasinID: 20, BasinName: "South", CountryID: 2, CountryName: "Beta", AreaHectares: 100, Longitude: -20, Latitude: -5},
		{GridID: 4, BasinID: 20, BasinName: "South", CountryID: 2, CountryName: "Beta", AreaHectares: 100, Longitude: -22, Latitude: -7},
	}
	basins := domain.FeatureCollection{Features: []domain.Feature{
		{Properties: map[string]any{"basin_id": 10.0, "basin_name": "North"}},
		{Properties: map[string]any{"basin_id": 20.0, "basin_name": "South"}},
	}}
	countries := domain.FeatureCollection{Features: []domain.Feature{
		{Properties: map[string]any{"name": "Alpha"}},
		{Properties: map[string]any{"name": "Beta"}},
	}}
	cat, err := domain.NewCatalog(cells, basins, countries)
	require.NoError(t, err)
	return cat
}

type testAPI struct {
	router  *gin.Engine
	metrics *observability.Metrics
}

func newTestAPI(t *testing.T, cfg httpapi.RouterConfig) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	store := cache.NewDatasetStore(4, time.Hour, nil, metrics)
	svc := dashboard.NewService(testCatalog(t), store, dashboard.Options{GriddedRowLimit: 2}, metrics, logger)
	return &testAPI{router: httpapi.SetupRouter(svc, cfg, metrics, logger), metrics: metrics}
}

func (a *testAPI) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) upload(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets?filename="+runoffFile, strings.NewReader(runoffCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := a.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info dashboard.DatasetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return info.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestUpload_RawBody(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})
	id := api.upload(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, runoffFile, body["filename"])
	assert.Equal(t, "Runoff", body["variable"])
	assert.Equal(t, "km³", body["unit"])
	assert.EqualValues(t, 4, body["rows"])
}

func TestUpload_Multipart(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", runoffFile)
	require.NoError(t, err)
	_, err = part.Write([]byte(runoffCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := api.do(t, req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, runoffFile, decodeBody(t, rec)["filename"])
}

func TestUpload_DataURL(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})

	payload, err := json.Marshal(map[string]string{
		"filename": runoffFile,
		"contents": "data:text/csv;base64,aWQsMjAwMAoxLDEwMAo=",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := api.do(t, req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decodeBody(t, rec)["rows"])
}

func TestUpload_Errors(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{MaxUploadBytes: 64})

	t.Run("missing filename", func(t *testing.T) {
		rec := api.do(t, httptest.NewRequest(http.MethodPost, "/v1/datasets", strings.NewReader(runoffCSV)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/datasets?filename=x.csv", strings.NewReader("not,a\ncsv"))
		rec := api.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "not a valid file")
	})

	t.Run("too large", func(t *testing.T) {
		big := "id,2000\n" + strings.Repeat("1,1\n", 100)
		req := httptest.NewRequest(http.MethodPost, "/v1/datasets?filename=x.csv", strings.NewReader(big))
		rec := api.do(t, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, float64(1), testutil.ToFloat64(api.metrics.Uploads.WithLabelValues("too_large")))
	})
}

func TestGetDataset_NotFound(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/v1/datasets/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetThroughPeriods(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})
	id := api.upload(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id+"/through-periods?start=2001", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Periods []domain.PeriodOption `json:"periods"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []domain.PeriodOption{{Label: "2001", Value: "2001"}}, body.Periods)
}

func TestGetAggregate(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})
	id := api.upload(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id+"/aggregate?area=basin&statistic=mean&start=2000&end=2000", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var table domain.AggregateTable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "10", table.Rows[0].Key)
	assert.Equal(t, 300.0, table.Rows[0].Value)
	assert.Equal(t, 10.0, table.Rows[1].Value)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		api.metrics.APIRequests.WithLabelValues(http.MethodGet, "/v1/datasets/:id/aggregate", "200")))
}

func TestGetAggregate_ErrorStatus(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})
	id := api.upload(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"start after end", "start=2001&end=2000", http.StatusBadRequest},
		{"unknown statistic", "statistic=mode", http.StatusBadRequest},
		{"unsupported conversion", "units=m3/s", http.StatusUnprocessableEntity},
		{"gridded needs selection", "area=cell", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id+"/aggregate?"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestGetHydrograph(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})
	id := api.upload(t)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id+"/hydrograph?area=country&id=Beta", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var series domain.Series
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Len(t, series.Points, 2)
	assert.Equal(t, 210.0, series.Points[0].Value)
	assert.Equal(t, 13.0, series.Points[1].Value)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id+"/hydrograph?area=country&id=Gamma", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostSelection(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})
	id := api.upload(t)

	body := `{
		"view": "gridded",
		"area": "basin",
		"start": "2000",
		"end": "2000",
		"event": {
			"points": [{"customdata": {"cell_id": 3}}, {"customdata": {"cell_id": 4}}],
			"range": {"mapbox": [[-25, 0], [-15, -10]]}
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/"+id+"/selection", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := api.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		View  string                `json:"view"`
		Table domain.AggregateTable `json:"table"`
		Hint  domain.ViewHint       `json:"hint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "gridded", res.View)
	assert.Equal(t, []string{"3", "4"}, res.Table.Keys())
	require.NotNil(t, res.Hint.Center)
	assert.Equal(t, -21.0, res.Hint.Center.Lon)
	assert.Equal(t, float64(domain.SelectionZoom), res.Hint.Zoom)
}

func TestPostSelection_GriddedWithoutSelection(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})
	id := api.upload(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/"+id+"/selection", strings.NewReader(`{"view": "gridded"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := api.do(t, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReferenceLayers(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/v1/reference/basins", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fc domain.FeatureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "10", fc.Features[0].ID)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/v1/reference/countries", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "Beta", fc.Features[1].ID)
}

func TestGetMapConfig(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{MapStyle: "carto-positron"})
	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/v1/map/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "carto-positron", body["style"])
	assert.NotContains(t, body, "access_token")

	api = newTestAPI(t, httpapi.RouterConfig{MapStyle: "light", MapboxToken: "pk.test"})
	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/v1/map/config", nil))
	assert.Equal(t, "pk.test", decodeBody(t, rec)["access_token"])
}

func TestCORS(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{AllowedOrigins: []string{"https://xanthos.example.org"}})

	req := httptest.NewRequest(http.MethodGet, "/v1/map/config", nil)
	req.Header.Set("Origin", "https://xanthos.example.org")
	rec := api.do(t, req)
	assert.Equal(t, "https://xanthos.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/map/config", nil)
	req.Header.Set("Origin", "https://elsewhere.example.org")
	rec = api.do(t, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteDataset(t *testing.T) {
	api := newTestAPI(t, httpapi.RouterConfig{})
	id := api.upload(t)

	rec := api.do(t, httptest.NewRequest(http.MethodDelete, "/v1/datasets/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
