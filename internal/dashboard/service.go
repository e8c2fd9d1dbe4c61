// Package dashboard is the use-case layer behind the HTTP API, the export
// pipeline and the aggregate CLI. It resolves user controls against a stored
// dataset and runs the domain aggregation and selection functions.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/upload"
	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
	"github.com/couchcryptid/xanthos-vis-service/internal/observability"
)

// DatasetStore keeps decoded uploads between interactions.
type DatasetStore interface {
	Put(ds *domain.Dataset) string
	Get(id string) (*domain.Dataset, error)
	Delete(id string) bool
}

// Service answers dashboard requests against one reference catalog.
type Service struct {
	catalog         *domain.Catalog
	store           DatasetStore
	geocoder        domain.Geocoder
	griddedRowLimit int
	metrics         *observability.Metrics
	logger          *slog.Logger
}

// Options configures optional Service behaviour.
type Options struct {
	// Geocoder labels selection view hints. Nil disables labelling.
	Geocoder domain.Geocoder
	// GriddedRowLimit is the dataset size above which an unfiltered gridded
	// view is refused. Zero disables the guard.
	GriddedRowLimit int
}

// NewService wires a Service.
func NewService(catalog *domain.Catalog, store DatasetStore, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		catalog:         catalog,
		store:           store,
		geocoder:        opts.Geocoder,
		griddedRowLimit: opts.GriddedRowLimit,
		metrics:         metrics,
		logger:          logger,
	}
}

// Catalog returns the reference catalog.
func (s *Service) Catalog() *domain.Catalog { return s.catalog }

// CheckReadiness reports whether the reference catalog is loaded.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.catalog == nil || s.catalog.Len() == 0 {
		return errors.New("reference catalog not loaded")
	}
	return nil
}

// DatasetInfo describes a stored upload and the options the dashboard
// controls should offer for it.
type DatasetInfo struct {
	ID          string                `json:"id"`
	Filename    string                `json:"filename"`
	Variable    domain.Variable       `json:"variable"`
	Unit        domain.Unit           `json:"unit"`
	UnitOptions []domain.Unit         `json:"unit_options"`
	Periods     []domain.PeriodOption `json:"periods"`
	Months      []domain.MonthOption  `json:"months,omitempty"`
	Rows        int                   `json:"rows"`
	SkippedRows int                   `json:"skipped_rows,omitempty"`
	UploadedAt  time.Time             `json:"uploaded_at"`
}

func describe(id string, ds *domain.Dataset) *DatasetInfo {
	return &DatasetInfo{
		ID:          id,
		Filename:    ds.Filename,
		Variable:    ds.Variable,
		Unit:        ds.Unit,
		UnitOptions: domain.UnitOptions(ds.Variable),
		Periods:     domain.PeriodOptions(ds.Periods),
		Months:      domain.MonthOptions(ds.Periods),
		Rows:        ds.Len(),
		UploadedAt:  ds.UploadedAt,
	}
}

// Upload decodes and stores a file. Decode failures wrap upload.ErrMalformed.
func (s *Service) Upload(_ context.Context, filename string, data []byte) (*DatasetInfo, error) {
	ds, report, err := upload.Decode(filename, data)
	if err != nil {
		s.metrics.Uploads.WithLabelValues("malformed").Inc()
		s.logger.Info("upload rejected", "filename", filename, "error", err)
		return nil, err
	}
	id := s.store.Put(ds)

	s.metrics.Uploads.WithLabelValues("success").Inc()
	s.metrics.UploadRows.Observe(float64(report.Rows))
	s.logger.Info("dataset uploaded",
		"dataset_id", id,
		"filename", filename,
		"rows", report.Rows,
		"skipped_rows", report.SkippedRows,
		"periods", len(ds.Periods),
		"unit", ds.Unit.String(),
	)

	info := describe(id, ds)
	info.SkippedRows = report.SkippedRows
	return info, nil
}

// Describe returns the metadata of a stored dataset.
func (s *Service) Describe(_ context.Context, id string) (*DatasetInfo, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return describe(id, ds), nil
}

// Dataset returns a stored dataset.
func (s *Service) Dataset(_ context.Context, id string) (*domain.Dataset, error) {
	return s.store.Get(id)
}

// Delete discards a stored dataset.
func (s *Service) Delete(_ context.Context, id string) error {
	if !s.store.Delete(id) {
		return fmt.Errorf("dataset %q: %w", id, domain.ErrDatasetNotFound)
	}
	s.logger.Info("dataset deleted", "dataset_id", id)
	return nil
}

// ThroughPeriods lists the periods that can end a range beginning at start.
func (s *Service) ThroughPeriods(_ context.Context, id, start string) ([]domain.PeriodOption, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if start == "" {
		return domain.PeriodOptions(ds.Periods), nil
	}
	if !domain.IsPeriodCode(start) || len(start) != len(ds.Periods[0]) {
		return nil, &domain.InputError{Field: "start", Value: start, Message: "not a period code of this dataset"}
	}
	return domain.ThroughOptions(ds.Periods, start), nil
}

// Aggregate aggregates a stored dataset.
func (s *Service) Aggregate(ctx context.Context, id string, q Query) (*domain.AggregateTable, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return s.AggregateDataset(ctx, ds, q)
}

// AggregateDataset aggregates a dataset that is not in the store. An
// unfiltered gridded view over a dataset above the row limit returns
// domain.ErrSelectionRequired.
func (s *Service) AggregateDataset(_ context.Context, ds *domain.Dataset, q Query) (*domain.AggregateTable, error) {
	req, err := q.resolve(ds)
	if err != nil {
		s.recordAggregation(string(domain.AreaBasin), 0, err)
		return nil, err
	}
	if req.AreaType == domain.AreaCell {
		state := domain.ViewState{}.Load().Switch(domain.ViewGridded)
		if state.NeedsSelection(ds.Len(), s.griddedRowLimit) {
			s.recordAggregation(string(req.AreaType), 0, domain.ErrSelectionRequired)
			return nil, fmt.Errorf("%d rows over limit %d: %w", ds.Len(), s.griddedRowLimit, domain.ErrSelectionRequired)
		}
	}
	return s.aggregate(ds, req)
}

func (s *Service) aggregate(ds *domain.Dataset, req domain.AggregateRequest) (*domain.AggregateTable, error) {
	start := time.Now()
	table, err := domain.Aggregate(ds, s.catalog, req)
	s.recordAggregation(string(req.AreaType), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("aggregation complete",
		"area", req.AreaType,
		"statistic", req.Statistic,
		"periods", len(req.Periods),
		"rows", len(table.Rows),
		"duration", time.Since(start),
	)
	return table, nil
}

// Hydrograph returns the time series of one basin, country or grid cell.
func (s *Service) Hydrograph(_ context.Context, id, key string, q Query) (*domain.Series, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	req, err := q.resolve(ds)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, &domain.InputError{Field: "id", Message: "an area or cell id is required"}
	}
	return domain.Hydrograph(ds, s.catalog, req.AreaType, key, req.Periods, req.Units)
}

// SelectRequest is one map interaction: the current controls, the view
// mode and the normalized selection. Reset discards the selection and
// returns to the area view.
type SelectRequest struct {
	Query
	View      string
	Selection domain.Selection
	Reset     bool
}

// SelectResponse is the reduced table, its view hint and the resulting
// view mode.
type SelectResponse struct {
	View domain.ViewMode `json:"view"`
	domain.SelectionResult
}

// Select recomputes the current view narrowed by a map selection. In the
// area view the selection filters the area table; in the gridded view the
// dataset is first narrowed to the selected cells.
func (s *Service) Select(ctx context.Context, id string, req SelectRequest) (*SelectResponse, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	mode, err := domain.ParseViewMode(req.View)
	if err != nil {
		return nil, err
	}
	state := domain.ViewState{}.Load().Switch(mode).Select(req.Selection)
	if req.Reset {
		state = state.Reset()
	}
	if state.NeedsSelection(ds.Len(), s.griddedRowLimit) {
		return nil, fmt.Errorf("%d rows over limit %d: %w", ds.Len(), s.griddedRowLimit, domain.ErrSelectionRequired)
	}

	agg, err := req.Query.resolve(ds)
	if err != nil {
		return nil, err
	}
	if state.Mode == domain.ViewGridded {
		agg.AreaType = domain.AreaCell
		ds = domain.FilterDataset(ds, s.catalog, state.Selection)
	} else if agg.AreaType == domain.AreaCell {
		agg.AreaType = domain.AreaBasin
	}

	table, err := s.aggregate(ds, agg)
	if err != nil {
		return nil, err
	}
	res := domain.ReduceBySelection(table, state.Selection, s.catalog)
	if state.Filtered() {
		s.metrics.Selections.WithLabelValues(selectionKind(state.Selection)).Inc()
		res.Hint = domain.LabelViewHint(ctx, res.Hint, s.geocoder, s.logger)
	}
	return &SelectResponse{View: state.Mode, SelectionResult: *res}, nil
}

func selectionKind(sel domain.Selection) string {
	switch sel.(type) {
	case domain.BoxSelect:
		return "box"
	case domain.LassoSelect:
		return "lasso"
	default:
		return "click"
	}
}

// IsUserError reports whether err should be shown to the user rather than
// treated as a server failure.
func IsUserError(err error) bool {
	var convErr *domain.UnsupportedUnitConversionError
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrSelectionRequired) ||
		errors.Is(err, domain.ErrDatasetNotFound) ||
		errors.Is(err, domain.ErrAreaNotFound) ||
		errors.Is(err, upload.ErrMalformed) ||
		errors.As(err, &convErr)
}

func (s *Service) recordAggregation(area string, elapsed time.Duration, err error) {
	outcome := "success"
	switch {
	case err == nil:
		s.metrics.AggregationDuration.WithLabelValues(area).Observe(elapsed.Seconds())
	case IsUserError(err):
		outcome = "user_error"
	default:
		outcome = "error"
	}
	s.metrics.Aggregations.WithLabelValues(area, outcome).Inc()
}
