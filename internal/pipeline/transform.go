package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/upload"
	"github.com/couchcryptid/xanthos-vis-service/internal/dashboard"
	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
)

// Aggregator is the part of the dashboard service an export needs.
type Aggregator interface {
	Dataset(ctx context.Context, id string) (*domain.Dataset, error)
	AggregateDataset(ctx context.Context, ds *domain.Dataset, q dashboard.Query) (*domain.AggregateTable, error)
}

// ExportTransformer implements Transformer by aggregating the job's dataset
// once per requested area type.
type ExportTransformer struct {
	svc     Aggregator
	dataDir string
	logger  *slog.Logger
}

// NewTransformer creates an ExportTransformer. dataDir roots the file paths
// jobs may name; empty rejects path jobs.
func NewTransformer(svc Aggregator, dataDir string, logger *slog.Logger) *ExportTransformer {
	return &ExportTransformer{svc: svc, dataDir: dataDir, logger: logger}
}

func (t *ExportTransformer) Transform(ctx context.Context, raw domain.RawJob) ([]domain.OutputEvent, error) {
	job, err := domain.ParseExportJob(raw)
	if err != nil {
		return nil, err
	}

	ds, err := t.dataset(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}

	out := make([]domain.OutputEvent, 0, len(job.AreaTypes))
	for _, area := range job.AreaTypes {
		table, err := t.svc.AggregateDataset(ctx, ds, dashboard.Query{
			Area:      area,
			Statistic: job.Statistic,
			Start:     job.Start,
			End:       job.End,
			Months:    job.Months,
			Units:     job.Units,
		})
		if err != nil {
			return nil, fmt.Errorf("job %s, area %s: %w", job.ID, area, err)
		}
		event, err := domain.SerializeExportedTable(domain.NewExportedTable(job, ds, table))
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}

	t.logger.Debug("export job aggregated", "job_id", job.ID, "tables", len(out), "rows", ds.Len())
	return out, nil
}

func (t *ExportTransformer) dataset(ctx context.Context, job domain.ExportJob) (*domain.Dataset, error) {
	if job.DatasetID != "" {
		return t.svc.Dataset(ctx, job.DatasetID)
	}
	if t.dataDir == "" {
		return nil, &domain.InputError{Field: "path", Value: job.Path, Message: "path jobs are disabled"}
	}
	if !filepath.IsLocal(job.Path) {
		return nil, &domain.InputError{Field: "path", Value: job.Path, Message: "must be relative to the export data directory"}
	}

	data, err := os.ReadFile(filepath.Join(t.dataDir, job.Path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", job.Path, err)
	}
	ds, _, err := upload.Decode(filepath.Base(job.Path), data)
	return ds, err
}
