package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawJob is an export request as read from the job topic, with the broker
// coordinates needed to commit it once handled.
type RawJob struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ExportJob asks for one aggregate table per listed area type. The dataset
// is either a stored upload (DatasetID) or a file readable by the service
// (Path). Control fields use the same spelling as the dashboard query.
type ExportJob struct {
	ID        string   `json:"id"`
	DatasetID string   `json:"dataset_id,omitempty"`
	Path      string   `json:"path,omitempty"`
	AreaTypes []string `json:"area_types"`
	Statistic string   `json:"statistic,omitempty"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
	Months    []string `json:"months,omitempty"`
	Units     string   `json:"units,omitempty"`
}

// ExportedTable is one aggregate table produced for a job.
type ExportedTable struct {
	JobID      string          `json:"job_id"`
	DatasetID  string          `json:"dataset_id,omitempty"`
	Filename   string          `json:"filename"`
	Variable   Variable        `json:"variable"`
	ProducedAt time.Time       `json:"produced_at"`
	Table      *AggregateTable `json:"table"`
}

// OutputEvent is a serialized message ready for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ParseExportJob decodes and validates a job. Jobs without an id take one
// from the message key, then from the broker position. Area types default to
// basin.
func ParseExportJob(raw RawJob) (ExportJob, error) {
	var job ExportJob
	if err := json.Unmarshal(raw.Value, &job); err != nil {
		return ExportJob{}, fmt.Errorf("decode export job: %w", err)
	}

	if (job.DatasetID == "") == (job.Path == "") {
		return ExportJob{}, invalidf("dataset_id", job.DatasetID, "exactly one of dataset_id or path is required")
	}
	if job.ID == "" {
		job.ID = string(raw.Key)
	}
	if job.ID == "" {
		job.ID = fmt.Sprintf("%s-%d-%d", raw.Topic, raw.Partition, raw.Offset)
	}

	if len(job.AreaTypes) == 0 {
		job.AreaTypes = []string{string(AreaBasin)}
	}
	for _, a := range job.AreaTypes {
		if _, err := ParseAreaType(a); err != nil {
			return ExportJob{}, err
		}
	}
	return job, nil
}

// NewExportedTable stamps a table with its job and the current time.
func NewExportedTable(job ExportJob, ds *Dataset, table *AggregateTable) ExportedTable {
	return ExportedTable{
		JobID:      job.ID,
		DatasetID:  job.DatasetID,
		Filename:   ds.Filename,
		Variable:   ds.Variable,
		ProducedAt: clock.Now().UTC(),
		Table:      table,
	}
}

// SerializeExportedTable marshals a table for the sink topic. The key is
// the job id and area type so that tables of one job stay ordered per area.
func SerializeExportedTable(t ExportedTable) (OutputEvent, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize exported table: %w", err)
	}
	area := string(t.Table.AreaType)
	return OutputEvent{
		Key:   []byte(t.JobID + "/" + area),
		Value: data,
		Headers: map[string]string{
			"area_type":   area,
			"statistic":   string(t.Table.Statistic),
			"unit":        t.Table.Unit.String(),
			"produced_at": t.ProducedAt.Format(time.RFC3339),
		},
	}, nil
}
