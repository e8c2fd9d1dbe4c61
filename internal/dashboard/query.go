package dashboard

import (
	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
)

// Query holds the dashboard controls as the user supplied them. Empty Start
// and End default to the dataset's first and last periods; empty Units keeps
// the dataset's native unit.
type Query struct {
	Area      string   `json:"area" form:"area"`
	Statistic string   `json:"statistic" form:"statistic"`
	Start     string   `json:"start" form:"start"`
	End       string   `json:"end" form:"end"`
	Months    []string `json:"months,omitempty" form:"months"`
	Units     string   `json:"units,omitempty" form:"units"`
}

// resolve validates the query against a dataset and returns the
// aggregation request it describes.
func (q Query) resolve(ds *domain.Dataset) (domain.AggregateRequest, error) {
	var req domain.AggregateRequest

	area := q.Area
	if area == "" {
		area = string(domain.AreaBasin)
	}
	areaType, err := domain.ParseAreaType(area)
	if err != nil {
		return req, err
	}

	stat := q.Statistic
	if stat == "" {
		stat = string(domain.StatMean)
	}
	statistic, err := domain.ParseStatistic(stat)
	if err != nil {
		return req, err
	}

	units, err := domain.ParseUnit(q.Units)
	if err != nil {
		return req, err
	}

	periods, err := q.periods(ds)
	if err != nil {
		return req, err
	}

	return domain.AggregateRequest{
		AreaType:  areaType,
		Statistic: statistic,
		Periods:   periods,
		Units:     units,
	}, nil
}

func (q Query) periods(ds *domain.Dataset) ([]string, error) {
	start, end := q.Start, q.End
	if start == "" {
		start = ds.Periods[0]
	}
	if end == "" {
		end = ds.Periods[len(ds.Periods)-1]
	}
	periods, err := domain.SelectPeriods(ds.Periods, start, end, q.Months)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, &domain.InputError{Field: "periods", Message: "no period of the dataset falls in the selected range"}
	}
	return periods, nil
}
