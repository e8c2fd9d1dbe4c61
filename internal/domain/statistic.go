package domain

import (
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistic is the across-time summary computed for each row.
type Statistic string

const (
	StatMean   Statistic = "mean"
	StatMedian Statistic = "median"
	StatMin    Statistic = "min"
	StatMax    Statistic = "max"
	StatStdDev Statistic = "standard deviation"
)

// Statistics lists the supported statistics in display order.
var Statistics = []Statistic{StatMean, StatMedian, StatMin, StatMax, StatStdDev}

// ParseStatistic maps a statistic name to a Statistic. "std" and "stddev"
// are accepted for the standard deviation.
func ParseStatistic(s string) (Statistic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean":
		return StatMean, nil
	case "median":
		return StatMedian, nil
	case "min":
		return StatMin, nil
	case "max":
		return StatMax, nil
	case "standard deviation", "stddev", "std":
		return StatStdDev, nil
	default:
		return "", &InvalidStatisticError{Statistic: s}
	}
}

// Compute applies the statistic to one row of period values. The standard
// deviation is the sample (n-1) estimator and needs two or more values.
func (s Statistic) Compute(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, invalidf("periods", "", "selection is empty")
	}
	switch s {
	case StatMean:
		return stat.Mean(values, nil), nil
	case StatMedian:
		return median(values), nil
	case StatMin:
		return floats.Min(values), nil
	case StatMax:
		return floats.Max(values), nil
	case StatStdDev:
		if len(values) < 2 {
			return 0, invalidf("periods", "", "standard deviation needs at least two periods")
		}
		return stat.StdDev(values, nil), nil
	default:
		return 0, &InvalidStatisticError{Statistic: string(s)}
	}
}

// median averages the two middle values of an even-length sample.
func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
