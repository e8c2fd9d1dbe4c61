package domain

import (
	"slices"
	"time"
)

const (
	yearCodeWidth  = 4
	monthCodeWidth = 6
)

// PeriodOption is a period code with its display label ("1990" or "1990-03").
type PeriodOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// MonthOption is a month-of-year code ("01".."12") with its English name.
type MonthOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// IsPeriodCode reports whether s is a 4-digit year or 6-digit year-month code.
func IsPeriodCode(s string) bool {
	if len(s) != yearCodeWidth && len(s) != monthCodeWidth {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	if len(s) == monthCodeWidth {
		m := s[4:6]
		return m >= "01" && m <= "12"
	}
	return true
}

// PeriodLabel formats a period code for display.
func PeriodLabel(code string) string {
	if len(code) == monthCodeWidth {
		return code[:4] + "-" + code[4:]
	}
	return code
}

// PeriodOptions lists every column of a dataset as a selectable period.
func PeriodOptions(columns []string) []PeriodOption {
	out := make([]PeriodOption, len(columns))
	for i, c := range columns {
		out[i] = PeriodOption{Label: PeriodLabel(c), Value: c}
	}
	return out
}

// ThroughOptions returns the period options that can end a range starting at start.
func ThroughOptions(columns []string, start string) []PeriodOption {
	out := make([]PeriodOption, 0, len(columns))
	for _, c := range columns {
		if c >= start {
			out = append(out, PeriodOption{Label: PeriodLabel(c), Value: c})
		}
	}
	return out
}

// MonthOptions lists the months present in a monthly dataset, January first.
// Yearly datasets have no month options and return nil.
func MonthOptions(columns []string) []MonthOption {
	if len(columns) == 0 || len(columns[0]) != monthCodeWidth {
		return nil
	}
	present := make(map[string]bool, 12)
	for _, c := range columns {
		if len(c) == monthCodeWidth {
			present[c[4:6]] = true
		}
	}
	var out []MonthOption
	for m := time.January; m <= time.December; m++ {
		code := twoDigits(int(m))
		if present[code] {
			out = append(out, MonthOption{Label: m.String(), Value: code})
		}
	}
	return out
}

// SelectPeriods returns, in column order, the period codes c with
// start <= c <= end. For monthly codes a non-empty months filter further
// keeps only codes whose month is listed; yearly codes ignore the filter.
// An empty result is not an error here.
func SelectPeriods(columns []string, start, end string, months []string) ([]string, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	width := len(columns[0])
	if len(start) != width || !IsPeriodCode(start) {
		return nil, invalidf("start", start, "must be a %d-digit period code", width)
	}
	if len(end) != width || !IsPeriodCode(end) {
		return nil, invalidf("end", end, "must be a %d-digit period code", width)
	}
	if start > end {
		return nil, invalidf("start", start, "must not be after end %s", end)
	}

	filterMonths := width == monthCodeWidth && len(months) > 0
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if c < start || c > end {
			continue
		}
		if filterMonths && !slices.Contains(months, c[4:6]) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
