package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	yearColumns  = []string{"1998", "1999", "2000", "2001", "2002", "2003", "2004", "2005"}
	monthColumns = []string{"199901", "199902", "199903", "199912", "200001", "200002", "200012"}
)

func TestSelectPeriods_Range(t *testing.T) {
	got, err := SelectPeriods(yearColumns, "1999", "2001", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1999", "2000", "2001"}, got)
}

func TestSelectPeriods_Bounds(t *testing.T) {
	for i, start := range yearColumns {
		for _, end := range yearColumns[i:] {
			got, err := SelectPeriods(yearColumns, start, end, nil)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			for _, c := range got {
				assert.GreaterOrEqual(t, c, start)
				assert.LessOrEqual(t, c, end)
			}
		}
	}
}

func TestSelectPeriods_EmptyWhenNoColumnInRange(t *testing.T) {
	got, err := SelectPeriods(yearColumns, "1900", "1950", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectPeriods_InvalidRange(t *testing.T) {
	got, err := SelectPeriods(yearColumns, "2005", "2000", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, got)

	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "start", inputErr.Field)
}

func TestSelectPeriods_WidthMismatch(t *testing.T) {
	_, err := SelectPeriods(monthColumns, "1999", "2000", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = SelectPeriods(yearColumns, "1999", "abcd", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSelectPeriods_MonthFilter(t *testing.T) {
	got, err := SelectPeriods(monthColumns, "199901", "200012", []string{"01", "12"})
	require.NoError(t, err)
	assert.Equal(t, []string{"199901", "199912", "200001", "200012"}, got)
}

func TestSelectPeriods_MonthFilterOnYearlyData(t *testing.T) {
	got, err := SelectPeriods(yearColumns, "1998", "2005", []string{"01"})
	require.NoError(t, err)
	assert.Equal(t, yearColumns, got)
}

func TestPeriodOptions(t *testing.T) {
	opts := PeriodOptions([]string{"199901", "199902"})
	assert.Equal(t, []PeriodOption{{Label: "1999-01", Value: "199901"}, {Label: "1999-02", Value: "199902"}}, opts)
}

func TestThroughOptions(t *testing.T) {
	opts := ThroughOptions(yearColumns, "2003")
	require.Len(t, opts, 3)
	assert.Equal(t, "2003", opts[0].Value)
	assert.Equal(t, "2005", opts[2].Value)
}

func TestMonthOptions(t *testing.T) {
	assert.Nil(t, MonthOptions(yearColumns))

	opts := MonthOptions(monthColumns)
	assert.Equal(t, []MonthOption{
		{Label: "January", Value: "01"},
		{Label: "February", Value: "02"},
		{Label: "March", Value: "03"},
		{Label: "December", Value: "12"},
	}, opts)
}

func TestIsPeriodCode(t *testing.T) {
	assert.True(t, IsPeriodCode("1990"))
	assert.True(t, IsPeriodCode("199012"))
	assert.False(t, IsPeriodCode("199013"))
	assert.False(t, IsPeriodCode("id"))
	assert.False(t, IsPeriodCode("19900"))
}
