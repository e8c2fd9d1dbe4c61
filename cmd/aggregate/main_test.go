package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cellsCSV = `grid_id,longitude,latitude,basin_id,basin_name,country_id,country_name,area_hectares
1,10.25,10.25,10,North,1,Alpha,100
2,12.25,14.25,10,North,2,Beta,100
3,-20.25,-5.25,20,South,2,Beta,100
`
	basinsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"basin_id":10,"basin_name":"North"},"geometry":null},
 {"type":"Feature","properties":{"basin_id":20,"basin_name":"South"},"geometry":null}
]}`
	countriesJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Alpha"},"geometry":null},
 {"type":"Feature","properties":{"name":"Beta"},"geometry":null}
]}`
	runoffCSV = "id,2000,2001\n1,100,1\n2,200,3\n3,5,5\n"
)

// fixtures writes the reference files and a yearly runoff file and returns
// the flags that point at them.
func fixtures(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"reference.csv":              cellsCSV,
		"basins.geojson":             basinsJSON,
		"countries.geojson":          countriesJSON,
		"q_km3peryear_test_2000.csv": runoffCSV,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return []string{
		"-reference", filepath.Join(dir, "reference.csv"),
		"-basins", filepath.Join(dir, "basins.geojson"),
		"-countries", filepath.Join(dir, "countries.geojson"),
		"-file", filepath.Join(dir, "q_km3peryear_test_2000.csv"),
	}
}

func TestRun_JSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(append(fixtures(t), "-format", "json"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var table domain.AggregateTable
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &table))
	assert.Equal(t, domain.AreaBasin, table.AreaType)
	assert.Equal(t, []string{"10", "20"}, table.Keys())
	assert.Equal(t, 152.0, table.Rows[0].Value)
	assert.Equal(t, 5.0, table.Rows[1].Value)
}

func TestRun_Table(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(append(fixtures(t), "-area", "country", "-statistic", "max", "-start", "2001"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "# country max over 1 periods (2001 to 2001), km³")
	assert.Contains(t, out, "country_name")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "Beta")
}

func TestRun_Hydrograph(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(append(fixtures(t), "-hydrograph", "10", "-format", "json"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var series domain.Series
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &series))
	assert.Equal(t, "North", series.Name)
	assert.Equal(t, []domain.SeriesPoint{
		{Period: "2000", Label: "2000", Value: 300},
		{Period: "2001", Label: "2001", Value: 4},
	}, series.Points)
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		want int
	}{
		{"unknown flag", func(*testing.T) []string { return []string{"-bogus"} }, 2},
		{"missing file", func(*testing.T) []string { return nil }, 2},
		{"unknown format", func(t *testing.T) []string { return append(fixtures(t), "-format", "xml") }, 2},
		{"bad statistic", func(t *testing.T) []string { return append(fixtures(t), "-statistic", "mode") }, 1},
		{"unsupported units", func(t *testing.T) []string { return append(fixtures(t), "-units", "m3/s") }, 1},
		{"unknown hydrograph area", func(t *testing.T) []string { return append(fixtures(t), "-hydrograph", "99") }, 1},
		{"missing reference", func(t *testing.T) []string {
			return []string{"-reference", filepath.Join(t.TempDir(), "nope.csv"), "-file", "x.csv"}
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(tt.args(t), &stdout, &stderr))
			assert.NotEmpty(t, stderr.String())
		})
	}
}
