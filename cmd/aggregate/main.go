// Command aggregate runs one dashboard aggregation offline and prints the
// table. It reads the same reference files and accepts the same controls as
// the HTTP API, which makes it handy for checking a dataset before upload.
//
// Usage:
//
//	go run ./cmd/aggregate \
//	  -file data/q_km3peryear_mock_rcp45_1990_2010.csv \
//	  -area country -statistic max -start 2000 -end 2010 -units mm
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/cache"
	"github.com/couchcryptid/xanthos-vis-service/internal/adapter/reference"
	"github.com/couchcryptid/xanthos-vis-service/internal/dashboard"
	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
	"github.com/couchcryptid/xanthos-vis-service/internal/observability"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cellsPath := fs.String("reference", "data/xanthos_reference.csv", "grid-cell reference CSV")
	basinsPath := fs.String("basins", "data/gcam_basins.geojson", "basin GeoJSON")
	countriesPath := fs.String("countries", "data/countries.geojson", "country GeoJSON")
	file := fs.String("file", "", "Xanthos output file (.csv or .zip)")
	area := fs.String("area", "basin", "basin, country or cell")
	statistic := fs.String("statistic", "mean", "mean, median, min, max or standard deviation")
	start := fs.String("start", "", "first period (default: first in file)")
	end := fs.String("end", "", "last period (default: last in file)")
	months := fs.String("months", "", "comma-separated months for monthly files, e.g. 06,07,08")
	units := fs.String("units", "", "display unit (default: native)")
	hydrograph := fs.String("hydrograph", "", "print the time series of this area id instead of the table")
	format := fs.String("format", "table", "table or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fs.Usage()
		return 2
	}

	catalog, err := reference.Load(*cellsPath, *basinsPath, *countriesPath)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetricsForTesting()
	svc := dashboard.NewService(catalog, cache.NewDatasetStore(1, time.Hour, nil, metrics), dashboard.Options{}, metrics, logger)

	ctx := context.Background()
	info, err := svc.Upload(ctx, *file, data)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}
	if info.SkippedRows > 0 {
		fmt.Fprintf(stderr, "warning: skipped %d ragged rows\n", info.SkippedRows)
	}

	q := dashboard.Query{
		Area:      *area,
		Statistic: *statistic,
		Start:     *start,
		End:       *end,
		Units:     *units,
	}
	if *months != "" {
		q.Months = strings.Split(*months, ",")
	}

	if *hydrograph != "" {
		series, err := svc.Hydrograph(ctx, info.ID, *hydrograph, q)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return output(stdout, stderr, *format, series, func(w *tabwriter.Writer) { printSeries(w, series) })
	}

	table, err := svc.Aggregate(ctx, info.ID, q)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return output(stdout, stderr, *format, table, func(w *tabwriter.Writer) { printTable(w, table) })
}

func output(stdout, stderr io.Writer, format string, v any, table func(*tabwriter.Writer)) int {
	switch format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	case "table":
		w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		table(w)
		if err := w.Flush(); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintf(stderr, "unknown format %q\n", format)
		return 2
	}
	return 0
}

func printTable(w *tabwriter.Writer, t *domain.AggregateTable) {
	if len(t.Periods) > 0 {
		fmt.Fprintf(w, "# %s %s over %d periods (%s to %s), %s\n",
			t.AreaType, t.Statistic, len(t.Periods), t.Periods[0], t.Periods[len(t.Periods)-1], t.Unit)
	}

	switch t.AreaType {
	case domain.AreaBasin:
		fmt.Fprintln(w, "basin_id\tbasin_name\tcountries\tvar")
		for _, r := range t.Rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.6g\n", r.BasinID, r.BasinName, strings.Join(r.CountryNames, "; "), r.Value)
		}
	case domain.AreaCountry:
		fmt.Fprintln(w, "country_name\tcountry_id\tbasins\tvar")
		for _, r := range t.Rows {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.6g\n", r.CountryName, r.CountryID, len(r.BasinIDs), r.Value)
		}
	default:
		fmt.Fprintln(w, "grid_id\tlongitude\tlatitude\tbasin\tcountry\tvar")
		for _, r := range t.Rows {
			fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%s\t%s\t%.6g\n", r.GridID, r.Longitude, r.Latitude, r.BasinName, r.CountryName, r.Value)
		}
	}
}

func printSeries(w *tabwriter.Writer, s *domain.Series) {
	fmt.Fprintf(w, "# %s %s (%s), %s\n", s.AreaType, s.Key, s.Name, s.Unit)
	fmt.Fprintln(w, "period\tvalue")
	for _, p := range s.Points {
		fmt.Fprintf(w, "%s\t%.6g\n", p.Label, p.Value)
	}
}
