// Command genmock writes a small synthetic reference catalog and a matching
// runoff dataset for local runs of the dashboard. Cells are laid out on a
// regular half-degree grid; basins and countries are rectangular blocks of
// cells so that every basin/country relationship kind appears.
//
// Usage:
//
//	go run ./cmd/genmock -out data -cols 24 -rows 12 -start 1990 -end 2010
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"

	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
)

const cellSize = 0.5

// Block sizes in cells. Basins and countries deliberately do not align.
const (
	basinCols, basinRows     = 6, 4
	countryCols, countryRows = 8, 6
)

var countryNames = []string{
	"Aldora", "Brevia", "Corvant", "Dunmere", "Estavel", "Faroque",
	"Galdin", "Hollis", "Istra", "Jorvik", "Kestrel", "Lunaria",
}

type options struct {
	out                  string
	cols, rows           int
	originLon, originLat float64
	startYear, endYear   int
	monthly              bool
	seed                 uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var o options
	flag.StringVar(&o.out, "out", "data", "output directory")
	flag.IntVar(&o.cols, "cols", 24, "grid columns")
	flag.IntVar(&o.rows, "rows", 12, "grid rows")
	flag.Float64Var(&o.originLon, "lon", -10, "longitude of the south-west corner")
	flag.Float64Var(&o.originLat, "lat", 35, "latitude of the south-west corner")
	flag.IntVar(&o.startYear, "start", 1990, "first year")
	flag.IntVar(&o.endYear, "end", 2010, "last year")
	flag.BoolVar(&o.monthly, "monthly", false, "write monthly instead of yearly periods")
	flag.Uint64Var(&o.seed, "seed", 42, "random seed")
	flag.Parse()

	if o.cols <= 0 || o.rows <= 0 || o.endYear < o.startYear {
		flag.Usage()
		return fmt.Errorf("invalid grid or year range")
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return err
	}

	cells := buildCells(o)
	if _, err := domain.NewCatalog(cells, domain.FeatureCollection{}, domain.FeatureCollection{}); err != nil {
		return fmt.Errorf("generated catalog is invalid: %w", err)
	}

	if err := writeCells(filepath.Join(o.out, "xanthos_reference.csv"), cells); err != nil {
		return fmt.Errorf("writing reference csv: %w", err)
	}
	basins, err := blockFeatures(cells, func(c domain.GridCell) (string, map[string]any) {
		return strconv.Itoa(c.BasinID), map[string]any{"basin_id": c.BasinID, "basin_name": c.BasinName}
	})
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(o.out, "gcam_basins.geojson"), basins); err != nil {
		return fmt.Errorf("writing basins: %w", err)
	}
	countries, err := blockFeatures(cells, func(c domain.GridCell) (string, map[string]any) {
		return c.CountryName, map[string]any{"name": c.CountryName, "country_id": c.CountryID}
	})
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(o.out, "countries.geojson"), countries); err != nil {
		return fmt.Errorf("writing countries: %w", err)
	}

	name, err := writeRunoff(o, cells)
	if err != nil {
		return fmt.Errorf("writing runoff: %w", err)
	}

	log.Printf("cells: %d, basins: %d, countries: %d", len(cells), len(basins.Features), len(countries.Features))
	log.Printf("wrote %s", filepath.Join(o.out, name))
	return nil
}

func buildCells(o options) []domain.GridCell {
	cells := make([]domain.GridCell, 0, o.cols*o.rows)
	basinsPerRow := (o.cols + basinCols - 1) / basinCols
	countriesPerRow := (o.cols + countryCols - 1) / countryCols

	for r := 0; r < o.rows; r++ {
		for c := 0; c < o.cols; c++ {
			lon := o.originLon + (float64(c)+0.5)*cellSize
			lat := o.originLat + (float64(r)+0.5)*cellSize

			basin := (r/basinRows)*basinsPerRow + c/basinCols + 1
			country := (r/countryRows)*countriesPerRow + c/countryCols
			name := countryNames[country%len(countryNames)]
			if country >= len(countryNames) {
				name = fmt.Sprintf("%s %d", name, country/len(countryNames)+1)
			}

			cells = append(cells, domain.GridCell{
				GridID:       r*o.cols + c + 1,
				BasinID:      basin,
				BasinName:    fmt.Sprintf("Basin %d", basin),
				CountryID:    country + 1,
				CountryName:  name,
				AreaHectares: cellHectares(lat),
				Longitude:    lon,
				Latitude:     lat,
			})
		}
	}
	return cells
}

// cellHectares approximates the surface area of a half-degree cell.
func cellHectares(lat float64) float64 {
	const kmPerDegree = 111.32
	side := cellSize * kmPerDegree
	return side * side * math.Cos(lat*math.Pi/180) * 100
}

func writeCells(path string, cells []domain.GridCell) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"grid_id", "basin_id", "basin_name", "country_id", "country_name", "area_hectares", "longitude", "latitude"})
	for _, c := range cells {
		_ = w.Write([]string{
			strconv.Itoa(c.GridID),
			strconv.Itoa(c.BasinID),
			c.BasinName,
			strconv.Itoa(c.CountryID),
			c.CountryName,
			strconv.FormatFloat(c.AreaHectares, 'f', 2, 64),
			strconv.FormatFloat(c.Longitude, 'f', 2, 64),
			strconv.FormatFloat(c.Latitude, 'f', 2, 64),
		})
	}
	w.Flush()
	return w.Error()
}

// blockFeatures builds one rectangular feature per group, spanning the
// bounds of the group's cells.
func blockFeatures(cells []domain.GridCell, group func(domain.GridCell) (string, map[string]any)) (domain.FeatureCollection, error) {
	var order []string
	bounds := make(map[string]*geom.Bounds)
	props := make(map[string]map[string]any)
	for _, c := range cells {
		key, p := group(c)
		b, ok := bounds[key]
		if !ok {
			b = geom.NewBounds()
			bounds[key] = b
			props[key] = p
			order = append(order, key)
		}
		half := cellSize / 2
		b.Extend(&geom.Bounds{
			Min: geom.Point{X: c.Longitude - half, Y: c.Latitude - half},
			Max: geom.Point{X: c.Longitude + half, Y: c.Latitude + half},
		})
	}

	fc := domain.FeatureCollection{Type: "FeatureCollection"}
	for _, key := range order {
		b := bounds[key]
		poly := geom.Polygon{{
			{X: b.Min.X, Y: b.Min.Y},
			{X: b.Max.X, Y: b.Min.Y},
			{X: b.Max.X, Y: b.Max.Y},
			{X: b.Min.X, Y: b.Max.Y},
			{X: b.Min.X, Y: b.Min.Y},
		}}
		g, err := geojson.ToGeoJSON(poly)
		if err != nil {
			return fc, fmt.Errorf("encode %s: %w", key, err)
		}
		raw, err := json.Marshal(g)
		if err != nil {
			return fc, err
		}
		fc.Features = append(fc.Features, domain.Feature{
			Type:       "Feature",
			Properties: props[key],
			Geometry:   raw,
		})
	}
	return fc, nil
}

// writeRunoff writes a km³ runoff file with a seasonal cycle and noise, and
// returns its filename.
func writeRunoff(o options, cells []domain.GridCell) (string, error) {
	var periods []string
	for y := o.startYear; y <= o.endYear; y++ {
		if !o.monthly {
			periods = append(periods, strconv.Itoa(y))
			continue
		}
		for m := 1; m <= 12; m++ {
			periods = append(periods, fmt.Sprintf("%d%02d", y, m))
		}
	}

	step := "year"
	if o.monthly {
		step = "month"
	}
	name := fmt.Sprintf("q_km3per%s_mock_rcp45_%d_%d.csv", step, o.startYear, o.endYear)
	f, err := os.Create(filepath.Join(o.out, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	w := csv.NewWriter(f)
	_ = w.Write(append([]string{"id"}, periods...))
	for _, c := range cells {
		// Wetter towards the west of the grid.
		base := 0.002 * c.AreaHectares / 1e4 * (1 + 0.5*math.Sin(c.Longitude/3))
		row := make([]string, 0, len(periods)+1)
		row = append(row, strconv.Itoa(c.GridID))
		for i := range periods {
			season := 1.0
			if o.monthly {
				season = 1 + 0.6*math.Cos(2*math.Pi*float64(i%12)/12)
			}
			v := math.Max(0, base*season*(1+0.2*rng.NormFloat64()))
			row = append(row, strconv.FormatFloat(v, 'g', 6, 64))
		}
		_ = w.Write(row)
	}
	w.Flush()
	return name, w.Error()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
