// Package reference loads the static reference catalog: the grid-cell CSV
// and the basin and country GeoJSON feature collections.
package reference

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
)

// Required grid-cell CSV columns. Other columns are ignored.
var requiredColumns = []string{
	"grid_id", "basin_id", "basin_name", "country_id", "country_name",
	"area_hectares", "longitude", "latitude",
}

// Load reads the three reference files and builds the catalog. Every
// failure is returned as a *domain.ReferenceLoadError.
func Load(cellsPath, basinsPath, countriesPath string) (*domain.Catalog, error) {
	cells, err := loadCellsFile(cellsPath)
	if err != nil {
		return nil, &domain.ReferenceLoadError{Path: cellsPath, Err: err}
	}
	basins, err := loadFeaturesFile(basinsPath)
	if err != nil {
		return nil, &domain.ReferenceLoadError{Path: basinsPath, Err: err}
	}
	countries, err := loadFeaturesFile(countriesPath)
	if err != nil {
		return nil, &domain.ReferenceLoadError{Path: countriesPath, Err: err}
	}

	cat, err := domain.NewCatalog(cells, basins, countries)
	if err != nil {
		return nil, &domain.ReferenceLoadError{Path: cellsPath, Err: err}
	}
	return cat, nil
}

func loadCellsFile(path string) ([]domain.GridCell, error) {
	//nolint:gosec // G304: path comes from configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadCells(f)
}

// ReadCells parses a grid-cell CSV, locating columns by header name.
func ReadCells(r io.Reader) ([]domain.GridCell, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var cells []domain.GridCell
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		cell, err := parseCell(record, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

func parseCell(record []string, col map[string]int) (domain.GridCell, error) {
	field := func(name string) string { return strings.TrimSpace(record[col[name]]) }

	var (
		cell domain.GridCell
		err  error
	)
	if cell.GridID, err = strconv.Atoi(field("grid_id")); err != nil {
		return cell, fmt.Errorf("grid_id: %w", err)
	}
	if cell.BasinID, err = strconv.Atoi(field("basin_id")); err != nil {
		return cell, fmt.Errorf("basin_id: %w", err)
	}
	if cell.CountryID, err = strconv.Atoi(field("country_id")); err != nil {
		return cell, fmt.Errorf("country_id: %w", err)
	}
	if cell.AreaHectares, err = strconv.ParseFloat(field("area_hectares"), 64); err != nil {
		return cell, fmt.Errorf("area_hectares: %w", err)
	}
	if cell.Longitude, err = strconv.ParseFloat(field("longitude"), 64); err != nil {
		return cell, fmt.Errorf("longitude: %w", err)
	}
	if cell.Latitude, err = strconv.ParseFloat(field("latitude"), 64); err != nil {
		return cell, fmt.Errorf("latitude: %w", err)
	}
	cell.BasinName = field("basin_name")
	cell.CountryName = field("country_name")
	return cell, nil
}

func loadFeaturesFile(path string) (domain.FeatureCollection, error) {
	//nolint:gosec // G304: path comes from configuration.
	f, err := os.Open(path)
	if err != nil {
		return domain.FeatureCollection{}, err
	}
	defer func() { _ = f.Close() }()
	return ReadFeatures(f)
}

// ReadFeatures decodes a GeoJSON FeatureCollection. Geometry is kept as raw
// JSON for the renderer.
func ReadFeatures(r io.Reader) (domain.FeatureCollection, error) {
	var fc domain.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return fc, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return fc, fmt.Errorf("geojson type %q, want FeatureCollection", fc.Type)
	}
	return fc, nil
}
