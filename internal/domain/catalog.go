package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
)

// GridCell is one row of the reference catalog.
type GridCell struct {
	GridID       int     `json:"grid_id"`
	BasinID      int     `json:"basin_id"`
	BasinName    string  `json:"basin_name"`
	CountryID    int     `json:"country_id"`
	CountryName  string  `json:"country_name"`
	AreaHectares float64 `json:"area_hectares"`
	Longitude    float64 `json:"longitude"`
	Latitude     float64 `json:"latitude"`
}

// Feature is a GeoJSON feature. ID is the join key used by the renderer:
// the basin id for basins and the country name for countries.
type Feature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Catalog indexes the reference grid cells and area geometries. It is built
// once at startup and only read afterwards, so it is safe for concurrent use.
type Catalog struct {
	cells map[int]GridCell

	basinCells   map[int][]int
	countryCells map[string][]int

	basinNames     map[int]string
	basinCountries map[int]countrySet
	countryIDs     map[string]int
	countryBasins  map[string][]int

	basinFeatures   FeatureCollection
	countryFeatures FeatureCollection
}

type countrySet struct {
	ids   []int
	names []string
}

// NewCatalog validates the grid cells and builds every lookup the
// aggregation and selection code needs. Feature ids are assigned from the
// basin_id and name properties.
func NewCatalog(cells []GridCell, basins, countries FeatureCollection) (*Catalog, error) {
	if len(cells) == 0 {
		return nil, errors.New("reference catalog has no grid cells")
	}

	c := &Catalog{
		cells:          make(map[int]GridCell, len(cells)),
		basinCells:     make(map[int][]int),
		countryCells:   make(map[string][]int),
		basinNames:     make(map[int]string),
		basinCountries: make(map[int]countrySet),
		countryIDs:     make(map[string]int),
		countryBasins:  make(map[string][]int),
	}

	for _, cell := range cells {
		if _, dup := c.cells[cell.GridID]; dup {
			return nil, fmt.Errorf("duplicate grid_id %d", cell.GridID)
		}
		if cell.AreaHectares <= 0 {
			return nil, fmt.Errorf("grid_id %d: area_hectares must be positive, got %g", cell.GridID, cell.AreaHectares)
		}
		c.cells[cell.GridID] = cell
		c.basinCells[cell.BasinID] = append(c.basinCells[cell.BasinID], cell.GridID)
		c.countryCells[cell.CountryName] = append(c.countryCells[cell.CountryName], cell.GridID)

		if _, ok := c.basinNames[cell.BasinID]; !ok {
			c.basinNames[cell.BasinID] = cell.BasinName
		}
		if _, ok := c.countryIDs[cell.CountryName]; !ok {
			c.countryIDs[cell.CountryName] = cell.CountryID
		}

		set := c.basinCountries[cell.BasinID]
		if !slices.Contains(set.names, cell.CountryName) {
			set.names = append(set.names, cell.CountryName)
			set.ids = append(set.ids, cell.CountryID)
		}
		c.basinCountries[cell.BasinID] = set

		if !slices.Contains(c.countryBasins[cell.CountryName], cell.BasinID) {
			c.countryBasins[cell.CountryName] = append(c.countryBasins[cell.CountryName], cell.BasinID)
		}
	}
	for name := range c.countryBasins {
		sort.Ints(c.countryBasins[name])
	}

	var err error
	if c.basinFeatures, err = withFeatureIDs(basins, "basin_id"); err != nil {
		return nil, fmt.Errorf("basin features: %w", err)
	}
	if c.countryFeatures, err = withFeatureIDs(countries, "name"); err != nil {
		return nil, fmt.Errorf("country features: %w", err)
	}
	return c, nil
}

// withFeatureIDs returns a copy of fc with each feature's id set from the
// named property.
func withFeatureIDs(fc FeatureCollection, property string) (FeatureCollection, error) {
	out := FeatureCollection{Type: fc.Type, Features: make([]Feature, len(fc.Features))}
	if out.Type == "" {
		out.Type = "FeatureCollection"
	}
	for i, f := range fc.Features {
		id, ok := propertyString(f.Properties[property])
		if !ok {
			return FeatureCollection{}, fmt.Errorf("feature %d: missing %q property", i, property)
		}
		f.ID = id
		if f.Type == "" {
			f.Type = "Feature"
		}
		out.Features[i] = f
	}
	return out, nil
}

func propertyString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	default:
		return "", false
	}
}

// Len returns the number of grid cells.
func (c *Catalog) Len() int { return len(c.cells) }

// Cell looks up a grid cell by id.
func (c *Catalog) Cell(gridID int) (GridCell, bool) {
	cell, ok := c.cells[gridID]
	return cell, ok
}

// BasinName returns the display name of a basin.
func (c *Catalog) BasinName(basinID int) string { return c.basinNames[basinID] }

// CountryID returns the numeric id of a country by name.
func (c *Catalog) CountryID(name string) int { return c.countryIDs[name] }

// CountriesForBasin returns the ids and names of every country a basin
// touches, in first-seen order.
func (c *Catalog) CountriesForBasin(basinID int) ([]int, []string) {
	set := c.basinCountries[basinID]
	return slices.Clone(set.ids), slices.Clone(set.names)
}

// BasinsForCountry returns the sorted ids of every basin inside a country.
func (c *Catalog) BasinsForCountry(name string) []int {
	return slices.Clone(c.countryBasins[name])
}

// CellsInArea returns the catalog cells belonging to an area. For AreaCell
// the key is a grid id.
func (c *Catalog) CellsInArea(areaType AreaType, key string) []GridCell {
	var ids []int
	switch areaType {
	case AreaBasin:
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil
		}
		ids = c.basinCells[id]
	case AreaCountry:
		ids = c.countryCells[key]
	case AreaCell:
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil
		}
		if _, ok := c.cells[id]; ok {
			ids = []int{id}
		}
	}
	out := make([]GridCell, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.cells[id])
	}
	return out
}

// BasinFeatures returns the basin polygons with ids assigned.
func (c *Catalog) BasinFeatures() FeatureCollection { return c.basinFeatures }

// CountryFeatures returns the country polygons with ids assigned.
func (c *Catalog) CountryFeatures() FeatureCollection { return c.countryFeatures }
