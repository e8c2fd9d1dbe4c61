package domain

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// AggregateRequest holds the parameters of one aggregation. A zero Units
// keeps the dataset's native unit.
type AggregateRequest struct {
	AreaType  AreaType
	Statistic Statistic
	Periods   []string
	Units     Unit
}

// AggregateRow is one area or cell of an aggregate table. Key is the id the
// renderer joins on: basin id, country name or grid id. Parent-area lists
// run in the reverse direction (basins list their countries, countries list
// their basins) so the renderer can filter without recomputing.
type AggregateRow struct {
	Key          string   `json:"key"`
	BasinID      int      `json:"basin_id,omitempty"`
	BasinName    string   `json:"basin_name,omitempty"`
	CountryID    int      `json:"country_id,omitempty"`
	CountryName  string   `json:"country_name,omitempty"`
	CountryIDs   []int    `json:"country_ids,omitempty"`
	CountryNames []string `json:"country_names,omitempty"`
	BasinIDs     []int    `json:"basin_ids,omitempty"`
	GridID       int      `json:"grid_id,omitempty"`
	Longitude    float64  `json:"longitude,omitempty"`
	Latitude     float64  `json:"latitude,omitempty"`
	AreaHectares float64  `json:"area_hectares"`
	Value        float64  `json:"var"`
}

// AggregateTable is the result of one aggregation. Tables are never
// modified after they are built; reducers return new tables.
type AggregateTable struct {
	AreaType  AreaType       `json:"area_type"`
	Statistic Statistic      `json:"statistic"`
	Unit      Unit           `json:"unit"`
	Periods   []string       `json:"periods"`
	Rows      []AggregateRow `json:"rows"`
}

// Keys returns the row keys in table order.
func (t *AggregateTable) Keys() []string {
	keys := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		keys[i] = r.Key
	}
	return keys
}

// areaGroup accumulates the per-period spatial sum of the mapped dataset
// rows belonging to one area.
type areaGroup struct {
	key   string
	cells []GridCell
	sums  []float64
	area  float64
}

// Aggregate joins the dataset to the catalog, sums each selected period
// within every basin or country (cells are taken as they are), reduces the
// sums across time with the statistic and converts the result using the
// group's total area. Rows missing from the catalog are skipped.
func Aggregate(ds *Dataset, cat *Catalog, req AggregateRequest) (*AggregateTable, error) {
	if ds == nil || cat == nil {
		return nil, errors.New("aggregate: dataset and catalog are required")
	}
	if !slices.Contains(Statistics, req.Statistic) {
		return nil, &InvalidStatisticError{Statistic: string(req.Statistic)}
	}
	areaType, err := ParseAreaType(string(req.AreaType))
	if err != nil {
		return nil, err
	}
	req.AreaType = areaType
	target, err := targetUnit(ds.Unit, req.Units)
	if err != nil {
		return nil, err
	}
	cols, err := ds.columnIndexes(req.Periods)
	if err != nil {
		return nil, err
	}

	groups := groupRows(ds, cat, req.AreaType, cols, nil)
	sortGroups(req.AreaType, groups)

	table := &AggregateTable{
		AreaType:  req.AreaType,
		Statistic: req.Statistic,
		Unit:      target,
		Periods:   slices.Clone(req.Periods),
		Rows:      make([]AggregateRow, 0, len(groups)),
	}
	for _, g := range groups {
		v, err := req.Statistic.Compute(g.sums)
		if err != nil {
			return nil, err
		}
		if v, err = ConvertUnit(v, ds.Unit, target, g.area); err != nil {
			return nil, fmt.Errorf("area %s: %w", g.key, err)
		}
		row := describeGroup(req.AreaType, g, cat)
		row.Value = v
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// SeriesPoint is one period of a hydrograph.
type SeriesPoint struct {
	Period string  `json:"period"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
}

// Series is the per-period time series of one area or cell.
type Series struct {
	AreaType AreaType      `json:"area_type"`
	Key      string        `json:"key"`
	Name     string        `json:"name,omitempty"`
	Unit     Unit          `json:"unit"`
	Points   []SeriesPoint `json:"points"`
}

// Hydrograph returns the spatial sum of an area's mapped cells for every
// selected period, converted with the area's total cell area.
func Hydrograph(ds *Dataset, cat *Catalog, areaType AreaType, key string, periods []string, units Unit) (*Series, error) {
	if ds == nil || cat == nil {
		return nil, errors.New("hydrograph: dataset and catalog are required")
	}
	areaType, err := ParseAreaType(string(areaType))
	if err != nil {
		return nil, err
	}
	target, err := targetUnit(ds.Unit, units)
	if err != nil {
		return nil, err
	}
	cols, err := ds.columnIndexes(periods)
	if err != nil {
		return nil, err
	}

	groups := groupRows(ds, cat, areaType, cols, func(k string) bool { return k == key })
	if len(groups) == 0 {
		return nil, fmt.Errorf("%s %q: %w", areaType, key, ErrAreaNotFound)
	}
	g := groups[0]

	s := &Series{AreaType: areaType, Key: key, Unit: target, Points: make([]SeriesPoint, len(periods))}
	switch areaType {
	case AreaBasin:
		s.Name = cat.BasinName(g.cells[0].BasinID)
	case AreaCountry:
		s.Name = key
	}
	for i, p := range periods {
		v, err := ConvertUnit(g.sums[i], ds.Unit, target, g.area)
		if err != nil {
			return nil, err
		}
		s.Points[i] = SeriesPoint{Period: p, Label: PeriodLabel(p), Value: v}
	}
	return s, nil
}

// targetUnit resolves the requested output unit and fails early when the
// dataset unit cannot be converted to it.
func targetUnit(from, requested Unit) (Unit, error) {
	if requested == UnitUnknown || requested == from {
		return from, nil
	}
	if _, ok := conversions[unitPair{from, requested}]; !ok {
		return "", &UnsupportedUnitConversionError{From: from, To: requested}
	}
	return requested, nil
}

// groupRows builds one group per area in first-seen dataset order. When
// keep is set only areas whose key passes it are accumulated.
func groupRows(ds *Dataset, cat *Catalog, areaType AreaType, cols []int, keep func(string) bool) []*areaGroup {
	index := make(map[string]*areaGroup)
	var order []*areaGroup
	for i, id := range ds.CellIDs {
		cell, ok := cat.Cell(id)
		if !ok {
			continue
		}
		key := areaKey(areaType, cell)
		if keep != nil && !keep(key) {
			continue
		}
		g, ok := index[key]
		if !ok {
			g = &areaGroup{key: key, sums: make([]float64, len(cols))}
			index[key] = g
			order = append(order, g)
		}
		row := ds.Values[i]
		for j, c := range cols {
			g.sums[j] += row[c]
		}
		g.cells = append(g.cells, cell)
		g.area += cell.AreaHectares
	}
	return order
}

func sortGroups(areaType AreaType, groups []*areaGroup) {
	switch areaType {
	case AreaBasin:
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].cells[0].BasinID < groups[j].cells[0].BasinID
		})
	case AreaCountry:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	}
}

func describeGroup(areaType AreaType, g *areaGroup, cat *Catalog) AggregateRow {
	first := g.cells[0]
	row := AggregateRow{Key: g.key, AreaHectares: g.area}
	switch areaType {
	case AreaBasin:
		row.BasinID = first.BasinID
		row.BasinName = cat.BasinName(first.BasinID)
		row.CountryIDs, row.CountryNames = cat.CountriesForBasin(first.BasinID)
	case AreaCountry:
		row.CountryID = cat.CountryID(first.CountryName)
		row.CountryName = first.CountryName
		row.BasinIDs = cat.BasinsForCountry(first.CountryName)
	case AreaCell:
		row.GridID = first.GridID
		row.BasinID = first.BasinID
		row.BasinName = first.BasinName
		row.CountryID = first.CountryID
		row.CountryName = first.CountryName
		row.Longitude = first.Longitude
		row.Latitude = first.Latitude
	}
	return row
}

// GroupKey returns the key a grid cell aggregates under.
func GroupKey(areaType AreaType, gridID int, cat *Catalog) (string, bool) {
	cell, ok := cat.Cell(gridID)
	if !ok {
		return "", false
	}
	return areaKey(areaType, cell), true
}
