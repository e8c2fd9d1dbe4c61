package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dataset is a decoded Xanthos output file: one row per grid cell and one
// column per period, held as a rows x periods matrix. A Dataset is shared
// between requests once stored and must not be modified.
type Dataset struct {
	Filename string
	Unit     Unit
	Variable Variable
	Periods  []string
	CellIDs  []int
	Values   [][]float64

	UploadedAt time.Time
}

// NewDataset checks the matrix shape and period columns and classifies the
// unit and variable from the filename.
func NewDataset(filename string, periods []string, cellIDs []int, values [][]float64) (*Dataset, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("no period columns")
	}
	width := len(periods[0])
	seen := make(map[string]bool, len(periods))
	for _, p := range periods {
		if !IsPeriodCode(p) {
			return nil, fmt.Errorf("column %q is not a period code", p)
		}
		if len(p) != width {
			return nil, fmt.Errorf("column %q: mixed period code widths", p)
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate period column %q", p)
		}
		seen[p] = true
	}
	if len(cellIDs) != len(values) {
		return nil, fmt.Errorf("%d ids for %d rows", len(cellIDs), len(values))
	}
	ids := make(map[int]bool, len(cellIDs))
	for i, row := range values {
		if ids[cellIDs[i]] {
			return nil, fmt.Errorf("row %d: duplicate id %d", i, cellIDs[i])
		}
		ids[cellIDs[i]] = true
		if len(row) != len(periods) {
			return nil, fmt.Errorf("row %d: %d values for %d periods", i, len(row), len(periods))
		}
	}
	return &Dataset{
		Filename: filename,
		Unit:     ClassifyUnit(filename),
		Variable: ClassifyVariable(filename),
		Periods:  periods,
		CellIDs:  cellIDs,
		Values:   values,

		UploadedAt: clock.Now().UTC(),
	}, nil
}

// Len returns the number of grid cell rows.
func (d *Dataset) Len() int { return len(d.CellIDs) }

// columnIndexes maps period codes to column positions, rejecting codes the
// dataset does not have.
func (d *Dataset) columnIndexes(periods []string) ([]int, error) {
	if len(periods) == 0 {
		return nil, invalidf("periods", "", "selection is empty")
	}
	pos := make(map[string]int, len(d.Periods))
	for i, p := range d.Periods {
		pos[p] = i
	}
	idx := make([]int, len(periods))
	for i, p := range periods {
		j, ok := pos[p]
		if !ok {
			return nil, invalidf("periods", p, "not a column of %s", d.Filename)
		}
		idx[i] = j
	}
	return idx, nil
}

// Subset returns a dataset holding only the rows whose grid id passes keep.
// Row slices are shared with d.
func (d *Dataset) Subset(keep func(gridID int) bool) *Dataset {
	out := &Dataset{
		Filename: d.Filename,
		Unit:     d.Unit,
		Variable: d.Variable,
		Periods:  d.Periods,

		UploadedAt: d.UploadedAt,
	}
	for i, id := range d.CellIDs {
		if keep(id) {
			out.CellIDs = append(out.CellIDs, id)
			out.Values = append(out.Values, d.Values[i])
		}
	}
	return out
}

// AreaType selects the spatial grouping of an aggregation.
type AreaType string

const (
	AreaBasin   AreaType = "basin"
	AreaCountry AreaType = "country"
	AreaCell    AreaType = "cell"
)

// ParseAreaType accepts "basin" (or "gcam"), "country", and "cell" (or
// "grid", "none") for the ungrouped gridded view.
func ParseAreaType(s string) (AreaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basin", "gcam":
		return AreaBasin, nil
	case "country":
		return AreaCountry, nil
	case "cell", "grid", "none":
		return AreaCell, nil
	default:
		return "", invalidf("area", s, "must be basin, country or cell")
	}
}

// areaKey returns the identifier of the area a cell belongs to.
func areaKey(areaType AreaType, cell GridCell) string {
	switch areaType {
	case AreaBasin:
		return strconv.Itoa(cell.BasinID)
	case AreaCountry:
		return cell.CountryName
	default:
		return strconv.Itoa(cell.GridID)
	}
}
