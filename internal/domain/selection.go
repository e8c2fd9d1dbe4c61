package domain

import (
	"encoding/json"
	"strconv"

	"github.com/ctessum/geom"
)

// Map zoom levels used for view hints.
const (
	DefaultZoom   = 0.6
	SelectionZoom = 3
)

// Selection is a normalized map interaction. It is one of Click, BoxSelect
// or LassoSelect. Of names what the ids identify: basins, countries or grid
// cells.
type Selection interface {
	Scope() AreaType
	IDs() []string
	isSelection()
}

// Click selects a single area or cell.
type Click struct {
	Of AreaType
	ID string
}

// BoxSelect selects the areas or cells inside a rectangle. Box may be nil
// when the renderer only reports the member ids.
type BoxSelect struct {
	Of      AreaType
	Members []string
	Box     *geom.Bounds
}

// LassoSelect selects the areas or cells inside a free-hand polygon.
type LassoSelect struct {
	Of      AreaType
	Members []string
	Polygon geom.Polygon
}

func (c Click) Scope() AreaType       { return c.Of }
func (b BoxSelect) Scope() AreaType   { return b.Of }
func (l LassoSelect) Scope() AreaType { return l.Of }

func (c Click) IDs() []string       { return []string{c.ID} }
func (b BoxSelect) IDs() []string   { return b.Members }
func (l LassoSelect) IDs() []string { return l.Members }

func (Click) isSelection()       {}
func (BoxSelect) isSelection()   {}
func (LassoSelect) isSelection() {}

// Coordinate is a longitude/latitude pair.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Extent is a longitude/latitude bounding box.
type Extent struct {
	Min Coordinate `json:"min"`
	Max Coordinate `json:"max"`
}

// ViewHint tells the renderer where to centre the map after a selection.
// Center and Extent are nil when there is nothing to centre on.
type ViewHint struct {
	Center *Coordinate `json:"center,omitempty"`
	Extent *Extent     `json:"extent,omitempty"`
	Zoom   float64     `json:"zoom"`
	Place  string      `json:"place,omitempty"`
}

// SelectionResult is a reduced table plus the view hint derived from the
// cells it covers.
type SelectionResult struct {
	Table *AggregateTable `json:"table"`
	Hint  ViewHint        `json:"hint"`
}

// Flatten recursively unwraps nested slices into one flat list. Strings are
// atomic.
func Flatten(x any) []any {
	switch v := x.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, Flatten(item)...)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out
	default:
		return []any{x}
	}
}

// IdentifierStrings flattens a selection payload and renders every scalar
// as an identifier string. Whole numbers lose their decimal point so that
// 12 and 12.0 both match grid id "12". Empty and duplicate values are
// dropped.
func IdentifierStrings(x any) []string {
	var out []string
	seen := make(map[string]bool)
	for _, item := range Flatten(x) {
		id, ok := identifierString(item)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func identifierString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		return x.String(), true
	default:
		return "", false
	}
}

// DefaultViewHint is the whole-world view.
func DefaultViewHint() ViewHint { return ViewHint{Zoom: DefaultZoom} }

// ReduceBySelection keeps the rows of table that the selection covers and
// derives a view hint from the extent of their grid cells. A nil selection
// returns the table unchanged.
//
// Ids naming a different area type than the table are mapped through the
// catalog, so grid cells picked on the gridded map select their basins or
// countries and vice versa. A box or lasso without ids selects grid cells
// by centroid.
func ReduceBySelection(table *AggregateTable, sel Selection, cat *Catalog) *SelectionResult {
	if sel == nil {
		return &SelectionResult{Table: table, Hint: DefaultViewHint()}
	}
	m := newMatcher(sel)
	out := &AggregateTable{
		AreaType:  table.AreaType,
		Statistic: table.Statistic,
		Unit:      table.Unit,
		Periods:   table.Periods,
		Rows:      []AggregateRow{},
	}
	extent := geom.NewBounds()
	for _, row := range table.Rows {
		cells := cat.CellsInArea(table.AreaType, row.Key)
		if !m.anyCell(cells) {
			continue
		}
		out.Rows = append(out.Rows, row)
		for _, c := range cells {
			extent.Extend(cellPoint(c).Bounds())
		}
	}
	return &SelectionResult{Table: out, Hint: hintFor(extent)}
}

// FilterDataset narrows a dataset to the mapped grid cells covered by the
// selection, so that a gridded view can be computed over just those cells.
func FilterDataset(ds *Dataset, cat *Catalog, sel Selection) *Dataset {
	if sel == nil {
		return ds
	}
	m := newMatcher(sel)
	return ds.Subset(func(gridID int) bool {
		cell, ok := cat.Cell(gridID)
		return ok && m.cell(cell)
	})
}

type matcher struct {
	of   AreaType
	ids  map[string]bool
	box  *geom.Bounds
	poly geom.Polygon
}

func newMatcher(sel Selection) *matcher {
	m := &matcher{of: sel.Scope(), ids: make(map[string]bool)}
	for _, id := range sel.IDs() {
		m.ids[id] = true
	}
	switch s := sel.(type) {
	case BoxSelect:
		m.box = s.Box
	case LassoSelect:
		m.poly = s.Polygon
	}
	return m
}

func (m *matcher) cell(c GridCell) bool {
	if len(m.ids) > 0 {
		return m.ids[areaKey(m.of, c)]
	}
	pt := cellPoint(c)
	switch {
	case len(m.poly) > 0:
		return pt.Within(m.poly) != geom.Outside
	case m.box != nil:
		return m.box.Overlaps(pt.Bounds())
	}
	return false
}

func (m *matcher) anyCell(cells []GridCell) bool {
	for _, c := range cells {
		if m.cell(c) {
			return true
		}
	}
	return false
}

func cellPoint(c GridCell) geom.Point {
	return geom.Point{X: c.Longitude, Y: c.Latitude}
}

func hintFor(b *geom.Bounds) ViewHint {
	if b.Empty() {
		return DefaultViewHint()
	}
	return ViewHint{
		Center: &Coordinate{Lon: (b.Min.X + b.Max.X) / 2, Lat: (b.Min.Y + b.Max.Y) / 2},
		Extent: &Extent{
			Min: Coordinate{Lon: b.Min.X, Lat: b.Min.Y},
			Max: Coordinate{Lon: b.Max.X, Lat: b.Max.Y},
		},
		Zoom: SelectionZoom,
	}
}

// ViewMode is the dashboard map mode.
type ViewMode string

const (
	ViewNone    ViewMode = ""
	ViewArea    ViewMode = "area"
	ViewGridded ViewMode = "gridded"
)

// ParseViewMode accepts "area" and "gridded" (or "grid").
func ParseViewMode(s string) (ViewMode, error) {
	switch s {
	case "", "area":
		return ViewArea, nil
	case "gridded", "grid":
		return ViewGridded, nil
	default:
		return ViewNone, invalidf("view", s, "must be area or gridded")
	}
}

// ViewState tracks the dashboard map mode and the active selection. The
// zero value is the state before any dataset is loaded.
type ViewState struct {
	Mode      ViewMode
	Selection Selection
}

// Load moves to the unfiltered area view once a dataset is available.
func (s ViewState) Load() ViewState { return ViewState{Mode: ViewArea} }

// Switch changes between area and gridded views, keeping the selection.
// It is a no-op before a dataset is loaded.
func (s ViewState) Switch(mode ViewMode) ViewState {
	if s.Mode == ViewNone {
		return s
	}
	s.Mode = mode
	return s
}

// Select applies a selection in the current view.
func (s ViewState) Select(sel Selection) ViewState {
	if s.Mode == ViewNone {
		return s
	}
	s.Selection = sel
	return s
}

// Reset returns to the unfiltered area view.
func (s ViewState) Reset() ViewState {
	if s.Mode == ViewNone {
		return s
	}
	return ViewState{Mode: ViewArea}
}

// Filtered reports whether a selection constrains the view.
func (s ViewState) Filtered() bool { return s.Selection != nil }

// NeedsSelection reports whether the gridded view over rows dataset rows
// must wait for a selection. A limit of zero disables the check.
func (s ViewState) NeedsSelection(rows, limit int) bool {
	return s.Mode == ViewGridded && !s.Filtered() && limit > 0 && rows > limit
}
