package http

import (
	"fmt"

	"github.com/ctessum/geom"

	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
)

// SelectionEvent is the map renderer's click or selection payload. Clicks
// carry one point; box and lasso selections carry their member points plus
// the selected range or lasso outline in map coordinates.
type SelectionEvent struct {
	Points      []EventPoint `json:"points"`
	Range       *mapShape    `json:"range,omitempty"`
	LassoPoints *mapShape    `json:"lassoPoints,omitempty"`
}

// EventPoint is one map feature hit by an interaction. CustomData is either
// an object keyed by basin_id, country_name or cell_id, or a list whose
// first element is the id.
type EventPoint struct {
	Location   any `json:"location,omitempty"`
	CustomData any `json:"customdata,omitempty"`
}

type mapShape struct {
	Mapbox [][]float64 `json:"mapbox"`
}

// Selection normalizes the event into a domain selection. scope is what the
// ids of the current map identify; points tagged with a cell_id switch the
// scope to grid cells. A nil or empty event is no selection.
func (e *SelectionEvent) Selection(scope domain.AreaType) (domain.Selection, error) {
	if e == nil {
		return nil, nil
	}
	ids, of := e.identifiers(scope)

	switch {
	case e.LassoPoints != nil:
		poly, err := e.LassoPoints.polygon()
		if err != nil {
			return nil, err
		}
		return domain.LassoSelect{Of: of, Members: ids, Polygon: poly}, nil
	case e.Range != nil:
		box, err := e.Range.bounds()
		if err != nil {
			return nil, err
		}
		return domain.BoxSelect{Of: of, Members: ids, Box: box}, nil
	case len(ids) == 1:
		return domain.Click{Of: of, ID: ids[0]}, nil
	case len(ids) > 1:
		return domain.BoxSelect{Of: of, Members: ids}, nil
	default:
		return nil, nil
	}
}

func (e *SelectionEvent) identifiers(scope domain.AreaType) ([]string, domain.AreaType) {
	of := scope
	raw := make([]any, 0, len(e.Points))
	for _, p := range e.Points {
		switch cd := p.CustomData.(type) {
		case map[string]any:
			if id, ok := cd["cell_id"]; ok {
				raw = append(raw, id)
				of = domain.AreaCell
				continue
			}
			if id, ok := cd[customDataKey(scope)]; ok {
				raw = append(raw, id)
				continue
			}
		case []any:
			if len(cd) > 0 {
				raw = append(raw, cd[0])
				continue
			}
		}
		if p.Location != nil {
			raw = append(raw, p.Location)
		}
	}
	return domain.IdentifierStrings(raw), of
}

func customDataKey(scope domain.AreaType) string {
	switch scope {
	case domain.AreaCountry:
		return "country_name"
	case domain.AreaCell:
		return "cell_id"
	default:
		return "basin_id"
	}
}

func (s *mapShape) points() ([]geom.Point, error) {
	out := make([]geom.Point, len(s.Mapbox))
	for i, xy := range s.Mapbox {
		if len(xy) != 2 {
			return nil, &domain.InputError{Field: "event", Value: fmt.Sprint(xy), Message: "coordinates must be [lon, lat]"}
		}
		out[i] = geom.Point{X: xy[0], Y: xy[1]}
	}
	return out, nil
}

func (s *mapShape) bounds() (*geom.Bounds, error) {
	pts, err := s.points()
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, &domain.InputError{Field: "event", Message: "a box range needs two corners"}
	}
	b := geom.NewBounds()
	for _, p := range pts {
		b.Extend(p.Bounds())
	}
	return b, nil
}

func (s *mapShape) polygon() (geom.Polygon, error) {
	pts, err := s.points()
	if err != nil {
		return nil, err
	}
	if len(pts) < 3 {
		return nil, &domain.InputError{Field: "event", Message: "a lasso needs at least three points"}
	}
	if pts[0] != pts[len(pts)-1] {
		pts = append(pts, pts[0])
	}
	return geom.Polygon{pts}, nil
}
