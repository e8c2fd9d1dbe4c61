package domain

import (
	"context"
	"log/slog"
)

// LabelViewHint names the place under the hint's centre. If geocoder is nil,
// the hint has no centre, or the lookup fails, the hint is returned as is.
func LabelViewHint(ctx context.Context, hint ViewHint, geocoder Geocoder, logger *slog.Logger) ViewHint {
	if geocoder == nil || hint.Center == nil {
		return hint
	}

	place, err := geocoder.ReverseGeocode(ctx, hint.Center.Lat, hint.Center.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", hint.Center.Lat,
			"lon", hint.Center.Lon,
			"error", err,
		)
		return hint
	}
	if place.FullName != "" {
		hint.Place = place.FullName
	} else {
		hint.Place = place.Name
	}
	return hint
}
