package geocode

import (
	"context"
	"log/slog"

	"github.com/albapepper/skyvibes/internal/metrics"
)

// PlaceholderName is used whenever no locality can be resolved.
const PlaceholderName = "Your location"

// Reverser looks up the address for a coordinate pair.
type Reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}

// Location is the resolved context for one device in one run.
type Location struct {
	Latitude  float64
	Longitude float64
	PlaceName string // never empty
}

// Resolver applies the fallback coordinate and placeholder rules around a
// Reverser. It never returns an error.
type Resolver struct {
	reverser    Reverser
	fallbackLat float64
	fallbackLon float64
	logger      *slog.Logger
}

// NewResolver creates a resolver. fallbackLat/fallbackLon replace whichever
// coordinate a device is missing.
func NewResolver(r Reverser, fallbackLat, fallbackLon float64, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		reverser:    r,
		fallbackLat: fallbackLat,
		fallbackLon: fallbackLon,
		logger:      logger,
	}
}

// Resolve returns the coordinates to use and a best-effort place name.
func (r *Resolver) Resolve(ctx context.Context, lat, lon *float64) Location {
	loc := Location{Latitude: r.fallbackLat, Longitude: r.fallbackLon}
	if lat != nil {
		loc.Latitude = *lat
	}
	if lon != nil {
		loc.Longitude = *lon
	}

	addr, err := r.reverser.Reverse(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		r.logger.Warn("Reverse geocoding failed, using placeholder",
			"lat", loc.Latitude, "lon", loc.Longitude, "error", err)
	}
	loc.PlaceName = addr.Locality()
	if loc.PlaceName == "" {
		loc.PlaceName = PlaceholderName
		metrics.GeocodeFallbacks.Inc()
	}
	return loc
}
