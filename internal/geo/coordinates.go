// Package geo holds the coordinate value type and great-circle helpers shared
// by the geocoder, the distance estimator and the stores.
package geo

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// EarthRadiusKM is the mean Earth radius used by Haversine.
const EarthRadiusKM = 6371.0

// SRID is the spatial reference used when points are stored in PostGIS.
const SRID = 4326

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// String renders the pair the way routing APIs expect it ("lat,lng").
func (c Coordinates) String() string {
	return fmt.Sprintf("%g,%g", c.Lat, c.Lng)
}

// Valid reports whether both components are inside their legal ranges.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

// Point converts the pair to a go-geom point (x = lng, y = lat) tagged with SRID 4326.
func (c Coordinates) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat}).SetSRID(SRID)
}

// EWKB encodes the pair as little-endian EWKB for ST_GeomFromEWKB.
func (c Coordinates) EWKB() ([]byte, error) {
	data, err := ewkb.Marshal(c.Point(), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// FromEWKB decodes an EWKB point. A nil or empty input yields nil, nil.
func FromEWKB(data []byte) (*Coordinates, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("geo: expected point, got %T", g)
	}
	if p.Empty() {
		return nil, nil
	}
	return &Coordinates{Lat: p.Y(), Lng: p.X()}, nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// HaversineKM returns the great-circle distance between a and b in kilometers.
func HaversineKM(a, b Coordinates) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKM * c
}

// RoundKM rounds a distance to one decimal place.
func RoundKM(km float64) float64 {
	return math.Round(km*10) / 10
}

// FormatDistance renders sub-kilometer distances in whole meters and
// everything else as "X.Y km".
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}
