package geo

import (
	"fmt"
	"math"
	"net/url"

	"github.com/pashurakshak/rakshak/internal/model"
)

const earthRadiusKm = 6371

// Distance is the great-circle distance between a and b in kilometers.
func Distance(a, b model.Position) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(b.Latitude - a.Latitude)
	dLon := rad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Latitude))*math.Cos(rad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatCoordinates renders "lat, lon" with six decimals.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

// DirectionsURL links to driving directions to dest, or to a map search when
// the origin is unknown.
func DirectionsURL(origin *model.Position, dest model.Position) string {
	to := fmt.Sprintf("%v,%v", dest.Latitude, dest.Longitude)
	if origin == nil {
		q := url.Values{"api": {"1"}, "query": {to}}
		return "https://www.google.com/maps/search/?" + q.Encode()
	}
	q := url.Values{
		"api":         {"1"},
		"origin":      {fmt.Sprintf("%v,%v", origin.Latitude, origin.Longitude)},
		"destination": {to},
		"travelmode":  {"driving"},
	}
	return "https://www.google.com/maps/dir/?" + q.Encode()
}
