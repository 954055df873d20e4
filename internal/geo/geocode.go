package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent   = "PashuRakshak/1.0 (Animal Rescue App)"
	geocodeTimeout     = 8 * time.Second
)

// Geocoder turns coordinates into a display address using a Nominatim-style
// reverse endpoint.
type Geocoder struct {
	base      string
	userAgent string
	http      *http.Client
	log       *zap.Logger
}

// NewGeocoder builds a Geocoder. Empty base or user agent take the defaults.
func NewGeocoder(base, userAgent string, log *zap.Logger) *Geocoder {
	if base == "" {
		base = DefaultGeocoderURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Geocoder{
		base:      strings.TrimRight(base, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: geocodeTimeout},
		log:       log,
	}
}

type nominatim struct {
	Error       string            `json:"error"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

// Reverse never fails: any lookup problem yields the "Coordinates: lat, lon" text.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) string {
	addr, err := g.lookup(ctx, lat, lon)
	if err != nil {
		g.log.Warn("reverse geocoding failed", zap.Error(err))
		return "Coordinates: " + FormatCoordinates(lat, lon)
	}
	return addr
}

func (g *Geocoder) lookup(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")
	q.Set("accept-language", "en")

	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var body nominatim
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Error != "" {
		return "", fmt.Errorf("geocoder: %s", body.Error)
	}
	if body.DisplayName != "" {
		return body.DisplayName, nil
	}
	if s := joinAddress(body.Address); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("no address data")
}

// address components in display order; alternatives for one slot are tried left to right
var addressSlots = [][]string{
	{"house_number"},
	{"road", "pedestrian", "path"},
	{"neighbourhood", "suburb", "quarter"},
	{"city", "town", "village", "municipality"},
	{"state", "province"},
	{"postcode"},
	{"country"},
}

func joinAddress(a map[string]string) string {
	var parts []string
	for _, slot := range addressSlots {
		for _, k := range slot {
			if v := a[k]; v != "" {
				parts = append(parts, v)
				break
			}
		}
	}
	return strings.Join(parts, ", ")
}
