// Package geo resolves the device position and turns coordinates into text.
//
// A position attempt fails with one of three classes, each terminal for that
// attempt: ErrPermissionDenied, ErrPositionUnavailable or ErrTimeout. Nothing
// here retries on its own; the user picks a new source or enters coordinates.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")
)

// DefaultTimeout bounds a one-shot position request.
const DefaultTimeout = 10 * time.Second

// Fix is a single position sample.
type Fix struct {
	Position model.Position
	Time     time.Time
}

// Source produces position samples.
//
// Watch returns a channel that is closed when ctx ends or the source runs
// dry. Errors opening the source are returned as one of the package errors.
type Source interface {
	Watch(ctx context.Context) (<-chan Fix, error)
}

// Current waits for the first fix of src.
func Current(ctx context.Context, src Source, timeout time.Duration) (Fix, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, err := src.Watch(ctx)
	if err != nil {
		return Fix{}, err
	}
	select {
	case f, ok := <-ch:
		if ok {
			return f, nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fix{}, ErrTimeout
		}
		if ctx.Err() != nil {
			return Fix{}, ctx.Err()
		}
		return Fix{}, ErrPositionUnavailable
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fix{}, ErrTimeout
		}
		return Fix{}, ctx.Err()
	}
}

// Message is the user-facing explanation of a position failure.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Location access denied. Allow access to the location source or enter coordinates manually."
	case errors.Is(err, ErrPositionUnavailable):
		return "Location services unavailable. Check that the GPS source is running or enter coordinates manually."
	case errors.Is(err, ErrTimeout):
		return "Location request timed out. Try again in a few moments or enter coordinates manually."
	default:
		return "Location detection failed. Enter coordinates manually."
	}
}

// ParsePosition reads "lat,lon" or "lat,lon,accuracy".
func ParsePosition(s string) (model.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return model.Position{}, errs.Field("position", fmt.Sprintf("%q: want lat,lon", s))
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.Position{}, errs.Field("position", fmt.Sprintf("%q: not a number", strings.TrimSpace(p)))
		}
		vals[i] = v
	}
	pos := model.Position{Latitude: vals[0], Longitude: vals[1]}
	if len(vals) == 3 {
		if !finite(vals[2]) || vals[2] < 0 {
			return model.Position{}, errs.Field("accuracy", "must be a non-negative number")
		}
		pos.Accuracy = vals[2]
	}
	if err := Validate(pos.Latitude, pos.Longitude); err != nil {
		return model.Position{}, err
	}
	return pos, nil
}

// Validate checks coordinate ranges. NaN and infinities are out of range.
func Validate(lat, lon float64) error {
	if !finite(lat) || lat < -90 || lat > 90 {
		return errs.Field("latitude", "must be between -90 and 90")
	}
	if !finite(lon) || lon < -180 || lon > 180 {
		return errs.Field("longitude", "must be between -180 and 180")
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
