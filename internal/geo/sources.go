package geo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pashurakshak/rakshak/internal/model"
)

// DefaultGpsdAddr is where gpsd listens by default.
const DefaultGpsdAddr = "localhost:2947"

const gpsdWatch = `?WATCH={"enable":true,"json":true}` + "\n"

// Gpsd reads TPV reports from a gpsd daemon.
type Gpsd struct {
	Addr string
	// Dial is net.Dialer.DialContext when nil.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

type tpv struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Time  string  `json:"time"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Epx   float64 `json:"epx"`
	Epy   float64 `json:"epy"`
}

func (g Gpsd) Watch(ctx context.Context) (<-chan Fix, error) {
	addr := g.Addr
	if addr == "" {
		addr = DefaultGpsdAddr
	}
	dial := g.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: gpsd %s: %v", ErrPositionUnavailable, addr, err)
	}
	if _, err := io.WriteString(conn, gpsdWatch); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: gpsd %s: %v", ErrPositionUnavailable, addr, err)
	}

	out := make(chan Fix)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()

		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			var r tpv
			if json.Unmarshal(sc.Bytes(), &r) != nil || r.Class != "TPV" || r.Mode < 2 {
				continue
			}
			f := Fix{
				Position: model.Position{Latitude: r.Lat, Longitude: r.Lon, Accuracy: math.Max(r.Epx, r.Epy)},
				Time:     time.Now(),
			}
			if ts, err := time.Parse(time.RFC3339Nano, r.Time); err == nil {
				f.Time = ts
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Lines reads one "lat,lon[,accuracy]" sample per line. Blank lines and lines
// starting with '#' are skipped, as are lines that do not parse.
// When R is also an io.Closer it is closed once ctx ends, which unblocks a
// pending read on stdin or a pipe.
type Lines struct {
	R io.Reader
	// Interval paces samples; zero emits as fast as they are read.
	Interval time.Duration
}

// OpenLines opens a sample file; "-" is stdin.
func OpenLines(path string, interval time.Duration) (Lines, io.Closer, error) {
	if path == "-" {
		return Lines{R: os.Stdin, Interval: interval}, io.NopCloser(nil), nil
	}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return Lines{}, nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	case err != nil:
		return Lines{}, nil, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	return Lines{R: f, Interval: interval}, f, nil
}

func (l Lines) Watch(ctx context.Context) (<-chan Fix, error) {
	if l.R == nil {
		return nil, ErrPositionUnavailable
	}
	out := make(chan Fix)
	go func() {
		defer close(out)
		if c, ok := l.R.(io.Closer); ok {
			stop := context.AfterFunc(ctx, func() { _ = c.Close() })
			defer stop()
		}
		sc := bufio.NewScanner(l.R)
		first := true
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			pos, err := ParsePosition(line)
			if err != nil {
				continue
			}
			if !first && l.Interval > 0 {
				select {
				case <-time.After(l.Interval):
				case <-ctx.Done():
					return
				}
			}
			first = false
			select {
			case out <- Fix{Position: pos, Time: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Static reports a fixed, manually entered position once and then stays
// silent until ctx ends.
type Static struct {
	Position model.Position
}

func (s Static) Watch(ctx context.Context) (<-chan Fix, error) {
	if err := Validate(s.Position.Latitude, s.Position.Longitude); err != nil {
		return nil, err
	}
	out := make(chan Fix, 1)
	out <- Fix{Position: s.Position, Time: time.Now()}
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

var (
	_ Source = Gpsd{}
	_ Source = Lines{}
	_ Source = Static{}
)
