package geo

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
)

// fakeGpsd accepts one client, checks the WATCH command and replays lines.
func fakeGpsd(t *testing.T, lines ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		cmd, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil || cmd != gpsdWatch {
			return
		}
		for _, l := range lines {
			if _, err := conn.Write([]byte(l + "\n")); err != nil {
				return
			}
		}
		// hold the connection like a live daemon
		time.Sleep(2 * time.Second)
	}()
	return ln.Addr().String()
}

func TestGpsd_FirstUsableFix(t *testing.T) {
	t.Parallel()

	addr := fakeGpsd(t,
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"TPV","mode":1}`,
		`not json`,
		`{"class":"TPV","mode":3,"time":"2024-03-05T10:11:12.000Z","lat":18.5204,"lon":73.8567,"epx":4.5,"epy":7.25}`,
	)

	f, err := Current(context.Background(), Gpsd{Addr: addr}, time.Second)
	require.NoError(t, err)
	require.InDelta(t, 18.5204, f.Position.Latitude, 1e-9)
	require.InDelta(t, 73.8567, f.Position.Longitude, 1e-9)
	require.Equal(t, 7.25, f.Position.Accuracy)
	require.Equal(t, 2024, f.Time.Year())
}

func TestGpsd_NoFixTimesOut(t *testing.T) {
	t.Parallel()

	addr := fakeGpsd(t, `{"class":"TPV","mode":1}`)
	_, err := Current(context.Background(), Gpsd{Addr: addr}, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestGpsd_Unreachable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Current(context.Background(), Gpsd{Addr: addr}, time.Second)
	require.ErrorIs(t, err, ErrPositionUnavailable)
}

func TestLines(t *testing.T) {
	t.Parallel()

	src := Lines{R: strings.NewReader("# trace\n\n18.52,73.85\nbad line\n18.53, 73.86, 12\n")}
	ch, err := src.Watch(context.Background())
	require.NoError(t, err)

	var got []model.Position
	for f := range ch {
		got = append(got, f.Position)
	}
	require.Equal(t, []model.Position{
		{Latitude: 18.52, Longitude: 73.85},
		{Latitude: 18.53, Longitude: 73.86, Accuracy: 12},
	}, got)
}

func TestLines_CancelUnblocksIdleReader(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()
	go func() { _, _ = pw.Write([]byte("18.52,73.85\n")) }()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Lines{R: pr}.Watch(ctx)
	require.NoError(t, err)

	select {
	case f := <-ch:
		require.Equal(t, 18.52, f.Position.Latitude)
	case <-time.After(time.Second):
		t.Fatal("no fix")
	}

	// the writer stays open, so only cancellation can end the scan
	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestLines_EmptyIsUnavailable(t *testing.T) {
	t.Parallel()

	_, err := Current(context.Background(), Lines{R: strings.NewReader("")}, time.Second)
	require.ErrorIs(t, err, ErrPositionUnavailable)
}

func TestOpenLines_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := OpenLines(filepath.Join(t.TempDir(), "nope.txt"), 0)
	require.ErrorIs(t, err, ErrPositionUnavailable)

	if os.Geteuid() == 0 {
		return // root ignores file modes
	}
	p := filepath.Join(t.TempDir(), "locked.txt")
	require.NoError(t, os.WriteFile(p, []byte("1,2\n"), 0o000))
	_, _, err = OpenLines(p, 0)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestStatic(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Static{Position: model.Position{Latitude: 12.97, Longitude: 77.59}}.Watch(ctx)
	require.NoError(t, err)
	f := <-ch
	require.Equal(t, 12.97, f.Position.Latitude)
	cancel()
	_, ok := <-ch
	require.False(t, ok)

	_, err = Static{Position: model.Position{Latitude: 95}}.Watch(context.Background())
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestParsePosition(t *testing.T) {
	t.Parallel()

	p, err := ParsePosition(" 18.5 , 73.8 ")
	require.NoError(t, err)
	require.Equal(t, model.Position{Latitude: 18.5, Longitude: 73.8}, p)

	for _, bad := range []string{"", "18.5", "a,b", "18,200", "1,2,3,4", "NaN,NaN", "Inf,0", "0,-Inf", "18.5,73.8,NaN"} {
		_, err := ParsePosition(bad)
		require.ErrorIs(t, err, errs.ErrValidation, bad)
	}
}

func TestMessage_Distinct(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, err := range []error{ErrPermissionDenied, ErrPositionUnavailable, ErrTimeout, errors.New("x")} {
		m := Message(err)
		require.False(t, seen[m], "duplicate message %q", m)
		seen[m] = true
	}
}

func TestGeocoder(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/reverse", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("User-Agent") != DefaultUserAgent {
			http.Error(w, "no agent", http.StatusForbidden)
			return
		}
		switch req.URL.Query().Get("lat") {
		case "18.52":
			w.Write([]byte(`{"display_name":"Shivajinagar, Pune, Maharashtra, India"}`))
		case "19.07":
			w.Write([]byte(`{"address":{"road":"Linking Road","suburb":"Bandra West","city":"Mumbai","country":"India"}}`))
		case "0":
			w.Write([]byte(`{"error":"Unable to geocode"}`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	g := NewGeocoder(srv.URL, "", zaptest.NewLogger(t))
	ctx := context.Background()
	require.Equal(t, "Shivajinagar, Pune, Maharashtra, India", g.Reverse(ctx, 18.52, 73.85))
	require.Equal(t, "Linking Road, Bandra West, Mumbai, India", g.Reverse(ctx, 19.07, 72.83))
	require.Equal(t, "Coordinates: 0.000000, 0.000000", g.Reverse(ctx, 0, 0))
	require.Equal(t, "Coordinates: 28.613900, 77.209000", g.Reverse(ctx, 28.6139, 77.209))
}

func TestDistance(t *testing.T) {
	t.Parallel()

	pune := model.Position{Latitude: 18.5204, Longitude: 73.8567}
	mumbai := model.Position{Latitude: 19.0760, Longitude: 72.8777}
	d := Distance(pune, mumbai)
	if math.Abs(d-120) > 5 {
		t.Fatalf("Pune to Mumbai: got %.1f km", d)
	}
	if Distance(pune, pune) != 0 {
		t.Fatalf("zero distance expected")
	}
}

func TestDirectionsURL(t *testing.T) {
	t.Parallel()

	dest := model.Position{Latitude: 18.52, Longitude: 73.85}
	require.Equal(t, "https://www.google.com/maps/search/?api=1&query=18.52%2C73.85", DirectionsURL(nil, dest))
	require.Equal(t,
		"https://www.google.com/maps/dir/?api=1&destination=18.52%2C73.85&origin=18.5%2C73.8&travelmode=driving",
		DirectionsURL(&model.Position{Latitude: 18.5, Longitude: 73.8}, dest))
	require.Equal(t, "18.520000, 73.850000", FormatCoordinates(18.52, 73.85))
}
