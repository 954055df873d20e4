package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/model"
)

func startBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() { _ = server.Serve(ln) }()
	return ln.Addr().String()
}

// tcpDialer dials the broker directly and remembers the last stream so tests
// can cut it.
type tcpDialer struct {
	addr  string
	mu    sync.Mutex
	last  net.Conn
	dials atomic.Int32
}

func (d *tcpDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	c, err := (&net.Dialer{}).DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, err
	}
	d.dials.Add(1)
	d.mu.Lock()
	d.last = c
	d.mu.Unlock()
	return c, nil
}

func (d *tcpDialer) cut() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last.Close()
}

func runConn(t *testing.T, opts Options) *Conn {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	c := NewConn(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)
	return c
}

func workerIdentity() model.Identity {
	ngo := int64(10)
	return model.Identity{ID: 100, Username: "ravi", NgoID: &ngo, Roles: []model.Role{model.RoleNGOWorker}}
}

func tasks() []model.Report {
	return []model.Report{
		{TrackingID: "AR-2024-002", Status: model.StatusHelpOnTheWay},
		{TrackingID: "AR-2024-003", Status: model.StatusCaseResolved},
		{TrackingID: "AR-2024-005", Status: model.StatusTeamDispatched},
	}
}

func TestRelay_PublishesForEachActiveCase(t *testing.T) {
	t.Parallel()

	addr := startBroker(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	d := &tcpDialer{addr: addr}
	conn := runConn(t, Options{Dial: d.Dial, Host: "localhost", Metrics: m})
	require.Equal(t, 1.0, testutil.ToFloat64(m.Connected))

	observer, err := stomp.Dial("tcp", addr)
	require.NoError(t, err)
	defer observer.MustDisconnect()
	sub, err := observer.Subscribe(DestLocationUpdate, stomp.AckAuto)
	require.NoError(t, err)

	r, err := NewRelay(conn, geo.Static{Position: model.Position{Latitude: 18.52, Longitude: 73.85}}, workerIdentity(),
		RelayOptions{Metrics: m, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.Equal(t, 2, r.SetAssignments(tasks()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	got := map[string]model.LocationUpdate{}
	for len(got) < 2 {
		select {
		case msg := <-sub.C:
			require.NoError(t, msg.Err)
			var u model.LocationUpdate
			require.NoError(t, json.Unmarshal(msg.Body, &u))
			got[u.TrackingID] = u
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, have %v", got)
		}
	}
	require.Contains(t, got, "AR-2024-002")
	require.Contains(t, got, "AR-2024-005")
	require.Equal(t, int64(100), got["AR-2024-002"].WorkerID)
	require.Equal(t, 73.85, got["AR-2024-005"].Longitude)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 2.0, testutil.ToFloat64(m.Published))
	require.Equal(t, 0.0, testutil.ToFloat64(m.Dropped))
	fix, ok := r.Latest()
	require.True(t, ok)
	require.Equal(t, 18.52, fix.Position.Latitude)
}

func TestRelay_DropsWhileDisconnected(t *testing.T) {
	t.Parallel()

	m := NewMetrics(nil)
	down := NewConn(Options{Dial: func(context.Context) (io.ReadWriteCloser, error) {
		return nil, errors.New("refused")
	}})
	require.ErrorIs(t, down.Publish(DestLocationUpdate, model.LocationUpdate{}), ErrNotConnected)

	src := geo.Lines{R: strings.NewReader("18.52,73.85\n18.53,73.86\n")}
	r, err := NewRelay(down, src, workerIdentity(), RelayOptions{Metrics: m, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	r.SetAssignments(tasks())

	require.NoError(t, r.Run(context.Background()), "source running dry ends the relay")
	require.Equal(t, 4.0, testutil.ToFloat64(m.Dropped))
	require.Equal(t, 0.0, testutil.ToFloat64(m.Published))
	fix, _ := r.Latest()
	require.Equal(t, 18.53, fix.Position.Latitude)
}

func TestRelay_Preconditions(t *testing.T) {
	t.Parallel()

	conn := NewConn(Options{})
	src := geo.Static{Position: model.Position{Latitude: 1, Longitude: 1}}

	ngo := int64(10)
	_, err := NewRelay(conn, src, model.Identity{ID: 2, NgoID: &ngo, Roles: []model.Role{model.RoleNGO}}, RelayOptions{})
	require.ErrorIs(t, err, errs.ErrForbidden)

	r, err := NewRelay(conn, src, workerIdentity(), RelayOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, r.SetAssignments([]model.Report{{TrackingID: "AR-2024-003", Status: model.StatusCaseResolved}}))
	require.ErrorIs(t, r.Run(context.Background()), ErrNoActiveAssignments)

	boom := errors.New("boom")
	r, err = NewRelay(conn, src, workerIdentity(), RelayOptions{
		Refresh: func(context.Context) ([]model.Report, error) { return nil, boom },
	})
	require.NoError(t, err)
	require.ErrorIs(t, r.Run(context.Background()), boom)
}

func TestRelay_StopsWhenCasesResolve(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	refresh := func(context.Context) ([]model.Report, error) {
		if calls.Add(1) == 1 {
			return tasks(), nil
		}
		return []model.Report{{TrackingID: "AR-2024-002", Status: model.StatusCaseResolved}}, nil
	}
	src := geo.Static{Position: model.Position{Latitude: 1, Longitude: 1}}
	r, err := NewRelay(NewConn(Options{}), src, workerIdentity(), RelayOptions{
		Refresh:      refresh,
		RefreshEvery: 20 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	require.NoError(t, ctx.Err(), "relay must stop on its own")
	require.Empty(t, r.Active())
}

func TestConn_ReconnectsAndResubscribes(t *testing.T) {
	t.Parallel()

	addr := startBroker(t)
	d := &tcpDialer{addr: addr}
	conn := runConn(t, Options{Dial: d.Dial, ReconnectDelay: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := Follow(ctx, conn, "AR-2024-002", zaptest.NewLogger(t))

	observer, err := stomp.Dial("tcp", addr)
	require.NoError(t, err)
	defer observer.MustDisconnect()

	// topic messages without a subscriber are lost, so keep sending until one arrives
	receive := func(worker int64) func() bool {
		return func() bool {
			body, _ := json.Marshal(model.LocationUpdate{TrackingID: "AR-2024-002", WorkerID: worker, Latitude: 18.5})
			if err := observer.Send("/topic/case/AR-2024-002", "application/json", body); err != nil {
				return false
			}
			timeout := time.After(50 * time.Millisecond)
			for {
				select {
				case u := <-updates:
					if u.WorkerID == worker {
						return true
					}
				case <-timeout:
					return false
				}
			}
		}
	}
	require.Eventually(t, receive(100), 2*time.Second, 10*time.Millisecond)

	d.cut()
	require.Eventually(t, func() bool { return d.dials.Load() == 2 && conn.Connected() }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, receive(101), 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-updates
		return !open
	}, time.Second, 10*time.Millisecond)
}

// wsListener hands websocket streams accepted by an HTTP handler to the broker.
type wsListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func (l *wsListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *wsListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *wsListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestConn_OverWebSocket(t *testing.T) {
	t.Parallel()

	l := &wsListener{conns: make(chan net.Conn), done: make(chan struct{})}
	go func() { _ = server.Serve(l) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/websocket", func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"v12.stomp"}})
		if err != nil {
			return
		}
		select {
		case l.conns <- websocket.NetConn(context.Background(), c, websocket.MessageText):
		case <-l.done:
			c.CloseNow()
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { l.Close() })

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/websocket"
	follower := runConn(t, Options{URL: wsURL, Token: func() string { return "tok" }})
	sender := runConn(t, Options{URL: wsURL})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := Follow(ctx, follower, "AR-2024-007", nil)

	require.Eventually(t, func() bool {
		if err := sender.Publish("/topic/case/AR-2024-007", model.LocationUpdate{TrackingID: "AR-2024-007", WorkerID: 7}); err != nil {
			return false
		}
		select {
		case u := <-updates:
			return u.WorkerID == 7
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
