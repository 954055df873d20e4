// Package relay carries live worker positions over a STOMP connection.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
	"go.uber.org/zap"
)

const (
	// DefaultURL is the raw websocket endpoint of the broker's SockJS mount.
	DefaultURL = "ws://localhost:8080/ws/websocket"

	ReconnectDelay = 5 * time.Second
	HeartBeat      = 4 * time.Second

	dialTimeout = 10 * time.Second
	readLimit   = 1 << 20
)

// ErrNotConnected is returned by Publish while the connection is down.
var ErrNotConnected = errors.New("relay: not connected")

// Dialer opens the byte stream STOMP runs over. The stream must stay usable
// until ctx ends or it is closed.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// WebSocketDialer dials a STOMP-over-websocket endpoint.
func WebSocketDialer(rawURL string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		c, _, err := websocket.Dial(dctx, rawURL, &websocket.DialOptions{
			Subprotocols: []string{"v12.stomp", "v11.stomp"},
		})
		if err != nil {
			return nil, err
		}
		c.SetReadLimit(readLimit)
		return websocket.NetConn(ctx, c, websocket.MessageText), nil
	}
}

// Options configures a Conn.
type Options struct {
	Dial Dialer
	// Host is the STOMP virtual host; taken from URL when empty.
	Host string
	URL  string
	// Token is read on every connect; an empty token connects anonymously.
	Token          func() string
	ReconnectDelay time.Duration
	HeartBeat      time.Duration
	Metrics        *Metrics
	Logger         *zap.Logger
}

// Conn is a self-healing STOMP connection. Run keeps it up; Publish and
// Subscribe may be called at any time.
type Conn struct {
	dial      Dialer
	host      string
	token     func() string
	delay     time.Duration
	heartBeat time.Duration
	metrics   *Metrics
	log       *zap.Logger

	mu    sync.Mutex
	stomp *stomp.Conn
	subs  []*subscription
	lost  chan struct{}
}

type subscription struct {
	ctx  context.Context
	dest string
	out  chan []byte
	wg   sync.WaitGroup
}

// NewConn builds a Conn. Nothing is dialled until Run.
func NewConn(opts Options) *Conn {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Dial == nil {
		opts.Dial = WebSocketDialer(opts.URL)
	}
	if opts.Host == "" {
		if u, err := url.Parse(opts.URL); err == nil {
			opts.Host = u.Hostname()
		}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = ReconnectDelay
	}
	if opts.HeartBeat <= 0 {
		opts.HeartBeat = HeartBeat
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Token == nil {
		opts.Token = func() string { return "" }
	}
	return &Conn{
		dial:      opts.Dial,
		host:      opts.Host,
		token:     opts.Token,
		delay:     opts.ReconnectDelay,
		heartBeat: opts.HeartBeat,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		lost:      make(chan struct{}, 1),
	}
}

// Run connects and reconnects after a fixed delay until ctx ends.
func (c *Conn) Run(ctx context.Context) error {
	for {
		sc, err := c.connect(ctx)
		if err == nil {
			select {
			case <-ctx.Done():
				c.drop(sc)
				if err := sc.Disconnect(); err != nil {
					_ = sc.MustDisconnect()
				}
				c.log.Info("relay disconnected")
				return nil
			case <-c.lost:
				_ = sc.MustDisconnect()
			}
		} else if ctx.Err() == nil {
			c.log.Warn("relay connect failed", zap.Error(err), zap.Duration("retry_in", c.delay))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.delay):
		}
	}
}

func (c *Conn) connect(ctx context.Context) (*stomp.Conn, error) {
	rwc, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(c.host),
		stomp.ConnOpt.HeartBeat(c.heartBeat, c.heartBeat),
	}
	if tok := c.token(); tok != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+tok))
	}

	stop := context.AfterFunc(ctx, func() { rwc.Close() })
	sc, err := stomp.Connect(rwc, opts...)
	stop()
	if err != nil {
		rwc.Close()
		return nil, fmt.Errorf("stomp connect: %w", err)
	}

	// a signal left over from the previous connection is stale
	select {
	case <-c.lost:
	default:
	}
	c.mu.Lock()
	c.stomp = sc
	subs := append([]*subscription(nil), c.subs...)
	c.mu.Unlock()
	c.metrics.Connected.Set(1)
	c.log.Info("relay connected", zap.String("host", c.host), zap.Int("subscriptions", len(subs)))

	for _, s := range subs {
		c.attach(sc, s)
	}
	return sc, nil
}

// drop forgets sc if it is current. It reports whether it was.
func (c *Conn) drop(sc *stomp.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stomp != sc || sc == nil {
		return false
	}
	c.stomp = nil
	c.metrics.Connected.Set(0)
	return true
}

func (c *Conn) broken(sc *stomp.Conn, err error) {
	if !c.drop(sc) {
		return
	}
	c.log.Warn("relay connection lost", zap.Error(err))
	select {
	case c.lost <- struct{}{}:
	default:
	}
}

// Connected reports whether the connection is currently up.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stomp != nil
}

// Publish sends v as JSON, fire and forget. While the connection is down the
// message is not queued and ErrNotConnected is returned.
func (c *Conn) Publish(dest string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	sc := c.stomp
	c.mu.Unlock()
	if sc == nil {
		return ErrNotConnected
	}
	if err := sc.Send(dest, "application/json", body); err != nil {
		c.broken(sc, err)
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// Subscribe delivers message bodies sent to dest. The subscription survives
// reconnects; the channel is closed once ctx ends.
func (c *Conn) Subscribe(ctx context.Context, dest string) <-chan []byte {
	s := &subscription{ctx: ctx, dest: dest, out: make(chan []byte, 16)}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	sc := c.stomp
	c.mu.Unlock()
	if sc != nil {
		c.attach(sc, s)
	}

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		for i, have := range c.subs {
			if have == s {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
		s.wg.Wait()
		close(s.out)
	}()
	return s.out
}

func (c *Conn) attach(sc *stomp.Conn, s *subscription) {
	c.mu.Lock()
	registered := false
	for _, have := range c.subs {
		registered = registered || have == s
	}
	if registered {
		s.wg.Add(1)
	}
	c.mu.Unlock()
	if !registered {
		return
	}

	ss, err := sc.Subscribe(s.dest, stomp.AckAuto)
	if err != nil {
		s.wg.Done()
		c.broken(sc, err)
		return
	}
	go c.pump(sc, ss, s)
}

func (c *Conn) pump(sc *stomp.Conn, ss *stomp.Subscription, s *subscription) {
	defer s.wg.Done()
	release := func() {
		go func() {
			for range ss.C {
			}
		}()
		go func() { _ = ss.Unsubscribe() }()
	}
	for {
		select {
		case <-s.ctx.Done():
			release()
			return
		case m, ok := <-ss.C:
			if !ok {
				c.broken(sc, errors.New("subscription closed"))
				return
			}
			if m.Err != nil {
				c.broken(sc, m.Err)
				return
			}
			select {
			case s.out <- m.Body:
			case <-s.ctx.Done():
				release()
				return
			}
		}
	}
}
