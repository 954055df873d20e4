package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/relay"
)

const metricsShutdownTimeout = 5 * time.Second

// relayConn builds the broker connection; the session token is read on every connect.
func (a *app) relayConn(m *relay.Metrics) *relay.Conn {
	return relay.NewConn(relay.Options{
		URL:     a.cfg.WSURL,
		Token:   a.sess.Token,
		Metrics: m,
		Logger:  a.log.Named("relay"),
	})
}

func cmdWorkerTasks(ctx context.Context, a *app, _ []string) error {
	rs, err := a.cases.WorkerTasks(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, reportRows(rs))
	return nil
}

// positionSource picks where samples come from.
func (a *app) positionSource(kind, file, at string, every time.Duration) (geo.Source, func(), error) {
	switch kind {
	case "gpsd":
		return geo.Gpsd{Addr: a.cfg.GpsdAddr}, func() {}, nil
	case "file":
		if file == "" {
			return nil, nil, errs.Field("file", "is required with --source file")
		}
		l, c, err := geo.OpenLines(file, every)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { _ = c.Close() }, nil
	case "static":
		pos, err := geo.ParsePosition(at)
		if err != nil {
			return nil, nil, err
		}
		return geo.Static{Position: pos}, func() {}, nil
	default:
		return nil, nil, errs.Field("source", fmt.Sprintf("%q: want gpsd, file or static", kind))
	}
}

func cmdWorkerTrack(ctx context.Context, a *app, args []string) error {
	fs := a.flags("worker track")
	kind := fs.String("source", "gpsd", "position source: gpsd, file or static")
	file := fs.String("file", "", "sample file for --source file, - for stdin")
	at := fs.String("at", "", "lat,lon for --source static")
	every := fs.Duration("interval", time.Second, "pace of --source file samples")
	if err := fs.Parse(args); err != nil {
		return err
	}
	worker, ok := a.sess.Identity()
	if !ok {
		return errs.ErrNotAuthenticated
	}
	src, closeSrc, err := a.positionSource(*kind, *file, *at, *every)
	if err != nil {
		return err
	}
	defer closeSrc()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := relay.NewMetrics(reg)

	conn := a.relayConn(metrics)
	r, err := relay.NewRelay(conn, src, worker, relay.RelayOptions{
		Refresh: a.cases.WorkerTasks,
		Metrics: metrics,
		Logger:  a.log.Named("relay"),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.log.Info("metrics listening", zap.String("addr", a.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	g.Go(func() error { return conn.Run(runCtx) })
	g.Go(func() error {
		defer stop()
		return r.Run(runCtx)
	})

	fmt.Fprintln(a.out, "sharing location with your active cases; Ctrl-C to stop")
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "location sharing stopped")
	return nil
}
