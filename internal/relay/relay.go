package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/model"
)

const (
	DestLocationUpdate = "/app/location.update"
	caseTopicPrefix    = "/topic/case/"

	DefaultRefreshEvery = time.Minute
)

// ErrNoActiveAssignments stops a relay that has nothing to report on.
var ErrNoActiveAssignments = errors.New("no active assignments")

// Publisher is the sending half of a Conn.
type Publisher interface {
	Publish(dest string, v any) error
}

var _ Publisher = (*Conn)(nil)

// Assignments loads the worker's current tasks.
type Assignments func(ctx context.Context) ([]model.Report, error)

// RelayOptions configures a Relay.
type RelayOptions struct {
	// Refresh reloads assignments periodically; the relay stops once none is active.
	Refresh      Assignments
	RefreshEvery time.Duration
	Metrics      *Metrics
	Logger       *zap.Logger
}

// Relay publishes a worker's position for each of their open cases.
type Relay struct {
	pub          Publisher
	src          geo.Source
	worker       model.Identity
	refresh      Assignments
	refreshEvery time.Duration
	metrics      *Metrics
	log          *zap.Logger

	mu      sync.Mutex
	active  []model.Report
	latest  geo.Fix
	haveFix bool
}

// NewRelay builds a Relay for worker.
func NewRelay(pub Publisher, src geo.Source, worker model.Identity, opts RelayOptions) (*Relay, error) {
	if !worker.HasRole(model.RoleNGOWorker) {
		return nil, errs.ErrForbidden
	}
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = DefaultRefreshEvery
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Relay{
		pub:          pub,
		src:          src,
		worker:       worker,
		refresh:      opts.Refresh,
		refreshEvery: opts.RefreshEvery,
		metrics:      opts.Metrics,
		log:          opts.Logger.With(zap.Int64("worker_id", worker.ID)),
	}, nil
}

// SetAssignments replaces the case list, keeping only non-terminal reports.
// It returns how many remain.
func (r *Relay) SetAssignments(reports []model.Report) int {
	active := make([]model.Report, 0, len(reports))
	for _, rep := range reports {
		if !rep.Status.IsTerminal() {
			active = append(active, rep)
		}
	}
	r.mu.Lock()
	r.active = active
	r.mu.Unlock()
	return len(active)
}

// Active lists the cases positions are published for.
func (r *Relay) Active() []model.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Report(nil), r.active...)
}

// Latest is the last position seen.
func (r *Relay) Latest() (geo.Fix, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.haveFix
}

// Run watches the source until ctx ends, the source runs dry, or no active
// assignment is left. The watch is cancelled on return.
func (r *Relay) Run(ctx context.Context) error {
	if r.refresh != nil {
		if err := r.reload(ctx); err != nil {
			return err
		}
	}
	if len(r.Active()) == 0 {
		return ErrNoActiveAssignments
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	fixes, err := r.src.Watch(ctx)
	if err != nil {
		return err
	}

	var tick <-chan time.Time
	if r.refresh != nil {
		t := time.NewTicker(r.refreshEvery)
		defer t.Stop()
		tick = t.C
	}

	r.log.Info("relay started", zap.Int("cases", len(r.Active())))
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-fixes:
			if !ok {
				r.log.Info("location source ended")
				return nil
			}
			r.handle(f)
		case <-tick:
			if err := r.reload(ctx); err != nil {
				r.log.Warn("assignment refresh failed", zap.Error(err))
				continue
			}
			if len(r.Active()) == 0 {
				r.log.Info("no active assignments left")
				return nil
			}
		}
	}
}

func (r *Relay) reload(ctx context.Context) error {
	reports, err := r.refresh(ctx)
	if err != nil {
		return err
	}
	r.SetAssignments(reports)
	return nil
}

func (r *Relay) handle(f geo.Fix) {
	r.mu.Lock()
	r.latest, r.haveFix = f, true
	active := append([]model.Report(nil), r.active...)
	r.mu.Unlock()

	for _, rep := range active {
		upd := model.LocationUpdate{
			TrackingID: rep.TrackingID,
			WorkerID:   r.worker.ID,
			Latitude:   f.Position.Latitude,
			Longitude:  f.Position.Longitude,
		}
		if err := r.pub.Publish(DestLocationUpdate, upd); err != nil {
			r.metrics.Dropped.Inc()
			r.log.Debug("location dropped", zap.String("tracking_id", rep.TrackingID), zap.Error(err))
			continue
		}
		r.metrics.Published.Inc()
	}
}

// Follow streams the worker positions broadcast for one case. The channel is
// closed when ctx ends.
func Follow(ctx context.Context, c *Conn, trackingID string, log *zap.Logger) <-chan model.LocationUpdate {
	if log == nil {
		log = zap.NewNop()
	}
	raw := c.Subscribe(ctx, caseTopicPrefix+trackingID)
	out := make(chan model.LocationUpdate)
	go func() {
		defer close(out)
		for b := range raw {
			var u model.LocationUpdate
			if err := json.Unmarshal(b, &u); err != nil {
				log.Warn("bad location message", zap.String("tracking_id", trackingID), zap.Error(err))
				continue
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
