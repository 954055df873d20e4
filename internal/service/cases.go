package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/convert"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/lifecycle"
	"github.com/pashurakshak/rakshak/internal/model"
)

// ErrDeclined is returned when the user did not confirm a closing transition.
var ErrDeclined = errors.New("not confirmed")

// Confirmer asks the user to confirm moving r to the given status.
type Confirmer func(r model.Report, to model.Status) (bool, error)

// CasesService covers report lookup, acceptance, assignment and status changes.
type CasesService interface {
	Track(ctx context.Context, trackingID string) (model.Report, error)
	Available(ctx context.Context) ([]model.Report, error)
	// ForNGO lists the reports accepted by the session's NGO.
	ForNGO(ctx context.Context) ([]model.Report, error)
	// WorkerTasks lists the reports assigned to the session's worker.
	WorkerTasks(ctx context.Context) ([]model.Report, error)
	Accept(ctx context.Context, trackingID string) (model.Report, error)
	// Advance moves a report one step. want may be empty to take the canonical next step;
	// anything else must equal it.
	Advance(ctx context.Context, trackingID string, want model.Status, confirm Confirmer) (model.Report, error)
	Assign(ctx context.Context, trackingID string, workerID int64) (model.Report, error)
	Workers(ctx context.Context) ([]model.Profile, error)
	AddWorker(ctx context.Context, w NewWorker) (model.Profile, error)
}

// NewWorker is the form for registering a field worker under the session's NGO.
type NewWorker struct {
	Username string
	Name     string
	Email    string
	Phone    string
}

type CasesServiceImpl struct {
	reports ReportsAPI
	ngos    NGOsAPI
	sess    SessionStore
	log     *zap.Logger
}

var _ CasesService = (*CasesServiceImpl)(nil)

func NewCasesService(reports ReportsAPI, ngos NGOsAPI, sess SessionStore, log *zap.Logger) *CasesServiceImpl {
	return &CasesServiceImpl{reports: reports, ngos: ngos, sess: sess, log: log}
}

// Track is public: tracking ids are shared with anonymous reporters.
func (s *CasesServiceImpl) Track(ctx context.Context, trackingID string) (model.Report, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return model.Report{}, errs.Field("trackingId", "is required")
	}
	resp, err := s.reports.TrackReport(ctx, trackingID)
	if err != nil {
		return model.Report{}, err
	}
	return convert.ReportFromResponse(resp)
}

func (s *CasesServiceImpl) Available(ctx context.Context) ([]model.Report, error) {
	if _, err := requireRole(s.sess, model.RoleNGO); err != nil {
		return nil, err
	}
	resp, err := s.reports.AvailableReports(ctx)
	if err != nil {
		return nil, err
	}
	reports, err := convert.ReportsFromResponses(resp)
	if err != nil {
		return nil, err
	}
	// the endpoint already filters; keep the client honest anyway
	return lifecycle.Available(reports), nil
}

func (s *CasesServiceImpl) ForNGO(ctx context.Context) ([]model.Report, error) {
	ngoID, err := s.sessionNGO()
	if err != nil {
		return nil, err
	}
	resp, err := s.reports.NgoReports(ctx, ngoID)
	if err != nil {
		return nil, err
	}
	return convert.ReportsFromResponses(resp)
}

func (s *CasesServiceImpl) WorkerTasks(ctx context.Context) ([]model.Report, error) {
	id, err := requireRole(s.sess, model.RoleNGOWorker)
	if err != nil {
		return nil, err
	}
	resp, err := s.reports.WorkerTasks(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	return convert.ReportsFromResponses(resp)
}

// Accept assigns an available report to the session's NGO.
func (s *CasesServiceImpl) Accept(ctx context.Context, trackingID string) (model.Report, error) {
	ngoID, err := s.sessionNGO()
	if err != nil {
		return model.Report{}, err
	}
	cur, err := s.Track(ctx, trackingID)
	if err != nil {
		return model.Report{}, err
	}
	if !cur.Available() {
		return model.Report{}, fmt.Errorf("%w: report %s already accepted by %s", errs.ErrConflict, cur.TrackingID, cur.AssignedNgoName)
	}
	ngo, err := s.ngos.NGO(ctx, ngoID)
	if err != nil {
		return model.Report{}, fmt.Errorf("resolve ngo %d: %w", ngoID, err)
	}
	resp, err := s.reports.AcceptReport(ctx, cur.TrackingID, api.AcceptRequest{NgoID: ngoID, NgoName: ngo.Name})
	if err != nil {
		return model.Report{}, err
	}
	s.log.Info("report accepted", zap.String("tracking_id", cur.TrackingID), zap.Int64("ngo_id", ngoID))
	return convert.ReportFromResponse(resp)
}

// Advance sends exactly one transition request and never retries.
func (s *CasesServiceImpl) Advance(ctx context.Context, trackingID string, want model.Status, confirm Confirmer) (model.Report, error) {
	if !s.sess.HasRole(model.RoleNGO) && !s.sess.HasRole(model.RoleNGOWorker) {
		if !s.sess.IsAuthenticated() {
			return model.Report{}, errs.ErrNotAuthenticated
		}
		return model.Report{}, errs.ErrForbidden
	}
	cur, err := s.Track(ctx, trackingID)
	if err != nil {
		return model.Report{}, err
	}
	next, ok := lifecycle.Next(cur.Status)
	if !ok {
		return model.Report{}, fmt.Errorf("%w: %s is %s", errs.ErrInvalidTransition, cur.TrackingID, cur.Status.Label())
	}
	if want != "" {
		if err := lifecycle.CheckAdvance(cur.Status, want); err != nil {
			return model.Report{}, err
		}
	}
	if next.IsTerminal() {
		if confirm == nil {
			return model.Report{}, ErrDeclined
		}
		ok, err := confirm(cur, next)
		if err != nil {
			return model.Report{}, err
		}
		if !ok {
			return model.Report{}, ErrDeclined
		}
	}
	resp, err := s.reports.UpdateStatus(ctx, cur.TrackingID, string(next))
	if err != nil {
		return model.Report{}, err
	}
	s.log.Info("report advanced",
		zap.String("tracking_id", cur.TrackingID),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(next)),
	)
	return convert.ReportFromResponse(resp)
}

// Assign hands an accepted report to one of the NGO's workers.
func (s *CasesServiceImpl) Assign(ctx context.Context, trackingID string, workerID int64) (model.Report, error) {
	workers, err := s.Workers(ctx)
	if err != nil {
		return model.Report{}, err
	}
	var name string
	for _, w := range workers {
		if w.ID == workerID {
			name = w.FullName
			if name == "" {
				name = w.Username
			}
			break
		}
	}
	if name == "" {
		return model.Report{}, errs.Field("worker", fmt.Sprintf("%d is not a worker of this NGO", workerID))
	}
	resp, err := s.reports.AssignReport(ctx, strings.TrimSpace(trackingID), api.AssignRequest{WorkerID: workerID, WorkerName: name})
	if err != nil {
		return model.Report{}, err
	}
	return convert.ReportFromResponse(resp)
}

// Workers lists the session NGO's field workers.
func (s *CasesServiceImpl) Workers(ctx context.Context) ([]model.Profile, error) {
	ngoID, err := s.sessionNGO()
	if err != nil {
		return nil, err
	}
	resp, err := s.ngos.Workers(ctx, ngoID)
	if err != nil {
		return nil, err
	}
	out, unknown := convert.ProfilesFromUsers(resp)
	warnUnknownRoles(s.log, unknown)
	return out, nil
}

// AddWorker creates a worker account linked to the session's NGO.
func (s *CasesServiceImpl) AddWorker(ctx context.Context, w NewWorker) (model.Profile, error) {
	ngoID, err := s.sessionNGO()
	if err != nil {
		return model.Profile{}, err
	}
	w.Username = strings.TrimSpace(w.Username)
	w.Email = strings.TrimSpace(w.Email)
	switch {
	case len(w.Username) < 3 || len(w.Username) > 20:
		return model.Profile{}, errs.Field("username", "must be 3 to 20 characters")
	case strings.TrimSpace(w.Name) == "":
		return model.Profile{}, errs.Field("name", "is required")
	case !strings.Contains(w.Email, "@"):
		return model.Profile{}, errs.Field("email", "is not a valid address")
	}
	resp, err := s.ngos.AddWorker(ctx, ngoID, api.AddWorkerRequest{
		Username: w.Username,
		Name:     strings.TrimSpace(w.Name),
		Email:    w.Email,
		Phone:    strings.TrimSpace(w.Phone),
	})
	if err != nil {
		return model.Profile{}, err
	}
	p, unknown := convert.ProfileFromUser(resp)
	warnUnknownRoles(s.log, unknown)
	s.log.Info("worker added", zap.Int64("ngo_id", ngoID), zap.Int64("worker_id", p.ID))
	return p, nil
}

func (s *CasesServiceImpl) sessionNGO() (int64, error) {
	id, err := requireRole(s.sess, model.RoleNGO)
	if err != nil {
		return 0, err
	}
	if id.NgoID == nil {
		return 0, fmt.Errorf("%w: account is not linked to an NGO", errs.ErrForbidden)
	}
	return *id.NgoID, nil
}
