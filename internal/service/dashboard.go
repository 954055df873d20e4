package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/convert"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/lifecycle"
	"github.com/pashurakshak/rakshak/internal/model"
)

// AdminStats summarises the platform.
type AdminStats struct {
	Users         int
	Reports       int
	NGOs          int
	ActiveReports int
	PendingNGOs   int
}

// AdminDashboard is the admin overview.
type AdminDashboard struct {
	Users   []model.Profile
	Reports []model.Report
	NGOs    []model.NGO
	Stats   AdminStats
}

// AdminService covers the admin dashboard, account management and NGO moderation.
type AdminService interface {
	// Dashboard loads users, reports and NGOs concurrently and waits for all three.
	Dashboard(ctx context.Context) (AdminDashboard, error)
	Users(ctx context.Context, role model.Role) ([]model.Profile, error)
	ToggleUserStatus(ctx context.Context, id int64) error
	DeleteUser(ctx context.Context, id int64) error
	AddRole(ctx context.Context, id int64, role model.Role) error
	RemoveRole(ctx context.Context, id int64, role model.Role) error
	NGOs(ctx context.Context) ([]model.NGO, error)
	PendingNGOs(ctx context.Context) ([]model.NGO, error)
	ApproveNGO(ctx context.Context, id int64) (model.NGO, error)
	RejectNGO(ctx context.Context, id int64, reason string) (model.NGO, error)
	DeactivateNGO(ctx context.Context, id int64) error
	Reports(ctx context.Context) ([]model.Report, error)
}

type AdminServiceImpl struct {
	users   UsersAPI
	reports ReportsAPI
	ngos    NGOsAPI
	sess    SessionStore
	log     *zap.Logger
}

var _ AdminService = (*AdminServiceImpl)(nil)

func NewAdminService(users UsersAPI, reports ReportsAPI, ngos NGOsAPI, sess SessionStore, log *zap.Logger) *AdminServiceImpl {
	return &AdminServiceImpl{users: users, reports: reports, ngos: ngos, sess: sess, log: log}
}

func (s *AdminServiceImpl) Dashboard(ctx context.Context) (AdminDashboard, error) {
	if _, err := requireRole(s.sess, model.RoleAdmin); err != nil {
		return AdminDashboard{}, err
	}

	var (
		users   []api.UserResponse
		reports []api.ReportResponse
		ngos    []api.NGOResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.users.Users(gctx)
		return err
	})
	g.Go(func() (err error) {
		reports, err = s.reports.Reports(gctx)
		return err
	})
	g.Go(func() (err error) {
		ngos, err = s.ngos.AllNGOs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return AdminDashboard{}, err
	}

	d := AdminDashboard{NGOs: convert.NGOsFromResponses(ngos)}
	var unknown []string
	d.Users, unknown = convert.ProfilesFromUsers(users)
	warnUnknownRoles(s.log, unknown)
	var err error
	if d.Reports, err = convert.ReportsFromResponses(reports); err != nil {
		return AdminDashboard{}, err
	}

	d.Stats = AdminStats{
		Users:         len(d.Users),
		Reports:       len(d.Reports),
		NGOs:          len(d.NGOs),
		ActiveReports: len(lifecycle.Active(d.Reports)),
	}
	for _, n := range d.NGOs {
		if n.Verification == model.VerificationPending {
			d.Stats.PendingNGOs++
		}
	}
	return d, nil
}

func (s *AdminServiceImpl) Users(ctx context.Context, role model.Role) ([]model.Profile, error) {
	if _, err := requireRole(s.sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	var (
		resp []api.UserResponse
		err  error
	)
	if role == "" {
		resp, err = s.users.Users(ctx)
	} else {
		resp, err = s.users.UsersByRole(ctx, string(role))
	}
	if err != nil {
		return nil, err
	}
	out, unknown := convert.ProfilesFromUsers(resp)
	warnUnknownRoles(s.log, unknown)
	return out, nil
}

func (s *AdminServiceImpl) ToggleUserStatus(ctx context.Context, id int64) error {
	if err := s.adminOn(id); err != nil {
		return err
	}
	return s.users.ToggleUserStatus(ctx, id)
}

func (s *AdminServiceImpl) DeleteUser(ctx context.Context, id int64) error {
	if err := s.adminOn(id); err != nil {
		return err
	}
	if self, _ := s.sess.Identity(); self.ID == id {
		return errs.Field("id", "cannot delete your own account")
	}
	return s.users.DeleteUser(ctx, id)
}

func (s *AdminServiceImpl) AddRole(ctx context.Context, id int64, role model.Role) error {
	if err := s.adminOn(id); err != nil {
		return err
	}
	if _, err := model.ParseRole(string(role)); err != nil {
		return errs.Field("role", err.Error())
	}
	return s.users.AddRole(ctx, id, string(role))
}

func (s *AdminServiceImpl) RemoveRole(ctx context.Context, id int64, role model.Role) error {
	if err := s.adminOn(id); err != nil {
		return err
	}
	if _, err := model.ParseRole(string(role)); err != nil {
		return errs.Field("role", err.Error())
	}
	return s.users.RemoveRole(ctx, id, string(role))
}

func (s *AdminServiceImpl) NGOs(ctx context.Context) ([]model.NGO, error) {
	if _, err := requireRole(s.sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	resp, err := s.ngos.AllNGOs(ctx)
	if err != nil {
		return nil, err
	}
	return convert.NGOsFromResponses(resp), nil
}

func (s *AdminServiceImpl) PendingNGOs(ctx context.Context) ([]model.NGO, error) {
	if _, err := requireRole(s.sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	resp, err := s.ngos.PendingNGOs(ctx)
	if err != nil {
		return nil, err
	}
	return convert.NGOsFromResponses(resp), nil
}

func (s *AdminServiceImpl) ApproveNGO(ctx context.Context, id int64) (model.NGO, error) {
	if err := s.adminOn(id); err != nil {
		return model.NGO{}, err
	}
	resp, err := s.ngos.ApproveNGO(ctx, id)
	if err != nil {
		return model.NGO{}, err
	}
	s.log.Info("ngo approved", zap.Int64("ngo_id", id))
	return convert.NGOFromResponse(resp), nil
}

func (s *AdminServiceImpl) RejectNGO(ctx context.Context, id int64, reason string) (model.NGO, error) {
	if err := s.adminOn(id); err != nil {
		return model.NGO{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.NGO{}, errs.Field("reason", "is required")
	}
	resp, err := s.ngos.RejectNGO(ctx, id, reason)
	if err != nil {
		return model.NGO{}, err
	}
	s.log.Info("ngo rejected", zap.Int64("ngo_id", id))
	return convert.NGOFromResponse(resp), nil
}

func (s *AdminServiceImpl) DeactivateNGO(ctx context.Context, id int64) error {
	if err := s.adminOn(id); err != nil {
		return err
	}
	return s.ngos.DeactivateNGO(ctx, id)
}

func (s *AdminServiceImpl) Reports(ctx context.Context) ([]model.Report, error) {
	if _, err := requireRole(s.sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	resp, err := s.reports.Reports(ctx)
	if err != nil {
		return nil, err
	}
	return convert.ReportsFromResponses(resp)
}

func (s *AdminServiceImpl) adminOn(id int64) error {
	if _, err := requireRole(s.sess, model.RoleAdmin); err != nil {
		return err
	}
	if id <= 0 {
		return errs.Field("id", fmt.Sprintf("invalid id %d", id))
	}
	return nil
}

// NGOStats are the NGO dashboard counters.
type NGOStats struct {
	Completed  int
	InProgress int
	Available  int
}

// NGODashboard is the NGO overview.
type NGODashboard struct {
	NGO       model.NGO
	Available []model.Report
	Assigned  []model.Report
	Stats     NGOStats
}

// NGODashboardService loads the NGO overview.
type NGODashboardService interface {
	Load(ctx context.Context) (NGODashboard, error)
	Nearby(ctx context.Context, lat, lon, radius float64) ([]model.NGO, error)
}

type NGODashboardServiceImpl struct {
	reports ReportsAPI
	ngos    NGOsAPI
	sess    SessionStore
}

var _ NGODashboardService = (*NGODashboardServiceImpl)(nil)

func NewNGODashboardService(reports ReportsAPI, ngos NGOsAPI, sess SessionStore) *NGODashboardServiceImpl {
	return &NGODashboardServiceImpl{reports: reports, ngos: ngos, sess: sess}
}

// Load fetches the NGO record, available reports and assigned reports concurrently.
func (s *NGODashboardServiceImpl) Load(ctx context.Context) (NGODashboard, error) {
	id, err := requireRole(s.sess, model.RoleNGO)
	if err != nil {
		return NGODashboard{}, err
	}
	if id.NgoID == nil {
		return NGODashboard{}, fmt.Errorf("%w: account is not linked to an NGO", errs.ErrForbidden)
	}
	ngoID := *id.NgoID

	var (
		ngo       api.NGOResponse
		available []api.ReportResponse
		assigned  []api.ReportResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ngo, err = s.ngos.NGO(gctx, ngoID)
		return err
	})
	g.Go(func() (err error) {
		available, err = s.reports.AvailableReports(gctx)
		return err
	})
	g.Go(func() (err error) {
		assigned, err = s.reports.NgoReports(gctx, ngoID)
		return err
	})
	if err := g.Wait(); err != nil {
		return NGODashboard{}, err
	}

	d := NGODashboard{NGO: convert.NGOFromResponse(ngo)}
	av, err := convert.ReportsFromResponses(available)
	if err != nil {
		return NGODashboard{}, err
	}
	d.Available = lifecycle.Available(av)
	if d.Assigned, err = convert.ReportsFromResponses(assigned); err != nil {
		return NGODashboard{}, err
	}

	d.Stats.Available = len(d.Available)
	for _, r := range d.Assigned {
		switch {
		case r.Status.IsTerminal():
			d.Stats.Completed++
		case r.Status != model.StatusSubmitted:
			d.Stats.InProgress++
		}
	}
	return d, nil
}

// Nearby lists approved NGOs around a point. Radius is in degrees; 0 means the default 0.1.
func (s *NGODashboardServiceImpl) Nearby(ctx context.Context, lat, lon, radius float64) ([]model.NGO, error) {
	if radius <= 0 {
		radius = 0.1
	}
	if lat < -90 || lat > 90 {
		return nil, errs.Field("latitude", "must be within [-90, 90]")
	}
	if lon < -180 || lon > 180 {
		return nil, errs.Field("longitude", "must be within [-180, 180]")
	}
	resp, err := s.ngos.NearbyNGOs(ctx, lat, lon, radius)
	if err != nil {
		return nil, err
	}
	return convert.NGOsFromResponses(resp), nil
}
