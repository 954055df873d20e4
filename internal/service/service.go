// Package service contains application services built on the REST client and the session store.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/session"
)

// AuthAPI is the part of the backend used for authentication.
type AuthAPI interface {
	SignIn(ctx context.Context, in api.SignInRequest) (api.SignInResponse, error)
	SignUp(ctx context.Context, in api.SignUpRequest) (string, error)
	ValidateToken(ctx context.Context) (bool, error)
	Profile(ctx context.Context) (api.UserResponse, error)
}

// UsersAPI covers profile and account management.
type UsersAPI interface {
	Profile(ctx context.Context) (api.UserResponse, error)
	UpdateProfile(ctx context.Context, in api.UpdateUserRequest) (api.UserResponse, error)
	ChangePassword(ctx context.Context, in api.ChangePasswordRequest) error
	Users(ctx context.Context) ([]api.UserResponse, error)
	UsersByRole(ctx context.Context, role string) ([]api.UserResponse, error)
	ToggleUserStatus(ctx context.Context, id int64) error
	DeleteUser(ctx context.Context, id int64) error
	AddRole(ctx context.Context, id int64, role string) error
	RemoveRole(ctx context.Context, id int64, role string) error
}

// ReportsAPI covers report lookup and transitions.
type ReportsAPI interface {
	CreateReport(ctx context.Context, in api.ReportRequest) (api.ReportResponse, error)
	TrackReport(ctx context.Context, trackingID string) (api.ReportResponse, error)
	Reports(ctx context.Context) ([]api.ReportResponse, error)
	AvailableReports(ctx context.Context) ([]api.ReportResponse, error)
	NgoReports(ctx context.Context, ngoID int64) ([]api.ReportResponse, error)
	WorkerTasks(ctx context.Context, workerID int64) ([]api.ReportResponse, error)
	AcceptReport(ctx context.Context, trackingID string, in api.AcceptRequest) (api.ReportResponse, error)
	AssignReport(ctx context.Context, trackingID string, in api.AssignRequest) (api.ReportResponse, error)
	UpdateStatus(ctx context.Context, trackingID, status string) (api.ReportResponse, error)
}

// NGOsAPI covers NGO lookup, moderation and worker management.
type NGOsAPI interface {
	NGOs(ctx context.Context) ([]api.NGOResponse, error)
	AllNGOs(ctx context.Context) ([]api.NGOResponse, error)
	PendingNGOs(ctx context.Context) ([]api.NGOResponse, error)
	NearbyNGOs(ctx context.Context, lat, lon, radius float64) ([]api.NGOResponse, error)
	NGO(ctx context.Context, id int64) (api.NGOResponse, error)
	ApproveNGO(ctx context.Context, id int64) (api.NGOResponse, error)
	RejectNGO(ctx context.Context, id int64, reason string) (api.NGOResponse, error)
	DeactivateNGO(ctx context.Context, id int64) error
	AddWorker(ctx context.Context, ngoID int64, in api.AddWorkerRequest) (api.UserResponse, error)
	Workers(ctx context.Context, ngoID int64) ([]api.UserResponse, error)
}

var (
	_ AuthAPI    = (*api.Client)(nil)
	_ UsersAPI   = (*api.Client)(nil)
	_ ReportsAPI = (*api.Client)(nil)
	_ NGOsAPI    = (*api.Client)(nil)
)

// SessionStore is what services need from the session: read access plus the
// three mutations.
type SessionStore interface {
	session.Reader
	Login(id model.Identity, token string) error
	Logout() error
	UpdateUser(u session.Update) error
}

var _ SessionStore = (*session.Store)(nil)

func warnUnknownRoles(log *zap.Logger, unknown []string) {
	if len(unknown) > 0 {
		log.Warn("ignoring unknown roles", zap.Strings("roles", unknown))
	}
}

// requireRole returns the identity when the session holds r.
func requireRole(s session.Reader, r model.Role) (model.Identity, error) {
	id, ok := s.Identity()
	if !ok {
		return model.Identity{}, errs.ErrNotAuthenticated
	}
	if !id.HasRole(r) {
		return model.Identity{}, errs.ErrForbidden
	}
	return id, nil
}
