package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/session"
	"github.com/pashurakshak/rakshak/internal/storage"
)

// fakeBackend is an in-memory stand-in for the REST service.
type fakeBackend struct {
	mu sync.Mutex

	signIn    api.SignInResponse
	signInErr error
	signUps   []api.SignUpRequest
	valid     bool

	profile        api.UserResponse
	profileUpdates []api.UpdateUserRequest
	passwordCalls  int

	users   []api.UserResponse
	reports map[string]api.ReportResponse
	ngos    map[int64]api.NGOResponse
	workers map[int64][]api.UserResponse

	statusCalls []string
	acceptCalls []api.AcceptRequest
	assignCalls []api.AssignRequest
	toggled     []int64
	deleted     []int64
	roleCalls   []string

	failOn map[string]error
}

var (
	_ AuthAPI    = (*fakeBackend)(nil)
	_ UsersAPI   = (*fakeBackend)(nil)
	_ ReportsAPI = (*fakeBackend)(nil)
	_ NGOsAPI    = (*fakeBackend)(nil)
)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		reports: map[string]api.ReportResponse{},
		ngos:    map[int64]api.NGOResponse{},
		workers: map[int64][]api.UserResponse{},
		failOn:  map[string]error{},
	}
}

func (f *fakeBackend) fail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failOn[op]
}

func (f *fakeBackend) SignIn(_ context.Context, in api.SignInRequest) (api.SignInResponse, error) {
	if f.signInErr != nil {
		return api.SignInResponse{}, f.signInErr
	}
	out := f.signIn
	out.Username = in.Username
	return out, nil
}

func (f *fakeBackend) SignUp(_ context.Context, in api.SignUpRequest) (string, error) {
	f.signUps = append(f.signUps, in)
	return "User registered successfully!", nil
}

func (f *fakeBackend) ValidateToken(context.Context) (bool, error) { return f.valid, f.fail("validate") }

func (f *fakeBackend) Profile(context.Context) (api.UserResponse, error) {
	return f.profile, f.fail("profile")
}

func (f *fakeBackend) UpdateProfile(_ context.Context, in api.UpdateUserRequest) (api.UserResponse, error) {
	f.profileUpdates = append(f.profileUpdates, in)
	out := f.profile
	out.FullName, out.Email, out.Phone = in.FullName, in.Email, in.Phone
	f.profile = out
	return out, nil
}

func (f *fakeBackend) ChangePassword(context.Context, api.ChangePasswordRequest) error {
	f.passwordCalls++
	return nil
}

func (f *fakeBackend) Users(context.Context) ([]api.UserResponse, error) {
	return f.users, f.fail("users")
}

func (f *fakeBackend) UsersByRole(_ context.Context, role string) ([]api.UserResponse, error) {
	var out []api.UserResponse
	for _, u := range f.users {
		for _, r := range u.Roles {
			if r == role {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeBackend) ToggleUserStatus(_ context.Context, id int64) error {
	f.toggled = append(f.toggled, id)
	return nil
}

func (f *fakeBackend) DeleteUser(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) AddRole(_ context.Context, _ int64, role string) error {
	f.roleCalls = append(f.roleCalls, "+"+role)
	return nil
}

func (f *fakeBackend) RemoveRole(_ context.Context, _ int64, role string) error {
	f.roleCalls = append(f.roleCalls, "-"+role)
	return nil
}

func (f *fakeBackend) CreateReport(_ context.Context, in api.ReportRequest) (api.ReportResponse, error) {
	if err := f.fail("create"); err != nil {
		return api.ReportResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := api.ReportResponse{
		TrackingID: fmt.Sprintf("AR-2024-%03d", len(f.reports)+1),
		AnimalType: in.AnimalType,
		Condition:  in.Condition,
		Status:     string(model.StatusSubmitted),
		ImageURLs:  in.ImageURLs,
	}
	f.reports[out.TrackingID] = out
	return out, nil
}

func (f *fakeBackend) TrackReport(_ context.Context, id string) (api.ReportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return api.ReportResponse{}, &api.Error{Status: 404, Message: "Report not found"}
	}
	return r, nil
}

func (f *fakeBackend) Reports(context.Context) ([]api.ReportResponse, error) {
	if err := f.fail("reports"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.ReportResponse, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) AvailableReports(ctx context.Context) ([]api.ReportResponse, error) {
	all, err := f.Reports(ctx)
	var out []api.ReportResponse
	for _, r := range all {
		if r.AssignedNgoID == nil {
			out = append(out, r)
		}
	}
	return out, err
}

func (f *fakeBackend) NgoReports(ctx context.Context, ngoID int64) ([]api.ReportResponse, error) {
	all, err := f.Reports(ctx)
	var out []api.ReportResponse
	for _, r := range all {
		if r.AssignedNgoID != nil && *r.AssignedNgoID == ngoID {
			out = append(out, r)
		}
	}
	return out, err
}

func (f *fakeBackend) WorkerTasks(ctx context.Context, workerID int64) ([]api.ReportResponse, error) {
	all, err := f.Reports(ctx)
	var out []api.ReportResponse
	for _, r := range all {
		if r.AssignedWorkerID != nil && *r.AssignedWorkerID == workerID {
			out = append(out, r)
		}
	}
	return out, err
}

func (f *fakeBackend) AcceptReport(_ context.Context, id string, in api.AcceptRequest) (api.ReportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptCalls = append(f.acceptCalls, in)
	r := f.reports[id]
	ngo := in.NgoID
	r.AssignedNgoID, r.AssignedNgoName = &ngo, in.NgoName
	f.reports[id] = r
	return r, nil
}

func (f *fakeBackend) AssignReport(_ context.Context, id string, in api.AssignRequest) (api.ReportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignCalls = append(f.assignCalls, in)
	r := f.reports[id]
	w := in.WorkerID
	r.AssignedWorkerID, r.AssignedWorkerName = &w, in.WorkerName
	f.reports[id] = r
	return r, nil
}

func (f *fakeBackend) UpdateStatus(_ context.Context, id, status string) (api.ReportResponse, error) {
	if err := f.fail("status"); err != nil {
		return api.ReportResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, id+"="+status)
	r := f.reports[id]
	r.Status = status
	f.reports[id] = r
	return r, nil
}

func (f *fakeBackend) NGOs(ctx context.Context) ([]api.NGOResponse, error) { return f.AllNGOs(ctx) }

func (f *fakeBackend) AllNGOs(context.Context) ([]api.NGOResponse, error) {
	if err := f.fail("ngos"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.NGOResponse, 0, len(f.ngos))
	for _, n := range f.ngos {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeBackend) PendingNGOs(ctx context.Context) ([]api.NGOResponse, error) {
	all, err := f.AllNGOs(ctx)
	var out []api.NGOResponse
	for _, n := range all {
		if n.VerificationStatus == "PENDING" {
			out = append(out, n)
		}
	}
	return out, err
}

func (f *fakeBackend) NearbyNGOs(ctx context.Context, _, _, _ float64) ([]api.NGOResponse, error) {
	return f.AllNGOs(ctx)
}

func (f *fakeBackend) NGO(_ context.Context, id int64) (api.NGOResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.ngos[id]
	if !ok {
		return api.NGOResponse{}, errs.ErrNotFound
	}
	return n, nil
}

func (f *fakeBackend) ApproveNGO(_ context.Context, id int64) (api.NGOResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.ngos[id]
	n.VerificationStatus, n.IsActive = "APPROVED", true
	f.ngos[id] = n
	return n, nil
}

func (f *fakeBackend) RejectNGO(_ context.Context, id int64, reason string) (api.NGOResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.ngos[id]
	n.VerificationStatus, n.RejectionReason = "REJECTED", reason
	f.ngos[id] = n
	return n, nil
}

func (f *fakeBackend) DeactivateNGO(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.ngos[id]
	n.IsActive = false
	f.ngos[id] = n
	return nil
}

func (f *fakeBackend) AddWorker(_ context.Context, ngoID int64, in api.AddWorkerRequest) (api.UserResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := api.UserResponse{ID: int64(100 + len(f.workers[ngoID])), Username: in.Username, FullName: in.Name, Roles: []string{"NGO_WORKER"}, NgoID: &ngoID}
	f.workers[ngoID] = append(f.workers[ngoID], u)
	return u, nil
}

func (f *fakeBackend) Workers(_ context.Context, ngoID int64) ([]api.UserResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workers[ngoID], nil
}

// helpers

func i64(v int64) *int64 { return &v }

func newSession(t *testing.T, id *model.Identity) *session.Store {
	t.Helper()
	s := session.New(storage.NewMemoryStore(), zaptest.NewLogger(t))
	if id != nil {
		if err := s.Login(*id, "tok"); err != nil {
			t.Fatalf("login: %v", err)
		}
	} else {
		_ = s.Logout()
	}
	return s
}

func ngoRep() *model.Identity {
	return &model.Identity{ID: 2, Username: "paws", NgoID: i64(10), Roles: []model.Role{model.RoleNGO}}
}

func worker() *model.Identity {
	return &model.Identity{ID: 100, Username: "ravi", NgoID: i64(10), Roles: []model.Role{model.RoleNGOWorker}}
}

func admin() *model.Identity {
	return &model.Identity{ID: 1, Username: "root", Roles: []model.Role{model.RoleAdmin, model.RoleUser}}
}

func plainUser() *model.Identity {
	return &model.Identity{ID: 5, Username: "asha", Roles: []model.Role{model.RoleUser}}
}
