package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/convert"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/session"
)

// ProfileService reads and edits the signed-in account.
type ProfileService interface {
	Get(ctx context.Context) (model.Profile, error)
	// Update changes the editable fields and merges the result into the session.
	Update(ctx context.Context, in ProfileUpdate) (model.Profile, error)
	ChangePassword(ctx context.Context, current, next, confirm string) error
}

// ProfileUpdate holds the editable fields; nil means unchanged.
type ProfileUpdate struct {
	FullName *string
	Email    *string
	Phone    *string
}

type ProfileServiceImpl struct {
	api  UsersAPI
	sess SessionStore
	log  *zap.Logger
}

var _ ProfileService = (*ProfileServiceImpl)(nil)

func NewProfileService(a UsersAPI, sess SessionStore, log *zap.Logger) *ProfileServiceImpl {
	return &ProfileServiceImpl{api: a, sess: sess, log: log}
}

func (s *ProfileServiceImpl) Get(ctx context.Context) (model.Profile, error) {
	if !s.sess.IsAuthenticated() {
		return model.Profile{}, errs.ErrNotAuthenticated
	}
	resp, err := s.api.Profile(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	p, unknown := convert.ProfileFromUser(resp)
	warnUnknownRoles(s.log, unknown)
	return p, nil
}

func (s *ProfileServiceImpl) Update(ctx context.Context, in ProfileUpdate) (model.Profile, error) {
	cur, err := s.Get(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	req := api.UpdateUserRequest{FullName: cur.FullName, Email: cur.Email, Phone: cur.Phone}
	for _, f := range []struct {
		name string
		in   *string
		out  *string
	}{
		{"fullName", in.FullName, &req.FullName},
		{"email", in.Email, &req.Email},
		{"phone", in.Phone, &req.Phone},
	} {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if v == "" {
			return model.Profile{}, errs.Field(f.name, "cannot be empty")
		}
		*f.out = v
	}

	resp, err := s.api.UpdateProfile(ctx, req)
	if err != nil {
		return model.Profile{}, err
	}
	p, unknown := convert.ProfileFromUser(resp)
	warnUnknownRoles(s.log, unknown)

	if err := s.sess.UpdateUser(session.Update{FullName: &p.FullName, Email: &p.Email}); err != nil {
		s.log.Warn("merge profile into session", zap.Error(err))
	}
	return p, nil
}

// ChangePassword validates locally before any network call.
func (s *ProfileServiceImpl) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if current == "" {
		return errs.Field("currentPassword", "is required")
	}
	if err := validateNewPassword(next, confirm); err != nil {
		return err
	}
	if !s.sess.IsAuthenticated() {
		return errs.ErrNotAuthenticated
	}
	return s.api.ChangePassword(ctx, api.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
		ConfirmPassword: confirm,
	})
}
