package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/authz"
	"github.com/pashurakshak/rakshak/internal/convert"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/session"
)

// MinPasswordLen is the shortest password accepted at sign-up and password change.
const MinPasswordLen = 6

// AuthService defines sign-in, sign-up and session validation.
type AuthService interface {
	// SignIn authenticates, stores the session and returns the view to land on.
	SignIn(ctx context.Context, username, password, from string) (model.Identity, string, error)
	// SignUp registers an account. NGO accounts stay pending until approved.
	SignUp(ctx context.Context, in SignUp) (string, error)
	// Logout ends the session locally.
	Logout() error
	session.Validator
}

// SignUp is a registration form.
type SignUp struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
	Phone           string

	// AsNGO registers an NGO representative; the NGO fields are then required.
	AsNGO       bool
	NgoName     string
	Address     string
	Latitude    float64
	Longitude   float64
	Description string
	DocumentURL string
}

type AuthServiceImpl struct {
	api  AuthAPI
	sess SessionStore
	log  *zap.Logger
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService.
func NewAuthService(a AuthAPI, sess SessionStore, log *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{api: a, sess: sess, log: log}
}

// SignIn exchanges credentials for a session.
func (s *AuthServiceImpl) SignIn(ctx context.Context, username, password, from string) (model.Identity, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.Identity{}, "", errs.Field("username", "is required")
	}
	if password == "" {
		return model.Identity{}, "", errs.Field("password", "is required")
	}
	resp, err := s.api.SignIn(ctx, api.SignInRequest{Username: username, Password: password})
	if err != nil {
		return model.Identity{}, "", err
	}
	if resp.Token == "" {
		return model.Identity{}, "", fmt.Errorf("%w: sign-in returned no token", errs.ErrUnavailable)
	}
	id, unknown := convert.IdentityFromSignIn(resp)
	warnUnknownRoles(s.log, unknown)
	if err := s.sess.Login(id, resp.Token); err != nil {
		// the in-memory session is usable; only persistence failed
		s.log.Warn("persist session", zap.Error(err))
	}
	s.log.Info("signed in", zap.String("username", id.Username), zap.String("role", string(model.PrimaryRole(id.Roles))))
	return id, authz.AfterLogin(id.Roles, from), nil
}

// SignUp validates the form locally, then registers.
func (s *AuthServiceImpl) SignUp(ctx context.Context, in SignUp) (string, error) {
	if err := validateSignUp(in); err != nil {
		return "", err
	}
	req := api.SignUpRequest{
		Username: strings.TrimSpace(in.Username),
		Email:    strings.TrimSpace(in.Email),
		Password: in.Password,
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		UserType: string(model.RoleUser),
	}
	if in.AsNGO {
		lat, lon := in.Latitude, in.Longitude
		req.UserType = string(model.RoleNGO)
		req.NgoName = strings.TrimSpace(in.NgoName)
		req.Address = strings.TrimSpace(in.Address)
		req.Latitude = &lat
		req.Longitude = &lon
		req.Description = in.Description
		req.RegistrationDocumentURL = in.DocumentURL
	}
	return s.api.SignUp(ctx, req)
}

func validateSignUp(in SignUp) error {
	name := strings.TrimSpace(in.Username)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return errs.Field("username", "is required")
	case n < 3:
		return errs.Field("username", "must be at least 3 characters")
	case n > 20:
		return errs.Field("username", "must be at most 20 characters")
	}
	if strings.TrimSpace(in.FullName) == "" {
		return errs.Field("fullName", "is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return errs.Field("email", "is invalid")
	}
	if err := validateNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return err
	}
	if in.AsNGO {
		if strings.TrimSpace(in.NgoName) == "" {
			return errs.Field("ngoName", "is required")
		}
		if strings.TrimSpace(in.Address) == "" {
			return errs.Field("address", "is required")
		}
		if in.Latitude == 0 && in.Longitude == 0 {
			return errs.Field("location", "is required")
		}
		if strings.TrimSpace(in.DocumentURL) == "" {
			return errs.Field("registrationDocument", "is required")
		}
	}
	return nil
}

func validateNewPassword(pw, confirm string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLen {
		return errs.Field("password", fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if pw != confirm {
		return errs.Field("confirmPassword", "does not match")
	}
	return nil
}

// Logout ends the session without calling the backend.
func (s *AuthServiceImpl) Logout() error { return s.sess.Logout() }

// ValidateToken implements session.Validator.
func (s *AuthServiceImpl) ValidateToken(ctx context.Context) (bool, error) {
	return s.api.ValidateToken(ctx)
}

// FetchProfile implements session.Validator.
func (s *AuthServiceImpl) FetchProfile(ctx context.Context) (model.Identity, error) {
	resp, err := s.api.Profile(ctx)
	if err != nil {
		return model.Identity{}, err
	}
	p, unknown := convert.ProfileFromUser(resp)
	warnUnknownRoles(s.log, unknown)
	return p.Identity, nil
}
