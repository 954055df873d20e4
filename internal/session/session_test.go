package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/storage"
)

type fakeValidator struct {
	valid       bool
	validateErr error
	profile     model.Identity
	profileErr  error

	validateCalls atomic.Int32
	profileCalls  atomic.Int32
	seenToken     string
	tokens        func() string
}

var _ Validator = (*fakeValidator)(nil)

func (f *fakeValidator) ValidateToken(context.Context) (bool, error) {
	f.validateCalls.Add(1)
	if f.tokens != nil {
		f.seenToken = f.tokens()
	}
	return f.valid, f.validateErr
}

func (f *fakeValidator) FetchProfile(context.Context) (model.Identity, error) {
	f.profileCalls.Add(1)
	return f.profile, f.profileErr
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "asha",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func ngoID(v int64) *int64 { return &v }

func asha() model.Identity {
	return model.Identity{
		ID:       7,
		Username: "asha",
		Email:    "asha@example.org",
		FullName: "Asha Rao",
		NgoID:    ngoID(3),
		Roles:    []model.Role{model.RoleNGO},
	}
}

func TestNew_StartsPending(t *testing.T) {
	t.Parallel()

	s := New(storage.NewMemoryStore(), nil)
	require.Equal(t, Pending, s.State())
	require.False(t, s.IsAuthenticated())
	require.False(t, s.HasRole(model.RoleUser))
}

func TestLoginLogout(t *testing.T) {
	t.Parallel()

	durable := storage.NewMemoryStore()
	s := New(durable, zaptest.NewLogger(t))

	require.NoError(t, s.Login(asha(), "tok-1"))
	require.True(t, s.IsAuthenticated())
	require.True(t, s.HasRole(model.RoleNGO))
	require.False(t, s.HasRole(model.RoleAdmin))
	require.Equal(t, "tok-1", s.Token())

	tok, ok, err := durable.Get(storage.KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-1", tok)
	user, ok, err := durable.Get(storage.KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, user, `"fullName":"Asha Rao"`)
	require.NotContains(t, user, "password")

	require.NoError(t, s.Logout())
	require.Equal(t, Unauthenticated, s.State())
	require.False(t, s.HasRole(model.RoleNGO))
	require.Empty(t, s.Token())
	_, ok, _ = durable.Get(storage.KeyToken)
	require.False(t, ok)
	_, ok, _ = durable.Get(storage.KeyUser)
	require.False(t, ok)
}

func TestIdentity_IsACopy(t *testing.T) {
	t.Parallel()

	s := New(storage.NewMemoryStore(), nil)
	require.NoError(t, s.Login(asha(), "tok"))

	id, ok := s.Identity()
	require.True(t, ok)
	id.Roles[0] = model.RoleAdmin
	*id.NgoID = 99

	require.False(t, s.HasRole(model.RoleAdmin))
	again, _ := s.Identity()
	require.Equal(t, int64(3), *again.NgoID)
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()

	durable := storage.NewMemoryStore()
	s := New(durable, nil)

	name := "Asha R."
	require.ErrorIs(t, s.UpdateUser(Update{FullName: &name}), errs.ErrNotAuthenticated)

	require.NoError(t, s.Login(asha(), "tok"))
	require.NoError(t, s.UpdateUser(Update{FullName: &name}))

	id, _ := s.Identity()
	require.Equal(t, "Asha R.", id.FullName)
	require.Equal(t, "asha@example.org", id.Email)
	require.Equal(t, "tok", s.Token())

	user, _, _ := durable.Get(storage.KeyUser)
	require.Contains(t, user, `"fullName":"Asha R."`)
}

func TestOnChange(t *testing.T) {
	t.Parallel()

	s := New(storage.NewMemoryStore(), nil)
	var seen []State
	s.OnChange(func(st State) { seen = append(seen, st) })

	require.NoError(t, s.Login(asha(), "tok"))
	require.NoError(t, s.Login(asha(), "tok-2"))
	require.NoError(t, s.Logout())

	require.Equal(t, []State{Authenticated, Unauthenticated}, seen)
}

func TestRehydrate(t *testing.T) {
	t.Parallel()

	fresh := func(t *testing.T) string { return signed(t, time.Now().Add(time.Hour)) }

	tests := []struct {
		name         string
		token        func(t *testing.T) string
		storeUser    bool
		validator    *fakeValidator
		want         State
		wantValidate int32
		wantProfile  int32
	}{
		{
			name:      "no token",
			validator: &fakeValidator{valid: true},
			want:      Unauthenticated,
		},
		{
			name:      "expired jwt skips network",
			token:     func(t *testing.T) string { return signed(t, time.Now().Add(-time.Minute)) },
			storeUser: true,
			validator: &fakeValidator{valid: true},
			want:      Unauthenticated,
		},
		{
			name:         "backend rejects",
			token:        fresh,
			storeUser:    true,
			validator:    &fakeValidator{valid: false},
			want:         Unauthenticated,
			wantValidate: 1,
		},
		{
			name:         "validation error",
			token:        fresh,
			storeUser:    true,
			validator:    &fakeValidator{validateErr: errs.ErrUnavailable},
			want:         Unauthenticated,
			wantValidate: 1,
		},
		{
			name:         "valid with stored identity",
			token:        fresh,
			storeUser:    true,
			validator:    &fakeValidator{valid: true},
			want:         Authenticated,
			wantValidate: 1,
		},
		{
			name:         "opaque token goes to backend",
			token:        func(*testing.T) string { return "opaque-token" },
			storeUser:    true,
			validator:    &fakeValidator{valid: true},
			want:         Authenticated,
			wantValidate: 1,
		},
		{
			name:         "identity fetched when missing",
			token:        fresh,
			validator:    &fakeValidator{valid: true, profile: asha()},
			want:         Authenticated,
			wantValidate: 1,
			wantProfile:  1,
		},
		{
			name:         "identity fetch fails",
			token:        fresh,
			validator:    &fakeValidator{valid: true, profileErr: errors.New("boom")},
			want:         Unauthenticated,
			wantValidate: 1,
			wantProfile:  1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			durable := storage.NewMemoryStore()
			if tt.token != nil {
				require.NoError(t, durable.Set(storage.KeyToken, tt.token(t)))
			}
			if tt.storeUser {
				require.NoError(t, (&Store{durable: durable}).writeUser(asha()))
			}

			s := New(durable, zaptest.NewLogger(t))
			got := s.Rehydrate(context.Background(), tt.validator)

			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want, s.State())
			require.Equal(t, tt.wantValidate, tt.validator.validateCalls.Load())
			require.Equal(t, tt.wantProfile, tt.validator.profileCalls.Load())

			if tt.want == Unauthenticated {
				_, ok, _ := durable.Get(storage.KeyToken)
				require.False(t, ok, "storage must be cleared")
				return
			}
			id, ok := s.Identity()
			require.True(t, ok)
			require.Equal(t, "asha", id.Username)
			_, ok, _ = durable.Get(storage.KeyUser)
			require.True(t, ok)
		})
	}
}

func TestRehydrate_TokenVisibleWhilePending(t *testing.T) {
	t.Parallel()

	durable := storage.NewMemoryStore()
	require.NoError(t, durable.Set(storage.KeyToken, "opaque"))

	s := New(durable, nil)
	v := &fakeValidator{valid: true, profile: asha(), tokens: s.Token}

	require.Equal(t, Authenticated, s.Rehydrate(context.Background(), v))
	require.Equal(t, "opaque", v.seenToken)
}
