// Package authz decides whether a view may be shown for the current session.
package authz

import (
	"net/url"
	"strings"

	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/session"
)

// Kind is the outcome of a gate evaluation.
type Kind int

const (
	Render Kind = iota
	RedirectLogin
	RedirectUnauthorized
	// Wait means the session has not settled; neither render nor redirect yet.
	Wait
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "RENDER"
	case RedirectLogin:
		return "REDIRECT_LOGIN"
	case RedirectUnauthorized:
		return "REDIRECT_UNAUTHORIZED"
	case Wait:
		return "PENDING"
	default:
		return "UNKNOWN"
	}
}

// Fixed routes.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Decision is what the caller should do with the attempted view.
type Decision struct {
	Kind Kind
	// From is the attempted path, set for RedirectLogin.
	From string
}

// Target is the path to navigate to, empty for Render and Wait.
func (d Decision) Target() string {
	switch d.Kind {
	case RedirectLogin:
		if d.From == "" {
			return LoginPath
		}
		return LoginPath + "?from=" + url.QueryEscape(d.From)
	case RedirectUnauthorized:
		return UnauthorizedPath
	default:
		return ""
	}
}

// Evaluate applies the gate. It has no side effects and caches nothing.
func Evaluate(s session.Reader, required *model.Role, attemptedPath string) Decision {
	switch s.State() {
	case session.Pending:
		return Decision{Kind: Wait}
	case session.Authenticated:
	default:
		return Decision{Kind: RedirectLogin, From: attemptedPath}
	}
	if required != nil && !s.HasRole(*required) {
		return Decision{Kind: RedirectUnauthorized}
	}
	return Decision{Kind: Render}
}

// Route is a navigable view.
type Route struct {
	Path      string
	Protected bool
	// Role is required when non-nil; a protected route with no role admits any session.
	Role *model.Role
}

func role(r model.Role) *model.Role { return &r }

// Routes is the product route table.
var Routes = []Route{
	{Path: "/"},
	{Path: LoginPath},
	{Path: "/signup"},
	{Path: "/report-animal"},
	{Path: "/track-report"},
	{Path: "/emergency"},
	{Path: UnauthorizedPath},
	{Path: "/profile", Protected: true},
	{Path: "/dashboard", Protected: true},
	{Path: "/user/dashboard", Protected: true, Role: role(model.RoleUser)},
	{Path: "/admin/dashboard", Protected: true, Role: role(model.RoleAdmin)},
	{Path: "/admin/users", Protected: true, Role: role(model.RoleAdmin)},
	{Path: "/admin/ngos", Protected: true, Role: role(model.RoleAdmin)},
	{Path: "/ngo/dashboard", Protected: true, Role: role(model.RoleNGO)},
	{Path: "/manage-ngo", Protected: true, Role: role(model.RoleNGO)},
	{Path: "/worker/dashboard", Protected: true, Role: role(model.RoleNGOWorker)},
}

// Lookup finds the route for path, ignoring any query string.
func Lookup(path string) (Route, bool) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Check evaluates the gate for a known route. Public and unknown routes render.
func Check(s session.Reader, path string) Decision {
	r, ok := Lookup(path)
	if !ok || !r.Protected {
		return Decision{Kind: Render}
	}
	return Evaluate(s, r.Role, path)
}

// LandingPath is the default view after login for the given roles.
func LandingPath(roles []model.Role) string {
	switch model.PrimaryRole(roles) {
	case model.RoleAdmin:
		return "/admin/dashboard"
	case model.RoleNGO:
		return "/ngo/dashboard"
	case model.RoleNGOWorker:
		return "/worker/dashboard"
	default:
		return "/user/dashboard"
	}
}

// AfterLogin returns the captured redirect target when there is one, else the landing view.
// Targets pointing back at the login page or off-site are ignored.
func AfterLogin(roles []model.Role, from string) string {
	if from != "" && strings.HasPrefix(from, "/") && !strings.HasPrefix(from, "//") &&
		!strings.HasPrefix(from, LoginPath) {
		return from
	}
	return LandingPath(roles)
}
