// Command rk is the command-line client for the Pashu Rakshak animal rescue service.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/authz"
	"github.com/pashurakshak/rakshak/internal/config"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/service"
	"github.com/pashurakshak/rakshak/internal/session"
	"github.com/pashurakshak/rakshak/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `rk, Pashu Rakshak client
Usage:
  rk [global flags] <cmd> [args]

Commands:
  version
  signup      -u <user> --email <e> -p <pass> --name <n> --phone <p> [--ngo --ngo-name ... --at lat,lon]
  login       -u <user> -p <pass> [--from /path]
  logout
  whoami
  profile     [show | update --name --email --phone | password --current --new --confirm]

  report new     [--name --phone --email --quick]          (interactive)
  report submit  --animal --condition --description --image f [--at lat,lon | --locate] [--quick]
  track <id>     [--follow]

  ngo dashboard | available | cases | workers
  ngo accept <id> | advance <id> [--to S] [--yes] | assign <id> --worker <n>
  ngo add-worker --username --name --email [--phone]
  ngo nearby --at lat,lon [--radius km]

  worker tasks | advance <id> [--yes]
  worker track [--source gpsd|file|static] [--file f] [--at lat,lon]

  admin dashboard | users [--role R] | toggle <id> | delete-user <id> [--yes]
  admin role add|remove <id> <ROLE>
  admin ngos | pending | approve <id> | reject <id> --reason r | deactivate <id>
  admin export --dataset reports|users|ngos --format csv|xlsx [-o file]

Global flags:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// command is one leaf of the command tree.
type command struct {
	// route is the view the command stands for; it passes the gate before run.
	route string
	// daemon commands run until interrupted and log in production format.
	daemon bool
	run    func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"signup":  {route: "/signup", run: cmdSignup},
	"login":   {route: authz.LoginPath, run: cmdLogin},
	"logout":  {route: "/", run: cmdLogout},
	"whoami":  {route: "/profile", run: cmdWhoami},
	"profile": {route: "/profile", run: cmdProfileShow},

	"profile show":     {route: "/profile", run: cmdProfileShow},
	"profile update":   {route: "/profile", run: cmdProfileUpdate},
	"profile password": {route: "/profile", run: cmdProfilePassword},

	"report new":    {route: "/report-animal", run: cmdReportNew},
	"report submit": {route: "/report-animal", run: cmdReportSubmit},
	"track":         {route: "/track-report", run: cmdTrack},

	"ngo dashboard":  {route: "/ngo/dashboard", run: cmdNGODashboard},
	"ngo available":  {route: "/ngo/dashboard", run: cmdNGOAvailable},
	"ngo cases":      {route: "/ngo/dashboard", run: cmdNGOCases},
	"ngo accept":     {route: "/ngo/dashboard", run: cmdNGOAccept},
	"ngo advance":    {route: "/ngo/dashboard", run: cmdAdvance},
	"ngo assign":     {route: "/manage-ngo", run: cmdNGOAssign},
	"ngo workers":    {route: "/manage-ngo", run: cmdNGOWorkers},
	"ngo add-worker": {route: "/manage-ngo", run: cmdNGOAddWorker},
	"ngo nearby":     {route: "/emergency", run: cmdNGONearby},

	"worker tasks":   {route: "/worker/dashboard", run: cmdWorkerTasks},
	"worker advance": {route: "/worker/dashboard", run: cmdAdvance},
	"worker track":   {route: "/worker/dashboard", daemon: true, run: cmdWorkerTrack},

	"admin dashboard":   {route: "/admin/dashboard", run: cmdAdminDashboard},
	"admin export":      {route: "/admin/dashboard", run: cmdAdminExport},
	"admin users":       {route: "/admin/users", run: cmdAdminUsers},
	"admin toggle":      {route: "/admin/users", run: cmdAdminToggle},
	"admin delete-user": {route: "/admin/users", run: cmdAdminDeleteUser},
	"admin role":        {route: "/admin/users", run: cmdAdminRole},
	"admin ngos":        {route: "/admin/ngos", run: cmdAdminNGOs},
	"admin pending":     {route: "/admin/ngos", run: cmdAdminPending},
	"admin approve":     {route: "/admin/ngos", run: cmdAdminApprove},
	"admin reject":      {route: "/admin/ngos", run: cmdAdminReject},
	"admin deactivate":  {route: "/admin/ngos", run: cmdAdminDeactivate},
}

// lookup resolves "group sub" first, then a single word.
func lookup(args []string) (string, command, []string, bool) {
	if len(args) >= 2 {
		name := args[0] + " " + args[1]
		if c, ok := commands[name]; ok {
			return name, c, args[2:], true
		}
	}
	c, ok := commands[args[0]]
	return args[0], c, args[1:], ok
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the exit, so tests can drive it.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("rk", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	flags := config.Default()
	flags.Flags(fs)
	cfgPath := fs.String("config", "", "config file (default "+config.DefaultPath()+")")
	ephemeral := fs.Bool("ephemeral", false, "keep the session in memory only")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr, fs)
		return 2
	}
	if fs.Arg(0) == "version" {
		fmt.Fprintf(stdout, "rk %s (%s)\n", version, buildDate)
		return 0
	}
	name, cmd, rest, ok := lookup(fs.Args())
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", strings.Join(fs.Args(), " "))
		usage(stderr, fs)
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fail(stderr, err)
	}
	config.Overlay(fs, flags, &cfg)
	if err := cfg.Validate(); err != nil {
		return fail(stderr, err)
	}

	log, err := newLogger(cfg.LogLevel, cmd.daemon)
	if err != nil {
		return fail(stderr, err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("cmd", name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, *ephemeral, log, stdin, stdout, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	a.sess.Rehydrate(ctx, a.auth)
	if err := a.gate(cmd.route); err != nil {
		return fail(stderr, err)
	}
	if err := cmd.run(ctx, a, rest); err != nil {
		log.Debug("command failed", zap.Error(err))
		return fail(stderr, err)
	}
	return 0
}

func newLogger(level string, daemon bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if daemon {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// app carries the wired collaborators of one invocation.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	sess    *session.Store
	client  *api.Client
	auth    service.AuthService
	profile service.ProfileService
	cases   service.CasesService
	admin   service.AdminService
	ngo     service.NGODashboardService
	export  service.ExportService

	expired sync.Once
}

func newApp(cfg config.Config, ephemeral bool, log *zap.Logger, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	var durable storage.Store = storage.NewMemoryStore()
	if !ephemeral {
		durable = storage.NewFileStore(cfg.StoragePath, cfg.StoragePassphrase)
	}
	a := &app{
		cfg:    cfg,
		log:    log,
		in:     bufio.NewReader(stdin),
		out:    stdout,
		errOut: stderr,
		sess:   session.New(durable, log),
	}
	client, err := api.New(api.Options{
		BaseURL:        cfg.APIURL,
		Tokens:         a.sess,
		Timeout:        cfg.Timeout,
		Logger:         log,
		OnUnauthorized: a.unauthorized,
	})
	if err != nil {
		return nil, err
	}
	a.client = client
	a.auth = service.NewAuthService(client, a.sess, log)
	a.profile = service.NewProfileService(client, a.sess, log)
	a.cases = service.NewCasesService(client, client, a.sess, log)
	a.admin = service.NewAdminService(client, client, client, a.sess, log)
	a.ngo = service.NewNGODashboardService(client, client, a.sess)
	a.export = service.NewExportService(a.admin)
	return a, nil
}

// unauthorized ends an established session on the first 401 and points at the login view.
func (a *app) unauthorized() {
	if a.sess.State() != session.Authenticated {
		return
	}
	if err := a.sess.Logout(); err != nil {
		a.log.Warn("clear session", zap.Error(err))
	}
	a.expired.Do(func() {
		fmt.Fprintf(a.errOut, "session expired → %s\n", authz.LoginPath)
	})
}

// gate applies the route guard to the command's view.
func (a *app) gate(route string) error {
	d := authz.Check(a.sess, route)
	switch d.Kind {
	case authz.Render:
		return nil
	case authz.RedirectLogin:
		return fmt.Errorf("%w: sign in first → %s", errs.ErrNotAuthenticated, d.Target())
	case authz.RedirectUnauthorized:
		return fmt.Errorf("%w: your role cannot open %s → %s", errs.ErrForbidden, route, d.Target())
	default:
		return fmt.Errorf("%w: session is still being validated", errs.ErrUnavailable)
	}
}
