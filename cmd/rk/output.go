package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/lifecycle"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/service"
	"github.com/pashurakshak/rakshak/internal/wizard"
)

// fail prints the one-line message for err and returns the exit code.
func fail(w io.Writer, err error) int {
	fmt.Fprintln(w, "error:", toast(err))
	return 1
}

// toast turns err into the text shown to the user.
func toast(err error) string {
	var (
		fe *errs.FieldError
		ae *api.Error
	)
	switch {
	case errors.As(err, &fe):
		return fe.Error()
	case errors.Is(err, geo.ErrPermissionDenied),
		errors.Is(err, geo.ErrPositionUnavailable),
		errors.Is(err, geo.ErrTimeout):
		return geo.Message(err)
	case errors.Is(err, errs.ErrUploadFailed):
		return err.Error()
	case errors.As(err, &ae) && ae.Message != "":
		return ae.Message
	case errors.Is(err, service.ErrDeclined), errors.Is(err, wizard.ErrAborted):
		return "cancelled"
	}
	return err.Error()
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// flags returns a subcommand flag set writing its errors to stderr.
func (a *app) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// prompt reads one line from stdin.
func (a *app) prompt(q string) (string, error) {
	fmt.Fprint(a.out, q)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirmer asks on stdin before a case is closed; yes skips the question.
func (a *app) confirmer(yes bool) service.Confirmer {
	return func(r model.Report, to model.Status) (bool, error) {
		if yes {
			return true, nil
		}
		ans, err := a.prompt(fmt.Sprintf("Mark %s as %s? This closes the case. [y/N] ", r.TrackingID, to.Label()))
		if err != nil {
			return false, err
		}
		ans = strings.ToLower(ans)
		return ans == "y" || ans == "yes", nil
	}
}

func oneArg(args []string, what string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errs.Field(what, "exactly one is required")
	}
	return strings.TrimSpace(args[0]), nil
}

func idArg(args []string, what string) (int64, error) {
	s, err := oneArg(args, what)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Field(what, fmt.Sprintf("%q is not an id", s))
	}
	return id, nil
}

// ---- views ----

type reportRow struct {
	TrackingID string   `json:"trackingId"`
	Animal     string   `json:"animal"`
	Condition  string   `json:"condition"`
	Status     string   `json:"status"`
	Location   string   `json:"location,omitempty"`
	NGO        string   `json:"ngo,omitempty"`
	Worker     string   `json:"worker,omitempty"`
	Created    string   `json:"created,omitempty"`
	Actions    []string `json:"actions,omitempty"`
}

func reportRows(rs []model.Report) []reportRow {
	out := make([]reportRow, 0, len(rs))
	for _, r := range rs {
		row := reportRow{
			TrackingID: r.TrackingID,
			Animal:     string(r.AnimalType),
			Condition:  string(r.Condition),
			Status:     r.Status.Label(),
			Location:   location(r.Position),
			NGO:        r.AssignedNgoName,
			Worker:     r.AssignedWorkerName,
			Created:    stamp(r.CreatedAt),
		}
		for _, act := range lifecycle.Offer(r) {
			row.Actions = append(row.Actions, act.String())
		}
		out = append(out, row)
	}
	return out
}

type reportDetail struct {
	reportRow
	Description string   `json:"description,omitempty"`
	Injury      string   `json:"injury,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Images      []string `json:"images,omitempty"`
	Reporter    string   `json:"reporter,omitempty"`
	Directions  string   `json:"directions,omitempty"`
	Updated     string   `json:"updated,omitempty"`
}

func detail(r model.Report) reportDetail {
	d := reportDetail{
		reportRow:   reportRows([]model.Report{r})[0],
		Description: r.Description,
		Injury:      r.InjuryDescription,
		Notes:       r.AdditionalNotes,
		Images:      r.ImageURLs,
		Reporter:    r.Reporter.Name,
		Updated:     stamp(r.UpdatedAt),
	}
	if !r.Position.IsZero() {
		d.Directions = geo.DirectionsURL(nil, r.Position)
	}
	return d
}

type profileRow struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Roles    []string `json:"roles"`
	NgoID    *int64   `json:"ngoId,omitempty"`
	Enabled  bool     `json:"enabled"`
}

func profileRows(ps []model.Profile) []profileRow {
	out := make([]profileRow, 0, len(ps))
	for _, p := range ps {
		out = append(out, profileRow{
			ID:       p.ID,
			Username: p.Username,
			Name:     p.FullName,
			Email:    p.Email,
			Phone:    p.Phone,
			Roles:    roleNames(p.Roles),
			NgoID:    p.NgoID,
			Enabled:  p.Enabled,
		})
	}
	return out
}

type ngoRow struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"verification"`
	Active   bool    `json:"active"`
	Phone    string  `json:"phone,omitempty"`
	Address  string  `json:"address,omitempty"`
	Reason   string  `json:"rejectionReason,omitempty"`
	Distance float64 `json:"distanceKm,omitempty"`
}

func ngoRows(ns []model.NGO) []ngoRow {
	out := make([]ngoRow, 0, len(ns))
	for _, n := range ns {
		out = append(out, ngoRow{
			ID:      n.ID,
			Name:    n.Name,
			Status:  string(n.Verification),
			Active:  n.Active,
			Phone:   n.Phone,
			Address: n.Address,
			Reason:  n.RejectionReason,
		})
	}
	return out
}

func roleNames(rs []model.Role) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, string(r))
	}
	return out
}

func location(p model.Position) string {
	if p.Address != "" {
		return p.Address
	}
	if p.IsZero() {
		return ""
	}
	return geo.FormatCoordinates(p.Latitude, p.Longitude)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
