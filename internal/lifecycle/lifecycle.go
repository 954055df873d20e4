// Package lifecycle is the report status state machine.
//
// The client only ever offers the single canonical next step: no skips, no
// regressions, nothing after CASE_RESOLVED. Accepting an unassigned report is
// orthogonal to status and never changes it.
package lifecycle

import (
	"fmt"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
)

// Next returns the canonical successor of s.
func Next(s model.Status) (model.Status, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(model.Statuses) {
		return "", false
	}
	return model.Statuses[i+1], true
}

// ActionKind distinguishes status advances from acceptance.
type ActionKind int

const (
	Advance ActionKind = iota
	Accept
)

// Action is something the UI may offer for a report.
type Action struct {
	Kind ActionKind
	// To is the target status of an Advance.
	To model.Status
	// NeedsConfirmation is set when the advance closes the case.
	NeedsConfirmation bool
}

func (a Action) String() string {
	if a.Kind == Accept {
		return "Accept"
	}
	return "Mark as " + a.To.Label()
}

// Offer lists the actions available for r.
func Offer(r model.Report) []Action {
	var out []Action
	if r.Available() {
		out = append(out, Action{Kind: Accept})
	}
	if next, ok := Next(r.Status); ok {
		out = append(out, Action{Kind: Advance, To: next, NeedsConfirmation: next.IsTerminal()})
	}
	return out
}

// CheckAdvance rejects anything other than the canonical next step from current.
func CheckAdvance(current, requested model.Status) error {
	next, ok := Next(current)
	if !ok {
		return fmt.Errorf("%w: %s has no next status", errs.ErrInvalidTransition, current)
	}
	if requested != next {
		return fmt.Errorf("%w: %s -> %s (expected %s)", errs.ErrInvalidTransition, current, requested, next)
	}
	return nil
}

// Available keeps reports with no NGO assignment, regardless of status.
func Available(reports []model.Report) []model.Report {
	return filter(reports, model.Report.Available)
}

// Active keeps reports that are not yet resolved.
func Active(reports []model.Report) []model.Report {
	return filter(reports, func(r model.Report) bool { return !r.Status.IsTerminal() })
}

// Resolved keeps closed reports.
func Resolved(reports []model.Report) []model.Report {
	return filter(reports, func(r model.Report) bool { return r.Status.IsTerminal() })
}

func filter(reports []model.Report, keep func(model.Report) bool) []model.Report {
	out := make([]model.Report, 0, len(reports))
	for _, r := range reports {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
