package submission

import "fmt"

// Step is a wizard page, 1-based.
type Step int

const (
	StepDetails Step = iota + 1
	StepDescription
	StepEvidence
)

// Steps is the number of wizard pages.
const Steps = 3

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "Animal details"
	case StepDescription:
		return "Description"
	case StepEvidence:
		return "Photos & location"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Wizard drives linear navigation over a Draft. Back is always allowed;
// Next is gated by the current step's predicate.
type Wizard struct {
	Draft *Draft
	step  Step
}

// NewWizard starts at step 1. A nil draft gets a fresh one.
func NewWizard(d *Draft) *Wizard {
	if d == nil {
		d = &Draft{}
	}
	return &Wizard{Draft: d, step: StepDetails}
}

func (w *Wizard) Step() Step { return w.step }

// Progress is the visible indicator, e.g. "Step 2 of 3".
func (w *Wizard) Progress() string { return fmt.Sprintf("Step %d of %d", w.step, Steps) }

// Check reports why s is incomplete, or nil.
func (w *Wizard) Check(s Step) error {
	switch s {
	case StepDetails:
		return w.Draft.CheckDetails()
	case StepDescription:
		return w.Draft.CheckDescription()
	case StepEvidence:
		return w.Draft.CheckEvidence()
	default:
		return fmt.Errorf("no step %d", s)
	}
}

// Complete is the predicate of step s.
func (w *Wizard) Complete(s Step) bool { return w.Check(s) == nil }

// Next advances when the current step is complete. On the last step it only
// validates; submission is the caller's move.
func (w *Wizard) Next() error {
	if err := w.Check(w.step); err != nil {
		return err
	}
	if w.step < StepEvidence {
		w.step++
	}
	return nil
}

// Back moves one step back; it reports false on the first step.
func (w *Wizard) Back() bool {
	if w.step == StepDetails {
		return false
	}
	w.step--
	return true
}

// Ready reports whether every step is complete.
func (w *Wizard) Ready() bool {
	for s := StepDetails; s <= StepEvidence; s++ {
		if !w.Complete(s) {
			return false
		}
	}
	return true
}

// Restart clears the draft and returns to step 1.
func (w *Wizard) Restart() {
	w.Draft.Reset()
	w.step = StepDetails
}
