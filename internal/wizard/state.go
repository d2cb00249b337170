package wizard

import "fmt"

// Phase is the coarse state of the wizard.
type Phase string

const (
	PhaseEditing    Phase = "editing"
	PhaseValidating Phase = "validating"
	PhaseReview     Phase = "review"
	PhaseSubmitted  Phase = "submitted"
)

// State is Editing(step), Validating(step), Review or Submitted. Step is
// zero for the last two.
type State struct {
	Phase Phase `json:"phase"`
	Step  int   `json:"step,omitempty"`
}

func Editing(step int) State {
	return State{Phase: PhaseEditing, Step: step}
}

func Validating(step int) State {
	return State{Phase: PhaseValidating, Step: step}
}

var (
	Review    = State{Phase: PhaseReview}
	Submitted = State{Phase: PhaseSubmitted}
)

func (s State) String() string {
	if s.Step == 0 {
		return string(s.Phase)
	}
	return fmt.Sprintf("%s(%d)", s.Phase, s.Step)
}
