package pipeline

// State is a phase of a pipeline run.
type State string

// Run states in the order a run moves through them.
const (
	StateIdle         State = "idle"
	StateLaunching    State = "launching"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateAnalyzing    State = "analyzing"
	StateUpdatingCRM  State = "updating_crm"
	StateDone         State = "done"
	// StateTearingDown may be entered from any state.
	StateTearingDown State = "tearing_down"
)

// StateDefinition describes one forward state of a run
type StateDefinition struct {
	State       State
	Description string
}

// Sequence lists the forward states in order.
var Sequence = []StateDefinition{
	{StateIdle, "waiting to start"},
	{StateLaunching, "opening the meeting in the browser"},
	{StateRecording, "recording meeting audio"},
	{StateTranscribing, "transcribing the recording"},
	{StateAnalyzing, "scoring the call"},
	{StateUpdatingCRM, "writing the summary to the CRM"},
	{StateDone, "finished"},
}

func (s State) order() int {
	for i, def := range Sequence {
		if def.State == s {
			return i
		}
	}
	return -1
}

// Description returns the human-readable description of s.
func (s State) Description() string {
	if s == StateTearingDown {
		return "releasing browser and recorder"
	}
	if i := s.order(); i >= 0 {
		return Sequence[i].Description
	}
	return string(s)
}

// CanAdvance reports whether a run may move from one state to another.
// Runs only move forward; teardown is reachable from anywhere.
func CanAdvance(from, to State) bool {
	if to == StateTearingDown {
		return true
	}
	if from == StateTearingDown {
		return false
	}
	f, t := from.order(), to.order()
	return f >= 0 && t > f
}
