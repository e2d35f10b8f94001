package dutycycle

// State is the phase of the duty cycle the controller is in.
type State int

// Controller states, in cycle order.
const (
	StateIdle State = iota
	StateAcquiring
	StateUploading
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateUploading:
		return "uploading"
	case StateSleeping:
		return "sleeping"
	}
	return "unknown"
}

// SleepMode selects how the board rests between cycles.
type SleepMode string

// Sleep modes.
const (
	// SleepModePause keeps the process and the board running.
	SleepModePause SleepMode = "pause"
	// SleepModeDeep powers the board down until the wake alarm fires. The process ends.
	SleepModeDeep SleepMode = "deep"
)
