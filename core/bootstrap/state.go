package bootstrap

// State is a step of the boot lifecycle.
type State int32

const (
	StateCold State = iota
	StateMigrating
	StateSettingUp
	StateCompilingSchema
	StateFetchingRanges
	StateTimersArmed
	StateListening
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateMigrating:
		return "migrating"
	case StateSettingUp:
		return "setting_up"
	case StateCompilingSchema:
		return "compiling_schema"
	case StateFetchingRanges:
		return "fetching_ranges"
	case StateTimersArmed:
		return "timers_armed"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
