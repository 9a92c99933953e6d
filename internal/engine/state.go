package engine

// State is a sync stage.
type State int

const (
	StateIdle State = iota
	StateRefreshingPermissions
	StateSwitchToProject
	StateSyncingProject
	StateSyncingCorpora
	StateSyncingAlignments
	StateUpdatingProject
	StateSuccess
	StateFailed
	StateCanceled
)

// stateSuspended is returned by a stage that hands control to an external
// continuation; nothing is enqueued until the continuation fires.
const stateSuspended State = -1

var stateNames = [...]string{
	StateIdle:                  "IDLE",
	StateRefreshingPermissions: "REFRESHING_PERMISSIONS",
	StateSwitchToProject:       "SWITCH_TO_PROJECT",
	StateSyncingProject:        "SYNCING_PROJECT",
	StateSyncingCorpora:        "SYNCING_CORPORA",
	StateSyncingAlignments:     "SYNCING_ALIGNMENTS",
	StateUpdatingProject:       "UPDATING_PROJECT",
	StateSuccess:               "SUCCESS",
	StateFailed:                "FAILED",
	StateCanceled:              "CANCELED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateCanceled
}

// MarshalText renders the state name for JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
