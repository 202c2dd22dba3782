package publisher

// State is the pipeline stage of the most recent submission.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateReducing
	StateCommitting
	StateRendering
	StatePublished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateReducing:
		return "reducing"
	case StateCommitting:
		return "committing"
	case StateRendering:
		return "rendering"
	case StatePublished:
		return "published"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
