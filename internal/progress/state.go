package progress

// State is the last reported playback state of a client.
type State string

const (
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

func (s State) Valid() bool {
	switch s {
	case StatePlaying, StatePaused, StateStopped:
		return true
	}
	return false
}
