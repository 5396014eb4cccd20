package payment

// State is the position of a run in the payment state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateQueryingFunds
	StateSelectingFunding
	StatePaying
	StateNotifying
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateQueryingFunds:
		return "querying_funds"
	case StateSelectingFunding:
		return "selecting_funding"
	case StatePaying:
		return "paying"
	case StateNotifying:
		return "notifying"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}
