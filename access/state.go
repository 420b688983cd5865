package access

// State is a step of a single access attempt.
type State int

const (
	Idle State = iota
	CheckingIdentity
	FreeAccess
	NeedsPayment
	AwaitingUserConfirmation
	Simulating
	AwaitingSignature
	Submitting
	Confirming
	Unlocked
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckingIdentity:
		return "checking-identity"
	case FreeAccess:
		return "free-access"
	case NeedsPayment:
		return "needs-payment"
	case AwaitingUserConfirmation:
		return "awaiting-user-confirmation"
	case Simulating:
		return "simulating"
	case AwaitingSignature:
		return "awaiting-signature"
	case Submitting:
		return "submitting"
	case Confirming:
		return "confirming"
	case Unlocked:
		return "unlocked"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Granted reports whether the state exposes the full record.
func (s State) Granted() bool {
	return s == FreeAccess || s == Unlocked
}

// Final reports whether an attempt ends in this state.
func (s State) Final() bool {
	return s == FreeAccess || s == Unlocked || s == Failed
}
