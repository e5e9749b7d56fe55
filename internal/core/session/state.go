package session

// State is a node of the authentication state machine.
type State int

const (
	StateCheckingSession State = iota
	StateUnauthenticated
	StateAwaitingOTP
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateCheckingSession:
		return "checking session"
	case StateUnauthenticated:
		return "signed out"
	case StateAwaitingOTP:
		return "awaiting code"
	case StateAuthenticated:
		return "signed in"
	default:
		return "unknown"
	}
}

// Snapshot is the view-facing copy of the manager's state. The session
// token is deliberately absent; use Manager.Authorize to attach it.
type Snapshot struct {
	State State
	// Email is the confirmed identity while authenticated.
	Email string
	// PendingEmail is the address a code was sent to while awaiting OTP.
	PendingEmail string
	// Err is the last error reported by an operation, cleared on success.
	Err error
	// Generation increases with every operation that was started.
	Generation uint64
}

// Authenticated reports whether protected views may render.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}
