package sessions

// Status is derived from the store contents and never stored on its own.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Cause names the mutation that produced an Event.
type Cause string

const (
	CauseTokensUpdated Cause = "tokens_updated"
	CauseUserUpdated   Cause = "user_updated"
	CauseLoading       Cause = "loading"
	CauseCleared       Cause = "cleared"
	CauseLogout        Cause = "logout"
	CauseExpired       Cause = "expired"
)

// Event is published to listeners after a store mutation.
type Event struct {
	Previous Status
	Current  Status
	Cause    Cause
}

// Changed reports whether the mutation moved the session to another status.
func (e Event) Changed() bool {
	return e.Previous != e.Current
}

// Ended reports whether the event terminated an authenticated or
// in-progress session. A presentation layer routes to its login view on it.
func (e Event) Ended() bool {
	return e.Current == Unauthenticated && e.Previous != Unauthenticated
}
