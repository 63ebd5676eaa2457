package portal

import (
	"fmt"
)

// State is one step of the login state machine
type State int

const (
	StateInit State = iota
	StatePageLoaded
	StateLoginControlLocated
	StateLoginNavigated
	StateEmailEntered
	StatePasswordEntered
	StateConsentHandled
	StateTicketsPageLoaded
	StateCookiesExtracted
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateInit:                "init",
	StatePageLoaded:          "page-loaded",
	StateLoginControlLocated: "login-control-located",
	StateLoginNavigated:      "login-navigated",
	StateEmailEntered:        "email-entered",
	StatePasswordEntered:     "password-entered",
	StateConsentHandled:      "consent-handled",
	StateTicketsPageLoaded:   "tickets-page-loaded",
	StateCookiesExtracted:    "cookies-extracted",
	StateDone:                "done",
	StateFailed:              "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FailReason is the typed cause of a failed login transition
type FailReason string

const (
	ReasonNavigationTimeout      FailReason = "navigation-timeout"
	ReasonLoginControlNotFound   FailReason = "login-control-not-found"
	ReasonLoginNavigationTimeout FailReason = "login-navigation-timeout"
	ReasonEmailFieldTimeout      FailReason = "email-field-timeout"
	ReasonPasswordFieldTimeout   FailReason = "password-field-timeout"
	ReasonNoSessionEstablished   FailReason = "no-session-established"
)

// FlowError reports which transition failed and why
type FlowError struct {
	From   State
	To     State
	Reason FailReason
	Err    error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed at %s -> %s (%s): %v", e.From, e.To, e.Reason, e.Err)
	}
	return fmt.Sprintf("login failed at %s -> %s (%s)", e.From, e.To, e.Reason)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func failed(from, to State, reason FailReason, err error) *FlowError {
	return &FlowError{From: from, To: to, Reason: reason, Err: err}
}
