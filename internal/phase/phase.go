// Package phase implements the conversation state machine.
//
// A conversation moves through a closed set of phases:
//
//	unstarted -> verifying -> rewarding -> done
//
// plus a terminal "rejected" phase that is only ever set by an administrative
// action, never by the transition function itself. Transitions are driven by
// signals detected in the latest agent reply; Next is total over (Phase,
// Signal) and leaves the phase unchanged for every pair that does not name an
// explicit transition.
package phase

import "fmt"

// Phase is the current stage of a conversation.
type Phase string

const (
	// Unstarted means no phase has been recorded yet. It is the zero value
	// so a profile without a phase field parses into the right state.
	Unstarted Phase = ""

	// Verifying is the identity-verification stage.
	Verifying Phase = "verifying"

	// Rewarding is the gated present-disclosure stage.
	Rewarding Phase = "rewarding"

	// Done means all presents have been disclosed. Terminal.
	Done Phase = "done"

	// Rejected means an admin shut the conversation down. Terminal.
	Rejected Phase = "rejected"
)

// Parse validates a stored phase value. Unknown values are rejected at the
// boundary rather than treated as unstarted.
func Parse(s string) (Phase, error) {
	switch p := Phase(s); p {
	case Unstarted, Verifying, Rewarding, Done, Rejected:
		return p, nil
	default:
		return Unstarted, fmt.Errorf("unknown phase %q", s)
	}
}

// Terminal reports whether the phase accepts no further agent turns.
func (p Phase) Terminal() bool {
	return p == Done || p == Rejected
}

// String returns a readable name for logging. The zero value logs as
// "unstarted" instead of an empty string.
func (p Phase) String() string {
	if p == Unstarted {
		return "unstarted"
	}
	return string(p)
}

// Signal is a phase-transition trigger detected in an agent reply.
type Signal int

const (
	// SignalNone means the reply carried no transition marker.
	SignalNone Signal = iota

	// SignalVerified means the agent confirmed the speaker's identity.
	SignalVerified

	// SignalComplete means the agent announced all presents are described.
	SignalComplete
)

// Next returns the phase that follows p when s is observed. It is total:
// unmatched pairs return p unchanged, and terminal phases never advance.
func Next(p Phase, s Signal) Phase {
	switch {
	case p == Verifying && s == SignalVerified:
		return Rewarding
	case p == Rewarding && s == SignalComplete:
		return Done
	default:
		return p
	}
}
