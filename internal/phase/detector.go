package phase

import "strings"

// Detector maps an agent reply to a transition signal. It is a function type
// so the marker-phrase heuristic can be swapped for a classifier without
// touching the state machine.
type Detector func(reply string) Signal

// Marker phrases the setup prompts instruct the model to emit verbatim.
// Matching is case-insensitive and only ever runs against the most recent
// reply, never the full history.
const (
	confirmationMarker = "i believe you are "
	completionMarker   = "that's everything on your list"
	// Older prompt revisions used this wording; keep matching it.
	completionMarkerAlt = "all of your presents"
)

// MarkerDetector returns a Detector keyed to the given profile name. The
// confirmation marker includes the name so that the model merely discussing
// belief ("I believe you!") does not fire a transition.
func MarkerDetector(name string) Detector {
	confirmation := confirmationMarker + strings.ToLower(name)
	return func(reply string) Signal {
		lowered := strings.ToLower(reply)
		switch {
		case strings.Contains(lowered, confirmation):
			return SignalVerified
		case strings.Contains(lowered, completionMarker),
			strings.Contains(lowered, completionMarkerAlt):
			return SignalComplete
		default:
			return SignalNone
		}
	}
}
