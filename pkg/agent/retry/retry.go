// Package retry implements the escalation policy for silent callers: a
// fixed deterministic ladder of graduated prompts, capped at three
// attempts, after which the call is forcibly ended.
package retry

// MaxAttempts is the fixed attempt cap. The ladder is deterministic; the
// cap is not runtime-configurable.
const MaxAttempts = 3

// Escalation is the controller's decision for one silence timeout.
type Escalation struct {
	// Prompt is the line to speak. Pause markers are translated to the
	// synthesis capability's break markup downstream.
	Prompt string

	// Final means the call must be terminated after the prompt.
	Final bool
}

// OnTimeout returns the escalation for the given attempt number (1-based).
// Attempts at or past the cap return the closing line and Final=true.
func OnTimeout(attempt int) Escalation {
	switch {
	case attempt <= 1:
		return Escalation{Prompt: "Hello? *pause* Are you still there?"}
	case attempt == 2:
		return Escalation{Prompt: "I'm still here. *pause* Can you hear me okay?"}
	default:
		return Escalation{
			Prompt: "I'll try reaching you another time. *pause* Please feel free to call us back when convenient. Have a great day!",
			Final:  true,
		}
	}
}
