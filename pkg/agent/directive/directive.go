// Package directive defines the abstract voice-markup instructions the
// orchestrator emits. The directives are carrier-independent; translating
// them into carrier syntax belongs to the carrier adapter.
package directive

// Directive is one instruction to the telephony carrier.
type Directive interface {
	directive()
}

// Speak plays the given text through the carrier's built-in voice.
type Speak struct {
	Text string
}

// Play plays a pre-rendered audio resource.
type Play struct {
	URL string
}

// Listen captures caller speech with a bounded timeout and calls back on
// the final-result and (optionally) partial-result URLs. Control returns
// to the carrier immediately; the next state transition arrives as a
// webhook.
type Listen struct {
	TimeoutSeconds int
	Action         string
	PartialAction  string
}

// Redirect instructs the carrier to request the given URL next, used to
// route silence timeouts back into the agent.
type Redirect struct {
	URL string
}

// Hangup terminates the call.
type Hangup struct{}

func (Speak) directive()    {}
func (Play) directive()     {}
func (Listen) directive()   {}
func (Redirect) directive() {}
func (Hangup) directive()   {}
