// Package orchestrator drives one call from connection to termination:
// it decides what to say next, invokes transcription, generation and
// synthesis, and re-arms listening. Control flow is callback-driven; every
// method handles one inbound carrier event and returns the directives the
// carrier should execute next.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/agent/archive"
	"github.com/restockai/voiceline/pkg/agent/cache"
	"github.com/restockai/voiceline/pkg/agent/directive"
	"github.com/restockai/voiceline/pkg/agent/llm"
	"github.com/restockai/voiceline/pkg/agent/policy"
	"github.com/restockai/voiceline/pkg/agent/retry"
	"github.com/restockai/voiceline/pkg/agent/speech/stt"
	"github.com/restockai/voiceline/pkg/agent/speech/tts"
	"github.com/restockai/voiceline/pkg/agent/store"
	"github.com/restockai/voiceline/pkg/agent/types"
	"github.com/restockai/voiceline/pkg/carrier"
)

// Notifier publishes live events to observers (the dashboard feed).
type Notifier interface {
	Publish(event string, data any)
}

// AudioStore hosts synthesized audio for the carrier to fetch.
type AudioStore interface {
	Save(audio []byte, format string) (string, error)
}

// Config is the orchestrator's tuning.
type Config struct {
	// PublicBaseURL prefixes audio URLs and absolute callbacks.
	PublicBaseURL string

	// ListenTimeoutSeconds bounds each speech capture. The timeout is an
	// advisory hint interpreted by the carrier, not locally enforced.
	ListenTimeoutSeconds int

	LiveModel     string
	AnalysisModel string

	// DestroyGrace delays session destruction after a terminal status so
	// slightly-delayed concurrent reads still succeed.
	DestroyGrace time.Duration
}

// Orchestrator is the per-call state machine. TTS, STT, Carrier and Events
// are optional; a nil TTS degrades every reply to a plain spoken-text
// directive.
type Orchestrator struct {
	Store   *store.Store
	Cache   *cache.Cache
	LLM     llm.Provider
	TTS     tts.Provider
	STT     stt.Provider
	Carrier carrier.Carrier
	Archive *archive.Writer
	Audio   AudioStore
	Events  Notifier
	Config  Config
	Logger  *slog.Logger
}

const (
	liveMaxTokens     = 100
	greetingMaxTokens = 50
	liveTemperature   = 0.5
	scriptTemperature = 0.3
)

// scriptedGreeting is the fallback when the greeting generation fails; the
// call opens deterministically either way.
const scriptedGreeting = "Hi, I am Sarah calling from US Food Supplies, customer sales department. Can I know if I am speaking with the manager?"

// OnConnected handles the carrier's call-connected webhook: speak the
// scripted greeting and start listening.
func (o *Orchestrator) OnConnected(ctx context.Context, callID string) ([]directive.Directive, error) {
	st, ok := o.Store.Get(callID)
	if !ok {
		return nil, agent.NewNotFoundError(callID)
	}
	if st.Phase == types.PhaseTerminated {
		return nil, nil
	}

	var gen uint64
	if err := o.Store.Update(callID, func(cs *store.CallState) {
		cs.Generation++
		gen = cs.Generation
		if !cs.Session.Status.Terminal() {
			cs.Session.Status = types.StatusConnected
		}
	}); err != nil {
		return nil, err
	}

	// The greeting flows through the normal generation pipeline with an
	// exact-line instruction; the opening stays deterministic either way.
	greeting, err := o.generate(ctx, []types.Turn{
		{Role: types.RoleSystem, Content: st.Session.Context},
		{Role: types.RoleCaller, Content: agent.GreetingInstruction},
	}, llm.GenerateOptions{Model: o.Config.LiveModel, MaxTokens: greetingMaxTokens, Temperature: scriptTemperature})
	if err != nil {
		o.logger().Warn("greeting generation failed, using script", "call_id", callID, "error", err)
		greeting = scriptedGreeting
	}

	if stale := o.commitAgentTurn(callID, gen, greeting, types.PhaseListening); stale {
		return nil, nil
	}
	o.publish("conversationUpdate", map[string]any{
		"call_id": callID, "type": "agent", "content": greeting,
	})

	dirs := o.speak(ctx, callID, greeting)
	return append(dirs, o.listen(callID, true), o.redirectTimeout(callID)), nil
}

// OnSpeech handles a final speech result: update the order and flags per
// the conversational policy, produce the next reply, speak it and re-arm
// listening. An empty result is treated as caller silence and routed to
// the timeout path.
func (o *Orchestrator) OnSpeech(ctx context.Context, callID, speech string) ([]directive.Directive, error) {
	st, ok := o.Store.Get(callID)
	if !ok {
		return nil, agent.NewNotFoundError(callID)
	}
	if st.Phase == types.PhaseTerminated {
		return nil, nil
	}

	speech = strings.TrimSpace(speech)
	if speech == "" {
		return o.OnTimeout(ctx, callID)
	}

	var (
		gen     uint64
		outcome policy.Outcome
		history []types.Turn
		order   types.Order
		flags   types.Flags
	)
	if err := o.Store.Update(callID, func(cs *store.CallState) {
		cs.Generation++
		gen = cs.Generation
		cs.Phase = types.PhaseProcessing
		cs.TimeoutAttempts = 0
		cs.History = append(cs.History, types.Turn{
			Role: types.RoleCaller, Content: speech, Timestamp: time.Now(),
		})
		outcome = policy.Apply(&cs.Order, &cs.Flags, speech)
		if cs.Session.Status == types.StatusConnected {
			cs.Session.Status = types.StatusInProgress
		}
		history = append(history, cs.History...)
		order = cs.Order
		flags = cs.Flags
	}); err != nil {
		return nil, err
	}

	o.publish("conversationUpdate", map[string]any{
		"call_id": callID, "type": "caller", "content": speech,
	})
	o.publish("orderUpdate", map[string]any{
		"call_id": callID, "order": order,
	})

	reply := outcome.Reply
	if reply == "" {
		turns := history
		for _, hint := range outcome.Hints {
			turns = append(turns, types.Turn{Role: types.RoleSystem, Content: hint})
		}
		generated, err := o.generate(ctx, turns, llm.GenerateOptions{
			Model: o.Config.LiveModel, MaxTokens: liveMaxTokens, Temperature: liveTemperature,
		})
		if err != nil {
			// Stay in the call; the caller never hears technical detail.
			o.logger().Error("reply generation failed", "call_id", callID, "error", err)
			reply = agent.ApologyReply
		} else {
			reply = generated
		}
	}

	if stale := o.commitAgentTurn(callID, gen, reply, types.PhaseListening); stale {
		o.logger().Warn("discarding stale reply", "call_id", callID, "generation", gen)
		return nil, nil
	}
	o.publish("conversationUpdate", map[string]any{
		"call_id": callID, "type": "agent", "content": reply,
	})

	dirs := o.speak(ctx, callID, reply)
	if flags.CustomerDone {
		dirs = append(dirs, directive.Hangup{})
		o.finish(ctx, callID, types.StatusCompleted, "customer_done")
		return dirs, nil
	}
	return append(dirs, o.listen(callID, true), o.redirectTimeout(callID)), nil
}

// OnRecording transcribes a recorded caller utterance and feeds the
// transcript through the normal speech path. A recognition failure is
// treated as caller silence, not a call-ending error.
func (o *Orchestrator) OnRecording(ctx context.Context, callID string, audio io.Reader, opts stt.Options) ([]directive.Directive, error) {
	if o.STT == nil {
		return nil, agent.NewRecognitionError("no transcription provider configured", nil)
	}
	transcript, err := o.STT.Transcribe(ctx, audio, opts)
	if err != nil {
		o.logger().Warn("transcription failed, treating as silence", "call_id", callID, "error", err)
		return o.OnTimeout(ctx, callID)
	}
	return o.OnSpeech(ctx, callID, transcript.Text)
}

// OnTimeout handles a silence timeout: escalate through the graduated
// prompt ladder, forcing termination at the attempt cap.
func (o *Orchestrator) OnTimeout(ctx context.Context, callID string) ([]directive.Directive, error) {
	st, ok := o.Store.Get(callID)
	if !ok {
		return nil, agent.NewNotFoundError(callID)
	}
	if st.Phase == types.PhaseTerminated {
		return nil, nil
	}

	attempt, err := o.Store.IncrementTimeout(callID)
	if err != nil {
		return nil, err
	}
	esc := retry.OnTimeout(attempt)
	o.logger().Info("silence timeout", "call_id", callID, "attempt", attempt, "final", esc.Final)

	dirs := o.speak(ctx, callID, esc.Prompt)
	if !esc.Final {
		return append(dirs, o.listen(callID, false), o.redirectTimeout(callID)), nil
	}

	// Retry exhaustion forcibly ends the call without waiting for a
	// carrier status event; the counter resets with the session's end.
	_ = o.Store.Update(callID, func(cs *store.CallState) { cs.TimeoutAttempts = 0 })
	dirs = append(dirs, directive.Hangup{})
	o.finish(ctx, callID, types.StatusCompleted, "timeout_exhausted")
	return dirs, nil
}

// OnStatus consumes a carrier status webhook keyed by the carrier call
// reference, resolving it to the call ID by reverse lookup.
func (o *Orchestrator) OnStatus(ctx context.Context, carrierRef, carrierStatus string) (string, error) {
	callID, ok := o.Store.ResolveCarrierRef(carrierRef)
	if !ok {
		return "", agent.NewNotFoundError(carrierRef)
	}

	status := mapCarrierStatus(carrierStatus)
	var phase types.Phase
	if err := o.Store.Update(callID, func(cs *store.CallState) {
		phase = cs.Phase
		if cs.Phase != types.PhaseTerminated {
			cs.Session.Status = status
		}
	}); err != nil {
		return "", err
	}

	o.publish("callStatus", map[string]any{
		"call_id": callID, "status": status,
	})

	if status.Terminal() && phase != types.PhaseTerminated {
		o.finish(ctx, callID, status, "carrier_status")
	}
	return callID, nil
}

// Terminate ends a call on request from the call-management API. A failed
// carrier command is returned as a structured failure, but the session is
// cleaned up regardless.
func (o *Orchestrator) Terminate(ctx context.Context, callID string) error {
	st, ok := o.Store.Get(callID)
	if !ok {
		return agent.NewNotFoundError(callID)
	}

	var carrierErr error
	if st.Session.CarrierRef != "" && o.Carrier != nil {
		if err := o.Carrier.TerminateCall(ctx, st.Session.CarrierRef); err != nil {
			o.logger().Error("carrier terminate failed", "call_id", callID, "error", err)
			carrierErr = err
		}
	}

	o.finish(ctx, callID, types.StatusCompleted, "manual_termination")
	return carrierErr
}

// Prewarm exercises the generation and synthesis capabilities through the
// cache so the first real turn is fast. Failures are non-critical.
func (o *Orchestrator) Prewarm(ctx context.Context) {
	if o.LLM != nil {
		_, err := o.generate(ctx, []types.Turn{
			{Role: types.RoleCaller, Content: "Say a brief hello."},
		}, llm.GenerateOptions{Model: o.Config.LiveModel, MaxTokens: 20, Temperature: scriptTemperature})
		if err != nil {
			o.logger().Info("generation prewarm failed", "error", err)
		}
	}
	if o.TTS != nil {
		if _, err := o.synthesize(ctx, "Hello, this is Sarah."); err != nil {
			o.logger().Info("synthesis prewarm failed", "error", err)
		}
	}
}

// Analyze runs the post-call analysis model over the conversation and
// persists the artifact with the analysis attached.
func (o *Orchestrator) Analyze(ctx context.Context, callID string) (*types.Analysis, error) {
	st, ok := o.Store.Get(callID)
	if !ok {
		return nil, agent.NewNotFoundError(callID)
	}

	prompt := analysisPrompt(st)
	raw, err := o.LLM.Generate(ctx, []types.Turn{
		{Role: types.RoleSystem, Content: agent.AnalysisSystemPrompt},
		{Role: types.RoleCaller, Content: prompt},
	}, llm.GenerateOptions{Model: o.Config.AnalysisModel, MaxTokens: 1000, Temperature: scriptTemperature})
	if err != nil {
		return nil, agent.NewGenerationError("call analysis failed", err)
	}

	analysis := parseAnalysis(raw, st)
	if _, err := o.Archive.Persist(archive.Record{
		CallID:      callID,
		PhoneNumber: st.Session.PhoneNumber,
		Status:      st.Session.Status,
		StartTime:   st.Session.StartTime,
		History:     st.History,
		Order:       st.Order,
		Analysis:    analysis,
	}); err != nil {
		o.logger().Error("archive with analysis failed", "call_id", callID, "error", err)
	}
	return analysis, nil
}

// finish archives the call and schedules session destruction after the
// grace window. Finishing an already-terminated call is a no-op.
func (o *Orchestrator) finish(ctx context.Context, callID string, status types.CallStatus, reason string) {
	var (
		already bool
		rec     archive.Record
		order   types.Order
	)
	err := o.Store.Update(callID, func(cs *store.CallState) {
		if cs.Phase == types.PhaseTerminated {
			already = true
			return
		}
		cs.Phase = types.PhaseTerminated
		cs.Session.Status = status
		rec = archive.Record{
			CallID:      callID,
			PhoneNumber: cs.Session.PhoneNumber,
			Status:      cs.Session.Status,
			StartTime:   cs.Session.StartTime,
			History:     append([]types.Turn(nil), cs.History...),
			Order:       cs.Order,
		}
		order = cs.Order
	})
	if err != nil || already {
		return
	}

	if len(rec.History) > 1 {
		if name, err := o.Archive.Persist(rec); err != nil {
			o.logger().Error("archive failed", "call_id", callID, "error", err)
		} else {
			o.logger().Info("call archived", "call_id", callID, "artifact", name, "reason", reason)
		}
	}

	o.publish("callCompleted", map[string]any{
		"call_id": callID, "reason": reason, "order": order,
	})
	o.Store.DestroyAfter(callID, o.Config.DestroyGrace)
	_ = ctx
}

// speak renders the reply as hosted audio, degrading to a plain
// spoken-text directive whenever synthesis is unavailable or fails. The
// call never stalls because the preferred voice failed.
func (o *Orchestrator) speak(ctx context.Context, callID, text string) []directive.Directive {
	fallback := []directive.Directive{directive.Speak{Text: tts.StripPauses(text)}}
	if o.TTS == nil || o.Audio == nil {
		return fallback
	}

	syn, err := o.synthesize(ctx, text)
	if err != nil {
		o.logger().Warn("synthesis failed, using spoken-text fallback", "call_id", callID, "error", err)
		return fallback
	}
	url, err := o.Audio.Save(syn.Audio, syn.Format)
	if err != nil {
		o.logger().Warn("audio hosting failed, using spoken-text fallback", "call_id", callID, "error", err)
		return fallback
	}
	return []directive.Directive{directive.Play{URL: o.Config.PublicBaseURL + url}}
}

func (o *Orchestrator) synthesize(ctx context.Context, text string) (*tts.Synthesis, error) {
	opts := tts.DefaultOptions
	if cached, ok := o.Cache.Get(cache.KindSynthesis, text, opts); ok {
		if syn, ok := cached.(*tts.Synthesis); ok {
			return syn, nil
		}
	}
	syn, err := o.TTS.Synthesize(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	o.Cache.Put(cache.KindSynthesis, text, opts, syn)
	return syn, nil
}

// generate calls the language model through the response cache. The cache
// key is the latest turn plus the generation options.
func (o *Orchestrator) generate(ctx context.Context, turns []types.Turn, opts llm.GenerateOptions) (string, error) {
	if o.LLM == nil {
		return "", agent.NewGenerationError("no language model configured", nil)
	}
	input := ""
	if len(turns) > 0 {
		input = turns[len(turns)-1].Content
	}
	if cached, ok := o.Cache.Get(cache.KindGeneration, input, opts); ok {
		if text, ok := cached.(string); ok {
			return text, nil
		}
	}
	text, err := o.LLM.Generate(ctx, turns, opts)
	if err != nil {
		var aerr *agent.Error
		if errors.As(err, &aerr) {
			return "", err
		}
		return "", agent.NewGenerationError("generate reply", err)
	}
	o.Cache.Put(cache.KindGeneration, input, opts, text)
	return text, nil
}

// commitAgentTurn appends the agent reply under the generation fence.
// Returns true when the call moved on while the external call was in
// flight and the reply must be discarded.
func (o *Orchestrator) commitAgentTurn(callID string, gen uint64, reply string, next types.Phase) (stale bool) {
	err := o.Store.Update(callID, func(cs *store.CallState) {
		if cs.Generation != gen || cs.Phase == types.PhaseTerminated {
			stale = true
			return
		}
		cs.History = append(cs.History, types.Turn{
			Role: types.RoleAgent, Content: reply, Timestamp: time.Now(),
		})
		cs.Phase = next
	})
	if err != nil {
		return true
	}
	return stale
}

func (o *Orchestrator) listen(callID string, partial bool) directive.Listen {
	l := directive.Listen{
		TimeoutSeconds: o.Config.ListenTimeoutSeconds,
		Action:         "/webhooks/voice/speech?call_id=" + callID,
	}
	if partial {
		l.PartialAction = "/webhooks/voice/partial?call_id=" + callID
	}
	return l
}

func (o *Orchestrator) redirectTimeout(callID string) directive.Redirect {
	return directive.Redirect{URL: "/webhooks/voice/timeout?call_id=" + callID}
}

func (o *Orchestrator) publish(event string, data any) {
	if o.Events != nil {
		o.Events.Publish(event, data)
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func mapCarrierStatus(s string) types.CallStatus {
	switch s {
	case "initiated", "queued", "ringing":
		return types.StatusInitiated
	case "answered":
		return types.StatusConnected
	case "in-progress":
		return types.StatusInProgress
	case "completed":
		return types.StatusCompleted
	default:
		return types.StatusFailed
	}
}

func analysisPrompt(st store.CallState) string {
	var b strings.Builder
	b.WriteString("Analyze this sales call and respond with JSON containing callSummary, customerSentiment, orderDetails {products [{name, quantity, unitPrice, total}], subtotal, tax, total}, callMetrics {duration, responseTime, satisfaction} and nextSteps.\n\nTRANSCRIPT:\n")
	for _, turn := range st.History {
		if turn.Role == types.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	fmt.Fprintf(&b, "\nORDER ON FILE: %d items, total $%.2f\n", len(st.Order.Items), st.Order.Total)
	return b.String()
}
