package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/agent/archive"
	"github.com/restockai/voiceline/pkg/agent/cache"
	"github.com/restockai/voiceline/pkg/agent/directive"
	"github.com/restockai/voiceline/pkg/agent/llm"
	"github.com/restockai/voiceline/pkg/agent/speech/tts"
	"github.com/restockai/voiceline/pkg/agent/store"
	"github.com/restockai/voiceline/pkg/agent/types"
	"github.com/restockai/voiceline/pkg/carrier"
)

type fakeLLM struct {
	reply string
	err   error
	calls int
	last  []types.Turn
}

func (f *fakeLLM) Name() string { return "fake-llm" }

func (f *fakeLLM) Generate(ctx context.Context, history []types.Turn, opts llm.GenerateOptions) (string, error) {
	f.calls++
	f.last = append([]types.Turn(nil), history...)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeTTS struct {
	err   error
	calls int
}

func (f *fakeTTS) Name() string { return "fake-tts" }

func (f *fakeTTS) Synthesize(ctx context.Context, text string, opts tts.Options) (*tts.Synthesis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Synthesis{Audio: []byte("audio:" + text), Format: "mp3"}, nil
}

type fakeAudio struct {
	saves int
	err   error
}

func (f *fakeAudio) Save(audio []byte, format string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saves++
	return "/audio/clip.mp3", nil
}

type fakeCarrier struct {
	terminated []string
	err        error
}

func (f *fakeCarrier) Name() string { return "fake-carrier" }

func (f *fakeCarrier) PlaceCall(ctx context.Context, destination string, cb carrier.CallbackURLs) (string, error) {
	return "CA_fake", nil
}

func (f *fakeCarrier) TerminateCall(ctx context.Context, ref string) error {
	f.terminated = append(f.terminated, ref)
	return f.err
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Publish(event string, data any) {
	f.events = append(f.events, event)
}

func (f *fakeNotifier) count(event string) int {
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

type fixture struct {
	orch    *Orchestrator
	store   *store.Store
	llm     *fakeLLM
	tts     *fakeTTS
	audio   *fakeAudio
	carrier *fakeCarrier
	events  *fakeNotifier
	callID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	writer, err := archive.NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	f := &fixture{
		store:   store.New(),
		llm:     &fakeLLM{reply: "Of course, happy to help."},
		tts:     &fakeTTS{},
		audio:   &fakeAudio{},
		carrier: &fakeCarrier{},
		events:  &fakeNotifier{},
	}
	f.orch = &Orchestrator{
		Store:   f.store,
		Cache:   cache.New(time.Minute, 100),
		LLM:     f.llm,
		TTS:     f.tts,
		Carrier: f.carrier,
		Archive: writer,
		Audio:   f.audio,
		Events:  f.events,
		Config: Config{
			PublicBaseURL:        "https://agent.example.com",
			ListenTimeoutSeconds: 10,
			LiveModel:            "test-model",
			AnalysisModel:        "test-analysis-model",
			DestroyGrace:         0,
		},
	}

	sess, err := f.store.Create("+15551234567", agent.DefaultContext)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.callID = sess.ID
	_ = f.store.Update(f.callID, func(cs *store.CallState) {
		cs.Session.CarrierRef = "CA_fake"
	})
	return f
}

func directiveKinds(dirs []directive.Directive) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		switch d.(type) {
		case directive.Speak:
			out = append(out, "speak")
		case directive.Play:
			out = append(out, "play")
		case directive.Listen:
			out = append(out, "listen")
		case directive.Redirect:
			out = append(out, "redirect")
		case directive.Hangup:
			out = append(out, "hangup")
		}
	}
	return out
}

func TestOnConnectedGreetsAndListens(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = "Hi, I am Sarah calling from US Food Supplies."

	dirs, err := f.orch.OnConnected(context.Background(), f.callID)
	if err != nil {
		t.Fatalf("OnConnected: %v", err)
	}
	kinds := directiveKinds(dirs)
	if len(kinds) != 3 || kinds[0] != "play" || kinds[1] != "listen" || kinds[2] != "redirect" {
		t.Fatalf("directives = %v", kinds)
	}

	st, _ := f.store.Get(f.callID)
	if st.Phase != types.PhaseListening {
		t.Fatalf("phase = %q", st.Phase)
	}
	if st.Session.Status != types.StatusConnected {
		t.Fatalf("status = %q", st.Session.Status)
	}
	if len(st.History) != 2 || st.History[1].Role != types.RoleAgent {
		t.Fatalf("history = %+v, want system + agent greeting", st.History)
	}
	// The greeting instruction is transient; it must not enter history.
	for _, turn := range st.History {
		if turn.Content == agent.GreetingInstruction {
			t.Fatalf("greeting instruction leaked into history")
		}
	}
}

func TestOnConnectedGenerationFailureUsesScript(t *testing.T) {
	f := newFixture(t)
	f.llm.err = agent.NewGenerationError("model down", nil)

	dirs, err := f.orch.OnConnected(context.Background(), f.callID)
	if err != nil {
		t.Fatalf("OnConnected: %v", err)
	}
	if len(dirs) == 0 {
		t.Fatalf("no directives")
	}
	st, _ := f.store.Get(f.callID)
	if !strings.Contains(st.History[1].Content, "Sarah") {
		t.Fatalf("greeting = %q, want scripted fallback", st.History[1].Content)
	}
}

func TestOnSpeechPolicyReplySkipsModel(t *testing.T) {
	f := newFixture(t)

	dirs, err := f.orch.OnSpeech(context.Background(), f.callID, "I'll take the same as last time")
	if err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	if f.llm.calls != 0 {
		t.Fatalf("policy-mandated turn still called the model")
	}
	kinds := directiveKinds(dirs)
	if kinds[len(kinds)-1] != "redirect" {
		t.Fatalf("directives = %v, want trailing redirect", kinds)
	}

	st, _ := f.store.Get(f.callID)
	last := st.History[len(st.History)-1]
	if last.Role != types.RoleAgent || !strings.Contains(last.Content, "Just to confirm") {
		t.Fatalf("last turn = %+v", last)
	}
	if st.TimeoutAttempts != 0 {
		t.Fatalf("timeout counter = %d, want reset", st.TimeoutAttempts)
	}
}

func TestOnSpeechFreeFormUsesModel(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = "We have a great selection of breakfast items."

	_, err := f.orch.OnSpeech(context.Background(), f.callID, "what do you recommend?")
	if err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	if f.llm.calls != 1 {
		t.Fatalf("model calls = %d, want 1", f.llm.calls)
	}
	if len(f.llm.last) == 0 || f.llm.last[len(f.llm.last)-1].Content != "what do you recommend?" {
		t.Fatalf("model did not see the caller turn last: %+v", f.llm.last)
	}
}

func TestOnSpeechGenerationFailureApologizes(t *testing.T) {
	f := newFixture(t)
	f.llm.err = agent.NewGenerationError("model down", nil)

	dirs, err := f.orch.OnSpeech(context.Background(), f.callID, "tell me about your delivery schedule")
	if err != nil {
		t.Fatalf("generation failure must not end the call: %v", err)
	}
	kinds := directiveKinds(dirs)
	if kinds[len(kinds)-1] != "redirect" || !contains(kinds, "listen") {
		t.Fatalf("directives = %v, call should keep listening", kinds)
	}

	st, _ := f.store.Get(f.callID)
	if st.Phase != types.PhaseListening {
		t.Fatalf("phase = %q", st.Phase)
	}
	last := st.History[len(st.History)-1]
	if last.Content != agent.ApologyReply {
		t.Fatalf("last turn = %q, want apology", last.Content)
	}
	// The caller's utterance survives the failure.
	caller := st.History[len(st.History)-2]
	if caller.Role != types.RoleCaller || !strings.Contains(caller.Content, "delivery schedule") {
		t.Fatalf("caller turn lost: %+v", caller)
	}
}

func TestOnSpeechSynthesisFailureFallsBackToSpokenText(t *testing.T) {
	f := newFixture(t)
	f.tts.err = agent.NewSynthesisError("voice down", nil)

	dirs, err := f.orch.OnSpeech(context.Background(), f.callID, "2 cases of bagels")
	if err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	speak, ok := dirs[0].(directive.Speak)
	if !ok {
		t.Fatalf("first directive = %T, want spoken-text fallback", dirs[0])
	}
	if strings.Contains(speak.Text, tts.PauseMarker) {
		t.Fatalf("pause markers leaked into spoken text: %q", speak.Text)
	}
	if f.audio.saves != 0 {
		t.Fatalf("audio hosted despite synthesis failure")
	}
}

func TestOnSpeechEmptyIsSilence(t *testing.T) {
	f := newFixture(t)

	dirs, err := f.orch.OnSpeech(context.Background(), f.callID, "   ")
	if err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	st, _ := f.store.Get(f.callID)
	if st.TimeoutAttempts != 1 {
		t.Fatalf("timeout attempts = %d, want 1", st.TimeoutAttempts)
	}
	if contains(directiveKinds(dirs), "hangup") {
		t.Fatalf("first silence must not hang up")
	}
}

func TestCustomerDoneEndsAndArchives(t *testing.T) {
	f := newFixture(t)

	if _, err := f.orch.OnSpeech(context.Background(), f.callID, "5 cases of water"); err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	dirs, err := f.orch.OnSpeech(context.Background(), f.callID, "that's all, thank you")
	if err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	kinds := directiveKinds(dirs)
	if kinds[len(kinds)-1] != "hangup" {
		t.Fatalf("directives = %v, want trailing hangup", kinds)
	}
	if _, ok := f.store.Get(f.callID); ok {
		t.Fatalf("session survived completion with zero grace")
	}

	files, err := f.orch.Archive.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(files))
	}
	if f.events.count("callCompleted") != 1 {
		t.Fatalf("callCompleted events = %d", f.events.count("callCompleted"))
	}
}

func TestTimeoutLadderTerminatesAtCap(t *testing.T) {
	f := newFixture(t)

	for attempt := 1; attempt <= 2; attempt++ {
		dirs, err := f.orch.OnTimeout(context.Background(), f.callID)
		if err != nil {
			t.Fatalf("OnTimeout(%d): %v", attempt, err)
		}
		kinds := directiveKinds(dirs)
		if contains(kinds, "hangup") {
			t.Fatalf("attempt %d hung up early: %v", attempt, kinds)
		}
		if !contains(kinds, "listen") {
			t.Fatalf("attempt %d did not re-arm listening: %v", attempt, kinds)
		}
	}

	dirs, err := f.orch.OnTimeout(context.Background(), f.callID)
	if err != nil {
		t.Fatalf("final OnTimeout: %v", err)
	}
	kinds := directiveKinds(dirs)
	if kinds[len(kinds)-1] != "hangup" {
		t.Fatalf("final attempt directives = %v, want hangup", kinds)
	}
	if _, ok := f.store.Get(f.callID); ok {
		t.Fatalf("session survived forced termination with zero grace")
	}
}

func TestSpeechResetsTimeoutCounter(t *testing.T) {
	f := newFixture(t)

	if _, err := f.orch.OnTimeout(context.Background(), f.callID); err != nil {
		t.Fatalf("OnTimeout: %v", err)
	}
	if _, err := f.orch.OnSpeech(context.Background(), f.callID, "still here, sorry"); err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	st, _ := f.store.Get(f.callID)
	if st.TimeoutAttempts != 0 {
		t.Fatalf("timeout attempts = %d, want 0 after speech", st.TimeoutAttempts)
	}
}

func TestOnStatusTerminalCleansUp(t *testing.T) {
	f := newFixture(t)

	callID, err := f.orch.OnStatus(context.Background(), "CA_fake", "completed")
	if err != nil {
		t.Fatalf("OnStatus: %v", err)
	}
	if callID != f.callID {
		t.Fatalf("resolved call = %q, want %q", callID, f.callID)
	}
	if _, ok := f.store.Get(f.callID); ok {
		t.Fatalf("session survived terminal status with zero grace")
	}
	if f.events.count("callStatus") == 0 {
		t.Fatalf("no callStatus event published")
	}
}

func TestOnStatusUnknownRefIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.OnStatus(context.Background(), "CA_other", "completed")
	var agentErr *agent.Error
	if err == nil || !errors.As(err, &agentErr) || agentErr.Type != agent.ErrNotFound {
		t.Fatalf("err = %v, want not_found_error", err)
	}
}

func TestTerminateCarrierFailureStillCleansUp(t *testing.T) {
	f := newFixture(t)
	f.carrier.err = agent.NewCarrierError("hangup rejected", nil)

	err := f.orch.Terminate(context.Background(), f.callID)
	if err == nil {
		t.Fatalf("carrier failure not surfaced")
	}
	var agentErr *agent.Error
	if !errors.As(err, &agentErr) || agentErr.Type != agent.ErrCarrier {
		t.Fatalf("err = %v, want carrier_error", err)
	}
	if _, ok := f.store.Get(f.callID); ok {
		t.Fatalf("session survived terminate")
	}
	if len(f.carrier.terminated) != 1 || f.carrier.terminated[0] != "CA_fake" {
		t.Fatalf("carrier terminate calls = %v", f.carrier.terminated)
	}
}

func TestGenerationCacheHitSkipsModel(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = "We open at seven."

	if _, err := f.orch.OnSpeech(context.Background(), f.callID, "when do you open?"); err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	if _, err := f.orch.OnSpeech(context.Background(), f.callID, "when do you open?"); err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	if f.llm.calls != 1 {
		t.Fatalf("model calls = %d, want 1 (second should hit the cache)", f.llm.calls)
	}
}

func TestAnalyzeFallsBackOnUnparseableOutput(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orch.OnSpeech(context.Background(), f.callID, "3 cases of coffee"); err != nil {
		t.Fatalf("OnSpeech: %v", err)
	}
	f.llm.reply = "sorry, I cannot produce JSON today"

	analysis, err := f.orch.Analyze(context.Background(), f.callID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.CallSummary == "" {
		t.Fatalf("fallback analysis missing summary")
	}
	if len(analysis.OrderDetails.Products) != 1 {
		t.Fatalf("fallback products = %+v", analysis.OrderDetails.Products)
	}
}

func TestAnalyzeParsesModelJSON(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = "Here you go:\n```json\n" +
		`{"callSummary":"Customer ordered coffee.","customerSentiment":"positive",` +
		`"orderDetails":{"products":[{"name":"House Blend Coffee","quantity":3,"unitPrice":28,"total":84}],"subtotal":84,"tax":0,"total":84},` +
		`"callMetrics":{"duration":"2:10","responseTime":"fast","satisfaction":9},"nextSteps":["Send invoice"]}` +
		"\n```"

	analysis, err := f.orch.Analyze(context.Background(), f.callID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.CallSummary != "Customer ordered coffee." {
		t.Fatalf("summary = %q", analysis.CallSummary)
	}
	if analysis.CallMetrics.Satisfaction != 9 {
		t.Fatalf("satisfaction = %d", analysis.CallMetrics.Satisfaction)
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
