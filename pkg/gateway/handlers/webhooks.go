package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/restockai/voiceline/pkg/agent/directive"
	"github.com/restockai/voiceline/pkg/agent/orchestrator"
	"github.com/restockai/voiceline/pkg/agent/speech/stt"
	"github.com/restockai/voiceline/pkg/carrier/twiml"
	"github.com/restockai/voiceline/pkg/gateway/mw"
)

// farewell is spoken when a webhook arrives for a call that no longer
// exists; the carrier keeps the line open otherwise.
const farewell = "I'm sorry, something went wrong on our end. Goodbye."

func writeTwiML(w http.ResponseWriter, dirs []directive.Directive) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twiml.Encode(dirs)))
}

func writeTwiMLFarewell(w http.ResponseWriter) {
	writeTwiML(w, []directive.Directive{
		directive.Speak{Text: farewell},
		directive.Hangup{},
	})
}

// AnswerWebhook handles the carrier's call-connected callback.
type AnswerWebhook struct {
	Orch   *orchestrator.Orchestrator
	Logger *slog.Logger
}

func (h AnswerWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	dirs, err := h.Orch.OnConnected(r.Context(), callID)
	if err != nil {
		logWebhook(h.Logger, r, "answer webhook failed", callID, err)
		writeTwiMLFarewell(w)
		return
	}
	writeTwiML(w, dirs)
}

// SpeechWebhook handles a final speech recognition result.
type SpeechWebhook struct {
	Orch   *orchestrator.Orchestrator
	Logger *slog.Logger
}

func (h SpeechWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	speech := r.FormValue("SpeechResult")
	dirs, err := h.Orch.OnSpeech(r.Context(), callID, speech)
	if err != nil {
		logWebhook(h.Logger, r, "speech webhook failed", callID, err)
		writeTwiMLFarewell(w)
		return
	}
	writeTwiML(w, dirs)
}

// PartialWebhook receives interim recognition results. They feed the live
// event stream only; no call state changes until the final result.
type PartialWebhook struct {
	Events orchestrator.Notifier
	Logger *slog.Logger
}

func (h PartialWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	partial := r.FormValue("UnstableSpeechResult")
	if partial == "" {
		partial = r.FormValue("SpeechResult")
	}
	if strings.TrimSpace(partial) != "" && h.Events != nil {
		h.Events.Publish("partialSpeech", map[string]any{
			"call_id": callID, "content": partial,
		})
	}
	writeTwiML(w, nil)
}

// TimeoutWebhook fires when a speech capture window elapses without
// input.
type TimeoutWebhook struct {
	Orch   *orchestrator.Orchestrator
	Logger *slog.Logger
}

func (h TimeoutWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	dirs, err := h.Orch.OnTimeout(r.Context(), callID)
	if err != nil {
		logWebhook(h.Logger, r, "timeout webhook failed", callID, err)
		writeTwiMLFarewell(w)
		return
	}
	writeTwiML(w, dirs)
}

// RecordingWebhook handles carriers that deliver a recorded utterance
// instead of a transcript. The recording is fetched and transcribed
// before entering the normal speech path.
type RecordingWebhook struct {
	Orch       *orchestrator.Orchestrator
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (h RecordingWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	recordingURL := r.FormValue("RecordingUrl")
	if recordingURL == "" {
		logWebhook(h.Logger, r, "recording webhook missing RecordingUrl", callID, nil)
		writeTwiMLFarewell(w)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, recordingURL, nil)
	if err != nil {
		logWebhook(h.Logger, r, "recording fetch failed", callID, err)
		writeTwiMLFarewell(w)
		return
	}
	resp, err := h.client().Do(req)
	if err != nil {
		logWebhook(h.Logger, r, "recording fetch failed", callID, err)
		writeTwiMLFarewell(w)
		return
	}
	defer resp.Body.Close()

	dirs, err := h.Orch.OnRecording(r.Context(), callID, resp.Body, stt.Options{
		Format: r.FormValue("RecordingFormat"),
	})
	if err != nil {
		logWebhook(h.Logger, r, "recording webhook failed", callID, err)
		writeTwiMLFarewell(w)
		return
	}
	writeTwiML(w, dirs)
}

func (h RecordingWebhook) client() *http.Client {
	if h.HTTPClient != nil {
		return h.HTTPClient
	}
	return http.DefaultClient
}

// StatusWebhook consumes carrier status callbacks. It always answers 200
// so the carrier never retries; an unknown reference is logged and
// dropped.
type StatusWebhook struct {
	Orch   *orchestrator.Orchestrator
	Logger *slog.Logger
}

func (h StatusWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ref := r.FormValue("CallSid")
	status := r.FormValue("CallStatus")
	callID, err := h.Orch.OnStatus(r.Context(), ref, status)
	if err != nil {
		logWebhook(h.Logger, r, "status webhook dropped", ref, err)
	} else if h.Logger != nil {
		h.Logger.Info("carrier status", "call_id", callID, "carrier_status", status)
	}
	w.WriteHeader(http.StatusOK)
}

func logWebhook(logger *slog.Logger, r *http.Request, msg, id string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	reqID, _ := mw.RequestIDFrom(r.Context())
	logger.Error(msg, "request_id", reqID, "id", id, "error", err)
}
