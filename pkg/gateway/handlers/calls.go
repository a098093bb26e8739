package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/agent/orchestrator"
	"github.com/restockai/voiceline/pkg/agent/store"
	"github.com/restockai/voiceline/pkg/agent/types"
	"github.com/restockai/voiceline/pkg/carrier"
	"github.com/restockai/voiceline/pkg/gateway/config"
	"github.com/restockai/voiceline/pkg/gateway/mw"
)

// CallsHandler serves the call collection: initiate a call, list live
// calls.
type CallsHandler struct {
	Config  config.Config
	Store   *store.Store
	Carrier carrier.Carrier
	Orch    *orchestrator.Orchestrator
	Events  orchestrator.Notifier
	Logger  *slog.Logger
}

type initiateCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	Context     string `json:"context,omitempty"`
}

type initiateCallResponse struct {
	Success    bool             `json:"success"`
	CallID     string           `json:"call_id"`
	CarrierRef string           `json:"carrier_ref,omitempty"`
	Status     types.CallStatus `json:"status"`
}

func (h CallsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	switch r.Method {
	case http.MethodPost:
		h.initiate(w, r, reqID)
	case http.MethodGet:
		h.list(w, reqID)
	default:
		methodNotAllowed(w, reqID)
	}
}

func (h CallsHandler) initiate(w http.ResponseWriter, r *http.Request, reqID string) {
	var req initiateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, reqID, agent.NewInvalidRequestError("invalid JSON body"))
		return
	}
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" {
		writeErrorJSON(w, reqID, agent.NewInvalidRequestErrorWithParam("phone_number is required", "phone_number"))
		return
	}
	callContext := req.Context
	if callContext == "" {
		callContext = agent.DefaultContext
	}

	sess, err := h.Store.Create(req.PhoneNumber, callContext)
	if err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}

	// Warm the provider pipelines while the carrier dials so the greeting
	// is cached by the time the call connects.
	if h.Orch != nil {
		go h.Orch.Prewarm(context.WithoutCancel(r.Context()))
	}

	ref, err := h.Carrier.PlaceCall(r.Context(), req.PhoneNumber, carrier.CallbackURLs{
		Answer: h.Config.PublicBaseURL + "/webhooks/voice/answer?call_id=" + sess.ID,
		Status: h.Config.PublicBaseURL + "/webhooks/voice/status",
	})
	if err != nil {
		// The session never left this process; no grace window needed.
		h.Store.Destroy(sess.ID)
		h.log().Error("call placement failed", "call_id", sess.ID, "error", err)
		writeErrorJSON(w, reqID, err)
		return
	}

	if err := h.Store.Update(sess.ID, func(cs *store.CallState) {
		cs.Session.CarrierRef = ref
	}); err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}

	h.log().Info("call initiated", "call_id", sess.ID, "carrier_ref", ref)
	if h.Events != nil {
		h.Events.Publish("callStatus", map[string]any{
			"call_id": sess.ID, "status": types.StatusInitiated,
		})
	}

	writeJSON(w, http.StatusCreated, initiateCallResponse{
		Success:    true,
		CallID:     sess.ID,
		CarrierRef: ref,
		Status:     types.StatusInitiated,
	})
}

func (h CallsHandler) list(w http.ResponseWriter, reqID string) {
	sessions := h.Store.ActiveSessions()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
	_ = reqID
}

func (h CallsHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// CallHandler serves one call: inspect, terminate, conversation, order
// and analysis subresources.
type CallHandler struct {
	Store  *store.Store
	Orch   *orchestrator.Orchestrator
	Logger *slog.Logger
}

func (h CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	callID := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		h.get(w, reqID, callID)
	case http.MethodDelete:
		h.terminate(w, r, reqID, callID)
	default:
		methodNotAllowed(w, reqID)
	}
}

func (h CallHandler) get(w http.ResponseWriter, reqID, callID string) {
	st, ok := h.Store.Get(callID)
	if !ok {
		writeErrorJSON(w, reqID, agent.NewNotFoundError(callID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":          st.Session,
		"phase":            st.Phase,
		"timeout_attempts": st.TimeoutAttempts,
		"turns":            len(st.History),
	})
}

func (h CallHandler) terminate(w http.ResponseWriter, r *http.Request, reqID, callID string) {
	if err := h.Orch.Terminate(r.Context(), callID); err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "call_id": callID})
}

// ConversationHandler returns the transcript of a live call. The system
// instruction turn is omitted.
type ConversationHandler struct {
	Store *store.Store
}

func (h ConversationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}
	callID := r.PathValue("id")
	st, ok := h.Store.Get(callID)
	if !ok {
		writeErrorJSON(w, reqID, agent.NewNotFoundError(callID))
		return
	}
	turns := make([]types.Turn, 0, len(st.History))
	for _, turn := range st.History {
		if turn.Role == types.RoleSystem {
			continue
		}
		turns = append(turns, turn)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id": callID,
		"turns":   turns,
	})
}

// OrderHandler returns the order-in-progress and policy flags of a live
// call.
type OrderHandler struct {
	Store *store.Store
}

func (h OrderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}
	callID := r.PathValue("id")
	st, ok := h.Store.Get(callID)
	if !ok {
		writeErrorJSON(w, reqID, agent.NewNotFoundError(callID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id": callID,
		"order":   st.Order,
		"flags":   st.Flags,
	})
}

// TerminateCompatHandler preserves the flat terminate route older
// dashboards call; DELETE /api/calls/{id} is the canonical form.
type TerminateCompatHandler struct {
	Orch   *orchestrator.Orchestrator
	Logger *slog.Logger
}

func (h TerminateCompatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}
	var req struct {
		CallID string `json:"call_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, reqID, agent.NewInvalidRequestError("invalid JSON body"))
		return
	}
	req.CallID = strings.TrimSpace(req.CallID)
	if req.CallID == "" {
		writeErrorJSON(w, reqID, agent.NewInvalidRequestErrorWithParam("call_id is required", "call_id"))
		return
	}
	if err := h.Orch.Terminate(r.Context(), req.CallID); err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "call_id": req.CallID})
}

// AnalyzeHandler runs post-call analysis over a call still in the store.
type AnalyzeHandler struct {
	Orch   *orchestrator.Orchestrator
	Logger *slog.Logger
}

func (h AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}
	callID := r.PathValue("id")
	analysis, err := h.Orch.Analyze(r.Context(), callID)
	if err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"call_id":  callID,
		"analysis": analysis,
	})
}
