// Package server wires the voice agent together: providers, per-call
// state, the orchestrator and the HTTP surface.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/restockai/voiceline/pkg/agent/archive"
	"github.com/restockai/voiceline/pkg/agent/audiostore"
	"github.com/restockai/voiceline/pkg/agent/cache"
	"github.com/restockai/voiceline/pkg/agent/llm"
	"github.com/restockai/voiceline/pkg/agent/orchestrator"
	"github.com/restockai/voiceline/pkg/agent/speech/stt"
	"github.com/restockai/voiceline/pkg/agent/speech/tts"
	"github.com/restockai/voiceline/pkg/agent/store"
	"github.com/restockai/voiceline/pkg/carrier"
	"github.com/restockai/voiceline/pkg/gateway/config"
	"github.com/restockai/voiceline/pkg/gateway/events"
	"github.com/restockai/voiceline/pkg/gateway/handlers"
	"github.com/restockai/voiceline/pkg/gateway/lifecycle"
	"github.com/restockai/voiceline/pkg/gateway/mw"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	store      *store.Store
	cache      *cache.Cache
	archive    *archive.Writer
	audio      *audiostore.Store
	hub        *events.Hub
	carrier    carrier.Carrier
	orch       *orchestrator.Orchestrator
	lifecycle  *lifecycle.Lifecycle
	httpClient *http.Client
}

func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Timeout: cfg.OutboundRequestTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	archiveWriter, err := archive.NewWriter(cfg.ArchiveDir)
	if err != nil {
		return nil, err
	}
	audioStore, err := audiostore.New(cfg.AudioDir, "/audio", cfg.AudioCleanupDelay)
	if err != nil {
		return nil, err
	}

	var model llm.Provider
	if cfg.OpenAIAPIKey != "" {
		p := llm.NewOpenAI(cfg.OpenAIAPIKey)
		p.SetHTTPClient(httpClient)
		model = p
	}
	var voice tts.Provider
	var recognizer stt.Provider
	if cfg.AzureSpeechKey != "" {
		voice = tts.NewAzure(cfg.AzureSpeechKey, cfg.AzureSpeechRegion, cfg.AzureVoiceName)
		recognizer = stt.NewAzure(cfg.AzureSpeechKey, cfg.AzureSpeechRegion)
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mux:        http.NewServeMux(),
		store:      store.New(),
		cache:      cache.New(cfg.CacheTTL, cfg.CacheMaxEntries),
		archive:    archiveWriter,
		audio:      audioStore,
		hub:        events.NewHub(logger),
		carrier:    carrier.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber),
		lifecycle:  &lifecycle.Lifecycle{},
		httpClient: httpClient,
	}

	s.orch = &orchestrator.Orchestrator{
		Store:   s.store,
		Cache:   s.cache,
		LLM:     model,
		TTS:     voice,
		STT:     recognizer,
		Carrier: s.carrier,
		Archive: s.archive,
		Audio:   s.audio,
		Events:  s.hub,
		Config: orchestrator.Config{
			PublicBaseURL:        cfg.PublicBaseURL,
			ListenTimeoutSeconds: cfg.ListenTimeoutSeconds,
			LiveModel:            cfg.LiveModel,
			AnalysisModel:        cfg.AnalysisModel,
			DestroyGrace:         cfg.SessionDestroyGrace,
		},
		Logger: logger,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle, Store: s.store})

	s.mux.Handle("/api/calls", handlers.CallsHandler{
		Config:  s.cfg,
		Store:   s.store,
		Carrier: s.carrier,
		Orch:    s.orch,
		Events:  s.hub,
		Logger:  s.logger,
	})
	s.mux.Handle("/api/calls/{id}", handlers.CallHandler{Store: s.store, Orch: s.orch, Logger: s.logger})
	s.mux.Handle("/api/calls/{id}/conversation", handlers.ConversationHandler{Store: s.store})
	s.mux.Handle("/api/calls/{id}/order", handlers.OrderHandler{Store: s.store})
	s.mux.Handle("/api/calls/{id}/analyze", handlers.AnalyzeHandler{Orch: s.orch, Logger: s.logger})
	s.mux.Handle("/api/terminate-call", handlers.TerminateCompatHandler{Orch: s.orch, Logger: s.logger})

	s.mux.Handle("/api/archives", handlers.ArchivesHandler{Archive: s.archive})
	s.mux.Handle("/api/archives/{name}", handlers.ArchiveFileHandler{Archive: s.archive})

	s.mux.Handle("/webhooks/voice/answer", handlers.AnswerWebhook{Orch: s.orch, Logger: s.logger})
	s.mux.Handle("/webhooks/voice/speech", handlers.SpeechWebhook{Orch: s.orch, Logger: s.logger})
	s.mux.Handle("/webhooks/voice/partial", handlers.PartialWebhook{Events: s.hub, Logger: s.logger})
	s.mux.Handle("/webhooks/voice/timeout", handlers.TimeoutWebhook{Orch: s.orch, Logger: s.logger})
	s.mux.Handle("/webhooks/voice/recording", handlers.RecordingWebhook{Orch: s.orch, HTTPClient: s.httpClient, Logger: s.logger})
	s.mux.Handle("/webhooks/voice/status", handlers.StatusWebhook{Orch: s.orch, Logger: s.logger})

	s.mux.Handle("/audio/", http.StripPrefix("/audio/", http.FileServer(http.Dir(s.cfg.AudioDir))))

	s.mux.Handle("/ws", s.hub)

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Prewarm exercises the provider pipelines so the first call connects
// without cold-start latency.
func (s *Server) Prewarm(ctx context.Context) {
	s.orch.Prewarm(ctx)
}

// SetDraining flips the readiness probe during graceful shutdown.
func (s *Server) SetDraining(draining bool) {
	s.lifecycle.SetDraining(draining)
}

// Close releases background resources: observer connections and pending
// audio cleanup timers.
func (s *Server) Close() {
	s.hub.Close()
	s.audio.Close()
}
