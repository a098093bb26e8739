package stt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/restockai/voiceline/pkg/agent"
)

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("language"); got != "en-US" {
			t.Errorf("language = %q", got)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "audio/wav") {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"RecognitionStatus":"Success","DisplayText":"ten cases please","Duration":32500000}`))
	}))
	defer srv.Close()

	p := NewAzureWithClient("test-key", srv.URL, srv.Client())
	tr, err := p.Transcribe(context.Background(), strings.NewReader("wav-bytes"), Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "ten cases please" {
		t.Fatalf("text = %q", tr.Text)
	}
	if tr.Duration < 3.2 || tr.Duration > 3.3 {
		t.Fatalf("duration = %v", tr.Duration)
	}
}

func TestTranscribeNoMatchIsEmptyNotError(t *testing.T) {
	for _, status := range []string{"NoMatch", "InitialSilenceTimeout"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"RecognitionStatus":"` + status + `"}`))
		}))

		p := NewAzureWithClient("test-key", srv.URL, srv.Client())
		tr, err := p.Transcribe(context.Background(), strings.NewReader("wav"), Options{})
		srv.Close()
		if err != nil {
			t.Fatalf("%s: Transcribe: %v", status, err)
		}
		if tr.Text != "" {
			t.Fatalf("%s: text = %q, want empty", status, tr.Text)
		}
	}
}

func TestTranscribeErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewAzureWithClient("test-key", srv.URL, srv.Client())
	_, err := p.Transcribe(context.Background(), strings.NewReader("wav"), Options{})
	var agentErr *agent.Error
	if !errors.As(err, &agentErr) || agentErr.Type != agent.ErrRecognition {
		t.Fatalf("err = %v, want recognition_error", err)
	}
}

func TestContentTypeByFormat(t *testing.T) {
	if got := contentType(Options{Format: "mulaw", SampleRate: 8000}); !strings.HasPrefix(got, "audio/mulaw") || !strings.Contains(got, "8000") {
		t.Fatalf("mulaw content type = %q", got)
	}
	if got := contentType(Options{}); !strings.Contains(got, "16000") {
		t.Fatalf("default content type = %q", got)
	}
}
