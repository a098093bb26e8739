package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/restockai/voiceline/pkg/agent"
)

// AzureProvider implements the STT Provider interface against the Azure
// Speech REST API.
type AzureProvider struct {
	key        string
	endpoint   string
	httpClient *http.Client
}

// NewAzure creates a new Azure STT provider for the given region.
func NewAzure(key, region string) *AzureProvider {
	return &AzureProvider{
		key:        key,
		endpoint:   fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", region),
		httpClient: &http.Client{},
	}
}

// NewAzureWithClient creates a provider with a custom endpoint and HTTP
// client, used by tests.
func NewAzureWithClient(key, endpoint string, client *http.Client) *AzureProvider {
	return &AzureProvider{key: key, endpoint: endpoint, httpClient: client}
}

// Name returns the provider identifier.
func (p *AzureProvider) Name() string {
	return "azure"
}

type azureRecognition struct {
	RecognitionStatus string  `json:"RecognitionStatus"`
	DisplayText       string  `json:"DisplayText"`
	Duration          float64 `json:"Duration"`
}

// Transcribe converts audio to text. A NoMatch recognition is returned as
// an empty transcript, not an error; the orchestrator treats it as caller
// silence.
func (p *AzureProvider) Transcribe(ctx context.Context, audio io.Reader, opts Options) (*Transcript, error) {
	lang := opts.Language
	if lang == "" {
		lang = "en-US"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"?language="+url.QueryEscape(lang), audio)
	if err != nil {
		return nil, agent.NewRecognitionError("create request", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", contentType(opts))
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, agent.NewRecognitionError("azure request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, agent.NewRecognitionError(
			fmt.Sprintf("azure error %d: %s", resp.StatusCode, string(errBody)), nil)
	}

	var out azureRecognition
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, agent.NewRecognitionError("decode response", err)
	}

	switch out.RecognitionStatus {
	case "Success":
		return &Transcript{Text: out.DisplayText, Language: lang, Duration: out.Duration / 1e7}, nil
	case "NoMatch", "InitialSilenceTimeout":
		return &Transcript{Text: "", Language: lang}, nil
	default:
		return nil, agent.NewRecognitionError("recognition failed: "+out.RecognitionStatus, nil)
	}
}

func contentType(opts Options) string {
	rate := opts.SampleRate
	if rate == 0 {
		rate = 16000
	}
	switch opts.Format {
	case "mulaw":
		return fmt.Sprintf("audio/mulaw; codecs=audio/pcm; samplerate=%d", rate)
	default:
		return fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", rate)
	}
}
