package tts

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/restockai/voiceline/pkg/agent"
)

const azureOutputFormat = "audio-16khz-128kbitrate-mono-mp3"

// PauseMarker is the markup token replies may contain for a natural pause.
const PauseMarker = "*pause*"

const pauseBreak = `<break time="800ms"/>`

// AzureProvider implements the TTS Provider interface against the Azure
// Speech REST API.
type AzureProvider struct {
	key        string
	region     string
	voiceName  string
	endpoint   string
	httpClient *http.Client
}

// NewAzure creates a new Azure TTS provider. voiceName is the short neural
// voice name, e.g. "luna" for en-US-lunaNeural.
func NewAzure(key, region, voiceName string) *AzureProvider {
	if voiceName == "" {
		voiceName = "luna"
	}
	return &AzureProvider{
		key:        key,
		region:     region,
		voiceName:  voiceName,
		endpoint:   fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		httpClient: &http.Client{},
	}
}

// NewAzureWithClient creates a provider with a custom endpoint and HTTP
// client, used by tests.
func NewAzureWithClient(key, voiceName, endpoint string, client *http.Client) *AzureProvider {
	if voiceName == "" {
		voiceName = "luna"
	}
	return &AzureProvider{key: key, voiceName: voiceName, endpoint: endpoint, httpClient: client}
}

// Name returns the provider identifier.
func (p *AzureProvider) Name() string {
	return "azure"
}

// Synthesize converts text to MP3 audio via the Azure Speech REST API.
func (p *AzureProvider) Synthesize(ctx context.Context, text string, opts Options) (*Synthesis, error) {
	ssml := BuildSSML(text, p.Voice(), opts)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, agent.NewSynthesisError("create request", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, agent.NewSynthesisError("azure request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, agent.NewSynthesisError(
			fmt.Sprintf("azure error %d: %s", resp.StatusCode, string(errBody)), nil)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, agent.NewSynthesisError("read audio", err)
	}
	if len(audio) == 0 {
		return nil, agent.NewSynthesisError("empty audio", nil)
	}
	return &Synthesis{Audio: audio, Format: "mp3"}, nil
}

// Voice returns the full neural voice name.
func (p *AzureProvider) Voice() string {
	return fmt.Sprintf("en-US-%sNeural", p.voiceName)
}

// ExpandPauses translates pause markers into SSML break elements.
func ExpandPauses(text string) string {
	return strings.ReplaceAll(text, PauseMarker, pauseBreak)
}

// StripPauses removes pause markers, for plain spoken-text fallbacks.
func StripPauses(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, PauseMarker, " "))
}

// BuildSSML wraps text in an SSML document with the prosody and speaking
// style options. Text is XML-escaped before pause markers are expanded, so
// caller content cannot inject markup.
func BuildSSML(text, voice string, opts Options) string {
	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(text))
	body := ExpandPauses(escaped.String())

	var b strings.Builder
	b.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="en-US">`)
	fmt.Fprintf(&b, `<voice name="%s">`, voice)
	if opts.Style != "" {
		fmt.Fprintf(&b, `<mstts:express-as style="%s">`, opts.Style)
	}
	fmt.Fprintf(&b, `<prosody rate="%s" pitch="%s" volume="%s">`, orDefault(opts.Rate, "0%"), orDefault(opts.Pitch, "0%"), orDefault(opts.Volume, "medium"))
	b.WriteString(body)
	b.WriteString(`</prosody>`)
	if opts.Style != "" {
		b.WriteString(`</mstts:express-as>`)
	}
	b.WriteString(`</voice></speak>`)
	return b.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
