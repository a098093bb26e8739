package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/agent/types"
)

const openaiBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements Provider against the chat completions API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates a new OpenAI provider.
func NewOpenAI(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    openaiBaseURL,
		httpClient: &http.Client{},
	}
}

// NewOpenAIWithClient creates a provider with a custom base URL and HTTP
// client, used by tests.
func NewOpenAIWithClient(apiKey, baseURL string, client *http.Client) *OpenAIProvider {
	return &OpenAIProvider{apiKey: apiKey, baseURL: baseURL, httpClient: client}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// SetHTTPClient replaces the HTTP client, for sharing transport settings.
func (p *OpenAIProvider) SetHTTPClient(client *http.Client) {
	if client != nil {
		p.httpClient = client
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate produces the next agent reply with the chat completions API.
// Domain roles map onto the wire roles: caller turns are sent as "user",
// agent turns as "assistant".
func (p *OpenAIProvider) Generate(ctx context.Context, history []types.Turn, opts GenerateOptions) (string, error) {
	msgs := make([]chatMessage, 0, len(history))
	for _, turn := range history {
		msgs = append(msgs, chatMessage{Role: wireRole(turn.Role), Content: turn.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:       opts.Model,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", agent.NewGenerationError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", agent.NewGenerationError("create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", agent.NewGenerationError("openai request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", agent.NewGenerationError(
			fmt.Sprintf("openai error %d: %s", resp.StatusCode, string(errBody)), nil)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", agent.NewGenerationError("decode response", err)
	}
	if len(out.Choices) == 0 {
		return "", agent.NewGenerationError("empty completion", nil)
	}
	return out.Choices[0].Message.Content, nil
}

func wireRole(r types.Role) string {
	switch r {
	case types.RoleCaller:
		return "user"
	case types.RoleAgent:
		return "assistant"
	default:
		return "system"
	}
}
