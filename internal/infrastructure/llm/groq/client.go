package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pmwiki/backend/internal/core/domain"
	"github.com/pmwiki/backend/internal/core/ports"
)

const (
	answerMaxTokens     = 2048
	comparisonMaxTokens = 3072
	processMaxTokens    = 4096

	answerTemperature     = 0.3
	comparisonTemperature = 0.3
	processTemperature    = 0.4
)

// Client wraps Groq's OpenAI-compatible chat-completions endpoint. Each
// inbound request maps to exactly one generation call; failures are never
// retried here, only classified for telemetry.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateOptions struct {
	temperature float64
	maxTokens   int
	topP        float64
}

// GenerateCitationAnswer runs the citation Q&A template over the evidence
// bundle: primary chunks in full, additional chunks truncated.
func (c *Client) GenerateCitationAnswer(
	ctx context.Context,
	query string,
	evidence domain.EvidenceBundle,
) (*ports.Completion, error) {
	messages := []message{
		{Role: "system", Content: citationSystemPrompt},
		{Role: "user", Content: buildCitationUserPrompt(query, evidence)},
	}
	return c.generate(ctx, messages, generateOptions{
		temperature: answerTemperature,
		maxTokens:   answerMaxTokens,
		topP:        1.0,
	})
}

// GenerateComparison runs the comparison template with full chunks per
// standard.
func (c *Client) GenerateComparison(
	ctx context.Context,
	topic string,
	sources map[domain.Standard][]domain.SourceRef,
) (*ports.Completion, error) {
	messages := []message{
		{Role: "system", Content: comparisonSystemPrompt},
		{Role: "user", Content: buildComparisonUserPrompt(topic, sources)},
	}
	return c.generate(ctx, messages, generateOptions{
		temperature: comparisonTemperature,
		maxTokens:   comparisonMaxTokens,
		topP:        1.0,
	})
}

// GenerateProcess runs the process-synthesis template. The reply is
// contractually a bare JSON object; this layer returns it unparsed.
func (c *Client) GenerateProcess(
	ctx context.Context,
	req domain.ProcessRequest,
	sections []domain.SourceRef,
) (*ports.Completion, error) {
	messages := []message{
		{Role: "system", Content: processSystemPrompt},
		{Role: "user", Content: buildProcessUserPrompt(req, sections)},
	}
	return c.generate(ctx, messages, generateOptions{
		temperature: processTemperature,
		maxTokens:   processMaxTokens,
		topP:        1.0,
	})
}

func (c *Client) generate(ctx context.Context, messages []message, opts generateOptions) (*ports.Completion, error) {
	reqBody := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": opts.temperature,
		"max_tokens":  opts.maxTokens,
		"top_p":       opts.topP,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/openai/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, domain.NewGenerationError(domain.GenerationKindConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, classifyStatus(resp)
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domain.NewGenerationError(domain.GenerationKindProviderStatus, fmt.Errorf("decode chat response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, domain.NewGenerationError(domain.GenerationKindProviderStatus, errors.New("chat response has no choices"))
	}

	return &ports.Completion{
		Text:  strings.TrimSpace(parsed.Choices[0].Message.Content),
		Model: parsed.Model,
		Usage: domain.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
		FinishReason: parsed.Choices[0].FinishReason,
	}, nil
}

func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	err := fmt.Errorf("groq chat status: %s", resp.Status)
	if msg != "" {
		err = fmt.Errorf("groq chat status: %s: %s", resp.Status, msg)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.NewGenerationError(domain.GenerationKindRateLimited, err)
	}
	return domain.NewGenerationError(domain.GenerationKindProviderStatus, err)
}
