package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pmwiki/backend/internal/core/domain"
	"github.com/pmwiki/backend/internal/infrastructure/resilience"
)

const (
	inputTypeQuery    = "query"
	inputTypeDocument = "document"

	// Voyage accepts up to 1000 inputs per request; smaller batches keep
	// request sizes and rate-limit exposure manageable.
	maxBatchSize = 128
)

// Client wraps the Voyage AI embeddings endpoint. Query and document
// embeddings use the provider's asymmetric input types and must not be
// mixed.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	// DocumentBatchRate paces document batches to stay under the
	// provider's token-per-minute budget. Zero disables pacing.
	DocumentBatchRate rate.Limit
}

func New(baseURL, apiKey, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	executor := options.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	var limiter *rate.Limiter
	if options.DocumentBatchRate > 0 {
		limiter = rate.NewLimiter(options.DocumentBatchRate, 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		limiter:    limiter,
	}
}

// EmbedQuery embeds a single search query synchronously in the request path.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text}, inputTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", errors.New("empty embedding result"))
	}
	return vectors[0], nil
}

// EmbedDocuments embeds corpus texts in bounded batches, pacing batches to
// respect the provider's rate limits.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		if c.limiter != nil && start > 0 {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vectors, err := c.embed(ctx, texts[start:end], inputTypeDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	var vectors [][]float32
	call := func(callCtx context.Context) error {
		var err error
		vectors, err = c.postEmbeddings(callCtx, texts, inputType)
		return err
	}

	err := c.executor.Execute(ctx, "voyage.embed."+inputType, call, classifyVoyageError)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "voyage embed "+inputType, err)
	}
	return vectors, nil
}

func (c *Client) postEmbeddings(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	reqBody := map[string]any{
		"input":      texts,
		"model":      c.model,
		"input_type": inputType,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voyage embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError("embeddings", resp)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}

	// The provider documents input order, but index is authoritative.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		out[i] = item.Embedding
	}
	return out, nil
}

// HTTPStatusError is a non-2xx provider reply, preserved for retry
// classification.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("voyage %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("voyage %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
