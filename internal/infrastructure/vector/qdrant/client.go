package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pmwiki/backend/internal/core/domain"
	"github.com/pmwiki/backend/internal/infrastructure/resilience"
)

// VectorSize matches the voyage-3-large embedding dimension.
const VectorSize = 1024

// Client talks to Qdrant over its HTTP API. Search is the read path used by
// the orchestrator; Upsert is only exercised by the ingestion worker.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  bool
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, collection string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	executor := options.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// Search returns ranked hits above scoreThreshold, at most limit, optionally
// restricted to a single standard. An empty result is not an error.
func (c *Client) Search(
	ctx context.Context,
	vector []float32,
	limit int,
	scoreThreshold float64,
	filter domain.SearchFilter,
) ([]domain.RetrievalHit, error) {
	reqBody := map[string]any{
		"vector":          vector,
		"limit":           limit,
		"score_threshold": scoreThreshold,
		"with_payload":    true,
	}
	if filter.Standard != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key":   "standard",
					"match": map[string]any{"value": string(filter.Standard)},
				},
			},
		}
	}

	var hits []domain.RetrievalHit
	call := func(callCtx context.Context) error {
		var err error
		hits, err = c.postSearch(callCtx, reqBody)
		return err
	}

	if err := c.executor.Execute(ctx, "qdrant.search", call, classifyQdrantError); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "qdrant search", err)
	}
	return hits, nil
}

func (c *Client) postSearch(ctx context.Context, reqBody map[string]any) ([]domain.RetrievalHit, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError("search", resp)
	}

	var searchResp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]domain.RetrievalHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		hits = append(hits, domain.RetrievalHit{
			SectionID: r.ID,
			Standard:  domain.Standard(stringPayload(r.Payload, "standard")),
			Score:     r.Score,
		})
	}
	return hits, nil
}

// Upsert writes section points in one request, creating the collection on
// first use.
func (c *Client) Upsert(ctx context.Context, points []domain.SectionPoint) error {
	if len(points) == 0 {
		return nil
	}

	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	body := struct {
		Points []point `json:"points"`
	}{Points: make([]point, 0, len(points))}

	for _, p := range points {
		body.Points = append(body.Points, point{
			ID:     p.ID,
			Vector: p.Vector,
			Payload: map[string]any{
				"standard":       string(p.Standard),
				"section_number": p.SectionNumber,
				"page_start":     p.PageStart,
				"citation_key":   p.CitationKey,
			},
		})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError("upsert", resp)
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	if c.ensured {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     VectorSize,
			"distance": "Cosine",
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 409 means the collection already exists, which is fine.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return newHTTPStatusError("ensure collection", resp)
	}

	c.ensureMu.Lock()
	c.ensured = true
	c.ensureMu.Unlock()
	return nil
}

func stringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
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
