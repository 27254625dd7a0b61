package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pmwiki/backend/internal/core/domain"
	"github.com/pmwiki/backend/internal/core/ports"
	"github.com/pmwiki/backend/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	answers  ports.AnswerService
	sections ports.SectionReader
	jobs     ports.EmbedJobQueue
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	answers ports.AnswerService,
	sections ports.SectionReader,
	jobs ports.EmbedJobQueue,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		answers:  answers,
		sections: sections,
		jobs:     jobs,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/compare/", rt.compare)
	mux.HandleFunc("/v1/generate-process", rt.generateProcess)
	mux.HandleFunc("/v1/sections/", rt.getSectionByID)
	mux.HandleFunc("/v1/embed-jobs", rt.enqueueEmbedJob)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		return requestIDMiddleware(accessLogMiddleware(rt.metrics.Middleware(serviceName, mux)))
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query          string  `json:"query"`
		Limit          int     `json:"limit"`
		ScoreThreshold float64 `json:"score_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	answer, err := rt.answers.AnswerWithCitations(r.Context(), req.Query, req.Limit, req.ScoreThreshold)
	if err != nil {
		rt.writeError(w, r, "search", err)
		return
	}

	rt.recordRAG("/v1/search", answer.UsageStats, len(answer.PrimarySources)+len(answer.AdditionalContext), time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) compare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	topic := strings.TrimPrefix(r.URL.Path, "/v1/compare/")
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic is required"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	threshold, _ := strconv.ParseFloat(r.URL.Query().Get("score_threshold"), 64)

	start := time.Now()
	result, err := rt.answers.CompareTopic(r.Context(), topic, limit, threshold)
	if err != nil {
		rt.writeError(w, r, "compare", err)
		return
	}

	sourceCount := 0
	for _, refs := range result.Sources {
		sourceCount += len(refs)
	}
	rt.recordRAG("/v1/compare/{topic}", result.UsageStats, sourceCount, time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) generateProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	result, err := rt.answers.GenerateProcess(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, "generate-process", err)
		return
	}

	rt.recordRAG("/v1/generate-process", result.UsageStats, result.SourceSectionsCount, time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getSectionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/sections/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "section id is required"})
		return
	}

	section, err := rt.sections.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "sections", err)
		return
	}

	writeJSON(w, http.StatusOK, sectionResponse{
		Section:      *section,
		CitationAPA:  domain.Citation(*section, domain.CitationAPA),
		CitationIEEE: domain.Citation(*section, domain.CitationIEEE),
	})
}

// enqueueEmbedJob asks the worker to embed the next batch of sections
// missing embeddings. The batch id only correlates logs across services.
func (rt *Router) enqueueEmbedJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	batchID := uuid.NewString()
	if err := rt.jobs.PublishEmbedRequested(r.Context(), batchID); err != nil {
		rt.writeError(w, r, "embed-jobs", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"batch_id": batchID})
}

type sectionResponse struct {
	domain.Section
	CitationAPA  string `json:"citation_apa"`
	CitationIEEE string `json:"citation_ieee"`
}

func (rt *Router) recordRAG(endpoint string, usage domain.UsageStats, sourceCount int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRAGObservation(serviceName, endpoint, sourceCount, duration)
	rt.metrics.RecordTokenUsage(serviceName, endpoint, usage.Model, usage.Tokens.PromptTokens, usage.Tokens.CompletionTokens)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	switch {
	case status >= http.StatusInternalServerError:
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"endpoint", endpoint,
			"error", err.Error(),
		)
		// Backend details stay in the logs.
		message = "internal error"
		if status == http.StatusServiceUnavailable {
			message = "temporarily unavailable"
		}
	case status == http.StatusTooManyRequests:
		// The provider's 429 body may carry internals; keep it in the logs.
		slog.Warn("request_rate_limited",
			"request_id", requestIDFromContext(r.Context()),
			"endpoint", endpoint,
			"error", err.Error(),
		)
		message = "generation temporarily rate limited, retry later"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
