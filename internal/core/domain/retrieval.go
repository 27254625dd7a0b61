package domain

// SearchFilter restricts a vector search to a single standard when set.
type SearchFilter struct {
	Standard Standard
}

// RetrievalHit is the raw result of one nearest-neighbor lookup. It lives
// for the duration of a single request and is never persisted.
type RetrievalHit struct {
	SectionID string   `json:"section_id"`
	Standard  Standard `json:"standard"`
	Score     float64  `json:"score"`
}

// SourceRef is a retrieval hit enriched with full section metadata and a
// formatted citation, as surfaced in responses.
type SourceRef struct {
	Section
	Citation       string  `json:"citation"`
	RelevanceScore float64 `json:"relevance_score"`
	IsPrimary      bool    `json:"is_primary"`
}

// EvidenceBundle is the per-request working set: the single highest-scoring
// hit per standard under Primary, everything else deduplicated by section id
// under Additional. Built fresh per request, never shared.
type EvidenceBundle struct {
	Primary    []SourceRef
	Additional []SourceRef
}

// All returns primary sources followed by additional context, the order the
// generation prompt consumes them in.
func (b EvidenceBundle) All() []SourceRef {
	out := make([]SourceRef, 0, len(b.Primary)+len(b.Additional))
	out = append(out, b.Primary...)
	out = append(out, b.Additional...)
	return out
}

// TokenUsage mirrors the generation provider's token accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageStats summarizes model and evidence counts for one request.
type UsageStats struct {
	Model                  string     `json:"model"`
	Tokens                 TokenUsage `json:"tokens"`
	ChunksRetrieved        int        `json:"chunks_retrieved,omitempty"`
	PrimarySourcesCount    int        `json:"primary_sources_count,omitempty"`
	AdditionalSourcesCount int        `json:"additional_sources_count,omitempty"`
}

// GeneratedAnswer is the orchestrator's output for citation Q&A.
type GeneratedAnswer struct {
	Query             string      `json:"query"`
	Answer            string      `json:"answer"`
	PrimarySources    []SourceRef `json:"primary_sources"`
	AdditionalContext []SourceRef `json:"additional_context"`
	UsageStats        UsageStats  `json:"usage_stats"`
}

// ComparisonResult is the output of a cross-standard topic comparison.
// Source previews are truncated; the comparison text itself is complete.
type ComparisonResult struct {
	Topic      string                   `json:"topic"`
	Comparison string                   `json:"comparison"`
	Sources    map[Standard][]SourceRef `json:"sources"`
	UsageStats UsageStats               `json:"usage_stats"`
}

// ProcessRequest describes the project scenario a tailored process is
// generated for.
type ProcessRequest struct {
	Description string   `json:"project_description"`
	Type        string   `json:"project_type"`
	Size        string   `json:"project_size"`
	Constraints []string `json:"constraints,omitempty"`
	Priorities  []string `json:"priorities,omitempty"`
	FocusAreas  []string `json:"focus_areas,omitempty"`
}

// ProcessResult carries the generator's structured-JSON process text as-is.
// Parsing the JSON is the caller's responsibility.
type ProcessResult struct {
	ProjectType         string     `json:"project_type"`
	ProjectSize         string     `json:"project_size"`
	ProcessData         string     `json:"process_data"`
	SourceSectionsCount int        `json:"source_sections_count"`
	StandardsUsed       []Standard `json:"standards_used"`
	UsageStats          UsageStats `json:"usage_stats"`
}
