package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pmwiki/backend/internal/core/domain"
	"github.com/pmwiki/backend/internal/core/ports"
)

type embedderFake struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func (f *embedderFake) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2}
	}
	return vectors, nil
}

type indexFake struct {
	mu         sync.Mutex
	byStandard map[domain.Standard][]domain.RetrievalHit
	global     []domain.RetrievalHit
	limits     []int
	thresholds []float64
	upserted   []domain.SectionPoint
	err        error
}

func (f *indexFake) Search(_ context.Context, _ []float32, limit int, scoreThreshold float64, filter domain.SearchFilter) ([]domain.RetrievalHit, error) {
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.thresholds = append(f.thresholds, scoreThreshold)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if filter.Standard == "" {
		return f.global, nil
	}
	return f.byStandard[filter.Standard], nil
}

func (f *indexFake) Upsert(_ context.Context, points []domain.SectionPoint) error {
	f.upserted = append(f.upserted, points...)
	return f.err
}

type storeFake struct {
	sections map[string]domain.Section
	pending  []domain.Section
	marked   []string
	model    string
	err      error
}

func (f *storeFake) FetchByIDs(_ context.Context, ids []string) (map[string]domain.Section, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.Section, len(ids))
	for _, id := range ids {
		if section, ok := f.sections[id]; ok {
			out[id] = section
		}
	}
	return out, nil
}

func (f *storeFake) GetByID(_ context.Context, id string) (*domain.Section, error) {
	if f.err != nil {
		return nil, f.err
	}
	section, ok := f.sections[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSectionNotFound, "get section", errors.New(id))
	}
	return &section, nil
}

func (f *storeFake) ListMissingEmbeddings(_ context.Context, limit int) ([]domain.Section, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *storeFake) MarkEmbedded(_ context.Context, ids []string, model string, _ time.Time) error {
	f.marked = append(f.marked, ids...)
	f.model = model
	return nil
}

type generatorFake struct {
	bundle      domain.EvidenceBundle
	sources     map[domain.Standard][]domain.SourceRef
	processRefs []domain.SourceRef
	err         error
}

func (f *generatorFake) completion(text string) *ports.Completion {
	return &ports.Completion{
		Text:  text,
		Model: "llama-3.3-70b-versatile",
		Usage: domain.TokenUsage{PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200},
	}
}

func (f *generatorFake) GenerateCitationAnswer(_ context.Context, _ string, evidence domain.EvidenceBundle) (*ports.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bundle = evidence
	return f.completion("answer"), nil
}

func (f *generatorFake) GenerateComparison(_ context.Context, _ string, sources map[domain.Standard][]domain.SourceRef) (*ports.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sources = sources
	return f.completion("comparison"), nil
}

func (f *generatorFake) GenerateProcess(_ context.Context, _ domain.ProcessRequest, sections []domain.SourceRef) (*ports.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.processRefs = sections
	return f.completion(`{"phases":[]}`), nil
}

func testSection(id string, standard domain.Standard, number string, pageStart, pageEnd int) domain.Section {
	return domain.Section{
		ID:            id,
		Standard:      standard,
		SectionNumber: number,
		SectionTitle:  "Title " + number,
		PageStart:     pageStart,
		PageEnd:       pageEnd,
		Content:       "content of section " + number,
		CitationKey:   string(standard) + "-" + number,
	}
}

func TestAnswerWithCitationsBalancedPrimaries(t *testing.T) {
	store := &storeFake{sections: map[string]domain.Section{
		"pm-1":  testSection("pm-1", domain.StandardPMBOK, "2.1", 40, 0),
		"pm-2":  testSection("pm-2", domain.StandardPMBOK, "2.2", 44, 0),
		"pr-1":  testSection("pr-1", domain.StandardPRINCE2, "5.1", 70, 0),
		"pr-2":  testSection("pr-2", domain.StandardPRINCE2, "5.2", 74, 0),
		"iso-1": testSection("iso-1", domain.StandardISO21502, "7.1", 25, 0),
		"iso-2": testSection("iso-2", domain.StandardISO21502, "7.2", 28, 0),
	}}
	index := &indexFake{byStandard: map[domain.Standard][]domain.RetrievalHit{
		domain.StandardPMBOK: {
			{SectionID: "pm-1", Score: 0.9},
			{SectionID: "pm-2", Score: 0.8},
		},
		domain.StandardPRINCE2: {
			{SectionID: "pr-1", Score: 0.6},
			{SectionID: "pr-2", Score: 0.55},
		},
		domain.StandardISO21502: {
			{SectionID: "iso-1", Score: 0.5},
			{SectionID: "iso-2", Score: 0.48},
		},
	}}
	generator := &generatorFake{}
	uc := NewRAGUseCase(&embedderFake{}, index, store, generator)

	answer, err := uc.AnswerWithCitations(context.Background(), "how is risk managed", 0, 0)
	if err != nil {
		t.Fatalf("AnswerWithCitations() error = %v", err)
	}

	if len(answer.PrimarySources) != 3 {
		t.Fatalf("expected one primary per standard, got %d", len(answer.PrimarySources))
	}
	wantPrimaries := []string{"pm-1", "pr-1", "iso-1"}
	for i, want := range wantPrimaries {
		if answer.PrimarySources[i].ID != want {
			t.Fatalf("primary[%d] = %s, want %s", i, answer.PrimarySources[i].ID, want)
		}
		if !answer.PrimarySources[i].IsPrimary {
			t.Fatalf("primary[%d] not flagged primary", i)
		}
	}
	if len(answer.AdditionalContext) != 3 {
		t.Fatalf("expected 3 additional sources, got %d", len(answer.AdditionalContext))
	}
	if answer.UsageStats.ChunksRetrieved != 6 {
		t.Fatalf("expected 6 chunks retrieved, got %d", answer.UsageStats.ChunksRetrieved)
	}
	if answer.UsageStats.PrimarySourcesCount != 3 || answer.UsageStats.AdditionalSourcesCount != 3 {
		t.Fatalf("unexpected usage counts: %+v", answer.UsageStats)
	}
}

func TestAnswerWithCitationsPartialCoverage(t *testing.T) {
	store := &storeFake{sections: map[string]domain.Section{
		"pmbok-2.8.5": testSection("pmbok-2.8.5", domain.StandardPMBOK, "2.8.5", 122, 0),
		"prince2-8.4": testSection("prince2-8.4", domain.StandardPRINCE2, "8.4", 58, 61),
	}}
	index := &indexFake{byStandard: map[domain.Standard][]domain.RetrievalHit{
		domain.StandardPMBOK:   {{SectionID: "pmbok-2.8.5", Score: 0.71}},
		domain.StandardPRINCE2: {{SectionID: "prince2-8.4", Score: 0.65}},
	}}
	generator := &generatorFake{}
	uc := NewRAGUseCase(&embedderFake{}, index, store, generator)

	answer, err := uc.AnswerWithCitations(context.Background(), "risk management", 3, 0.4)
	if err != nil {
		t.Fatalf("AnswerWithCitations() error = %v", err)
	}

	if len(answer.PrimarySources) != 2 {
		t.Fatalf("expected 2 primaries, got %d", len(answer.PrimarySources))
	}
	if len(answer.AdditionalContext) != 0 {
		t.Fatalf("expected no additional context, got %d", len(answer.AdditionalContext))
	}
	if answer.PrimarySources[0].Citation != "PMBOK (2021). Section 2.8.5: Title 2.8.5. p. 122." {
		t.Fatalf("unexpected first citation %q", answer.PrimarySources[0].Citation)
	}
	if !strings.HasSuffix(answer.PrimarySources[1].Citation, "pp. 58-61.") {
		t.Fatalf("expected page range citation, got %q", answer.PrimarySources[1].Citation)
	}
	if answer.UsageStats.PrimarySourcesCount != 2 {
		t.Fatalf("expected primary sources count 2, got %d", answer.UsageStats.PrimarySourcesCount)
	}
}

func TestAnswerWithCitationsEmptyQuery(t *testing.T) {
	uc := NewRAGUseCase(&embedderFake{}, &indexFake{}, &storeFake{}, &generatorFake{})
	_, err := uc.AnswerWithCitations(context.Background(), "   ", 0, 0)
	if !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestAnswerWithCitationsDefaultLimits(t *testing.T) {
	index := &indexFake{}
	uc := NewRAGUseCase(&embedderFake{}, index, &storeFake{}, &generatorFake{})

	if _, err := uc.AnswerWithCitations(context.Background(), "q", 0, 0); err != nil {
		t.Fatalf("AnswerWithCitations() error = %v", err)
	}

	if len(index.limits) != 3 {
		t.Fatalf("expected one search per standard, got %d", len(index.limits))
	}
	for i := range index.limits {
		if index.limits[i] != 3 {
			t.Fatalf("expected default limit 3, got %d", index.limits[i])
		}
		if index.thresholds[i] != 0.4 {
			t.Fatalf("expected default threshold 0.4, got %v", index.thresholds[i])
		}
	}
}

func TestAnswerWithCitationsConfiguredDefaults(t *testing.T) {
	index := &indexFake{}
	uc := NewRAGUseCaseWithOptions(&embedderFake{}, index, &storeFake{}, &generatorFake{}, RAGOptions{
		PerStandardLimit: 7,
		ScoreThreshold:   0.9,
	})

	if _, err := uc.AnswerWithCitations(context.Background(), "q", 0, 0); err != nil {
		t.Fatalf("AnswerWithCitations() error = %v", err)
	}

	for i := range index.limits {
		if index.limits[i] != 7 {
			t.Fatalf("expected configured limit 7, got %d", index.limits[i])
		}
		if index.thresholds[i] != 0.9 {
			t.Fatalf("expected configured threshold 0.9, got %v", index.thresholds[i])
		}
	}

	// An explicit caller value still wins over the configured default.
	index.limits = nil
	index.thresholds = nil
	if _, err := uc.AnswerWithCitations(context.Background(), "q", 2, 0.5); err != nil {
		t.Fatalf("AnswerWithCitations() error = %v", err)
	}
	for i := range index.limits {
		if index.limits[i] != 2 || index.thresholds[i] != 0.5 {
			t.Fatalf("expected caller override 2/0.5, got %d/%v", index.limits[i], index.thresholds[i])
		}
	}
}

func TestAnswerWithCitationsEmbedError(t *testing.T) {
	embedErr := domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", errors.New("connect"))
	uc := NewRAGUseCase(&embedderFake{err: embedErr}, &indexFake{}, &storeFake{}, &generatorFake{})

	_, err := uc.AnswerWithCitations(context.Background(), "q", 0, 0)
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding unavailable, got %v", err)
	}
}

func TestAnswerWithCitationsMetadataFailureFailsRequest(t *testing.T) {
	index := &indexFake{byStandard: map[domain.Standard][]domain.RetrievalHit{
		domain.StandardPMBOK: {{SectionID: "pm-1", Score: 0.9}},
	}}
	storeErr := domain.WrapError(domain.ErrMetadataLookup, "fetch sections by ids", errors.New("db down"))
	uc := NewRAGUseCase(&embedderFake{}, index, &storeFake{err: storeErr}, &generatorFake{})

	_, err := uc.AnswerWithCitations(context.Background(), "q", 0, 0)
	if !domain.IsKind(err, domain.ErrMetadataLookup) {
		t.Fatalf("expected metadata lookup failure, got %v", err)
	}
}

func TestAnswerWithCitationsSkipsHitsWithoutMetadata(t *testing.T) {
	store := &storeFake{sections: map[string]domain.Section{
		"pm-1": testSection("pm-1", domain.StandardPMBOK, "2.1", 40, 0),
	}}
	index := &indexFake{byStandard: map[domain.Standard][]domain.RetrievalHit{
		domain.StandardPMBOK: {
			{SectionID: "pm-1", Score: 0.9},
			{SectionID: "pm-orphan", Score: 0.85},
		},
	}}
	uc := NewRAGUseCase(&embedderFake{}, index, store, &generatorFake{})

	answer, err := uc.AnswerWithCitations(context.Background(), "q", 0, 0)
	if err != nil {
		t.Fatalf("AnswerWithCitations() error = %v", err)
	}
	if len(answer.PrimarySources) != 1 || answer.PrimarySources[0].ID != "pm-1" {
		t.Fatalf("expected only pm-1 surfaced, got %+v", answer.PrimarySources)
	}
	if len(answer.AdditionalContext) != 0 {
		t.Fatalf("expected orphan hit dropped, got %+v", answer.AdditionalContext)
	}
}
