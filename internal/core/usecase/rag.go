package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pmwiki/backend/internal/core/domain"
	"github.com/pmwiki/backend/internal/core/ports"
)

const (
	defaultPerStandardLimit = 3
	defaultScoreThreshold   = 0.4

	comparePerStandardLimit = 2

	processTopKPerQuery    = 5
	processScoreThreshold  = 0.45
	processMaxSections     = 15
	processMaxPriorities   = 2
	sourcePreviewChars     = 200
)

// RAGOptions overrides the retrieval defaults applied when a caller omits
// limit or threshold. Zero values fall back to the built-in constants.
type RAGOptions struct {
	PerStandardLimit int
	ScoreThreshold   float64
}

// RAGUseCase orchestrates the full retrieval-and-generation pipeline. It is
// stateless across requests; every public method is a pure pipeline
// invocation over injected clients.
type RAGUseCase struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	store     ports.SectionStore
	generator ports.Generator

	perStandardLimit int
	scoreThreshold   float64
}

func NewRAGUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	store ports.SectionStore,
	generator ports.Generator,
) *RAGUseCase {
	return NewRAGUseCaseWithOptions(embedder, index, store, generator, RAGOptions{})
}

func NewRAGUseCaseWithOptions(
	embedder ports.Embedder,
	index ports.VectorIndex,
	store ports.SectionStore,
	generator ports.Generator,
	options RAGOptions,
) *RAGUseCase {
	if options.PerStandardLimit <= 0 {
		options.PerStandardLimit = defaultPerStandardLimit
	}
	if options.ScoreThreshold <= 0 {
		options.ScoreThreshold = defaultScoreThreshold
	}
	return &RAGUseCase{
		embedder:  embedder,
		index:     index,
		store:     store,
		generator: generator,

		perStandardLimit: options.PerStandardLimit,
		scoreThreshold:   options.ScoreThreshold,
	}
}

// AnswerWithCitations answers a query with balanced cross-standard evidence.
// Each standard is searched independently under its own quota, so one
// standard's stronger absolute scores never crowd the others out of the
// evidence set.
func (uc *RAGUseCase) AnswerWithCitations(
	ctx context.Context,
	query string,
	perStandardLimit int,
	scoreThreshold float64,
) (*domain.GeneratedAnswer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidRequest, "answer with citations", errors.New("query must not be empty"))
	}
	if perStandardLimit <= 0 {
		perStandardLimit = uc.perStandardLimit
	}
	if scoreThreshold <= 0 {
		scoreThreshold = uc.scoreThreshold
	}

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hitsByStandard, err := uc.searchAllStandards(ctx, vector, perStandardLimit, scoreThreshold)
	if err != nil {
		return nil, err
	}

	sections, err := uc.fetchSections(ctx, hitsByStandard)
	if err != nil {
		return nil, err
	}

	bundle, err := buildEvidenceBundle(hitsByStandard, sections)
	if err != nil {
		return nil, err
	}

	completion, err := uc.generator.GenerateCitationAnswer(ctx, query, bundle)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.GeneratedAnswer{
		Query:             query,
		Answer:            completion.Text,
		PrimarySources:    bundle.Primary,
		AdditionalContext: bundle.Additional,
		UsageStats: domain.UsageStats{
			Model:                  completion.Model,
			Tokens:                 completion.Usage,
			ChunksRetrieved:        len(bundle.Primary) + len(bundle.Additional),
			PrimarySourcesCount:    len(bundle.Primary),
			AdditionalSourcesCount: len(bundle.Additional),
		},
	}, nil
}

// searchAllStandards runs one filtered search per standard. The searches are
// independent and run concurrently; results stay grouped by standard.
func (uc *RAGUseCase) searchAllStandards(
	ctx context.Context,
	vector []float32,
	limit int,
	scoreThreshold float64,
) (map[domain.Standard][]domain.RetrievalHit, error) {
	standards := domain.Standards()
	results := make([][]domain.RetrievalHit, len(standards))
	errs := make([]error, len(standards))

	var wg sync.WaitGroup
	for i, standard := range standards {
		wg.Add(1)
		go func(i int, standard domain.Standard) {
			defer wg.Done()
			hits, err := uc.index.Search(ctx, vector, limit, scoreThreshold, domain.SearchFilter{Standard: standard})
			if err != nil {
				errs[i] = fmt.Errorf("search %s: %w", standard, err)
				return
			}
			for j := range hits {
				hits[j].Standard = standard
			}
			results[i] = hits
		}(i, standard)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make(map[domain.Standard][]domain.RetrievalHit, len(standards))
	for i, standard := range standards {
		out[standard] = results[i]
	}
	return out, nil
}

// fetchSections batch-loads metadata for the union of all hits in one round
// trip. A store failure fails the whole request: citations cannot be
// produced without metadata.
func (uc *RAGUseCase) fetchSections(
	ctx context.Context,
	hitsByStandard map[domain.Standard][]domain.RetrievalHit,
) (map[string]domain.Section, error) {
	ids := make([]string, 0, 8)
	for _, hits := range hitsByStandard {
		for _, hit := range hits {
			ids = append(ids, hit.SectionID)
		}
	}
	if len(ids) == 0 {
		return map[string]domain.Section{}, nil
	}

	sections, err := uc.store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch section metadata: %w", err)
	}
	return sections, nil
}
