package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmwiki/backend/internal/core/domain"
)

// CompareTopic retrieves how each standard addresses a topic and generates a
// structured comparison. Unlike AnswerWithCitations there is no
// primary/additional split: comparison quality depends on the generator
// seeing more than one full chunk per standard.
func (uc *RAGUseCase) CompareTopic(
	ctx context.Context,
	topic string,
	perStandardLimit int,
	scoreThreshold float64,
) (*domain.ComparisonResult, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, domain.WrapError(domain.ErrInvalidRequest, "compare topic", errors.New("topic must not be empty"))
	}
	if perStandardLimit <= 0 {
		perStandardLimit = comparePerStandardLimit
	}
	if scoreThreshold <= 0 {
		scoreThreshold = uc.scoreThreshold
	}

	vector, err := uc.embedder.EmbedQuery(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("embed topic: %w", err)
	}

	hitsByStandard, err := uc.searchAllStandards(ctx, vector, perStandardLimit, scoreThreshold)
	if err != nil {
		return nil, err
	}

	sections, err := uc.fetchSections(ctx, hitsByStandard)
	if err != nil {
		return nil, err
	}

	sources := make(map[domain.Standard][]domain.SourceRef, len(hitsByStandard))
	for _, standard := range domain.Standards() {
		refs, err := enrichHits(hitsByStandard[standard], sections)
		if err != nil {
			return nil, err
		}
		sources[standard] = refs
	}

	completion, err := uc.generator.GenerateComparison(ctx, topic, sources)
	if err != nil {
		return nil, fmt.Errorf("generate comparison: %w", err)
	}

	return &domain.ComparisonResult{
		Topic:      topic,
		Comparison: completion.Text,
		Sources:    previewSources(sources),
		UsageStats: domain.UsageStats{
			Model:  completion.Model,
			Tokens: completion.Usage,
		},
	}, nil
}

// previewSources copies the evidence map with content bounded for display.
func previewSources(sources map[domain.Standard][]domain.SourceRef) map[domain.Standard][]domain.SourceRef {
	out := make(map[domain.Standard][]domain.SourceRef, len(sources))
	for standard, refs := range sources {
		preview := make([]domain.SourceRef, len(refs))
		for i, ref := range refs {
			preview[i] = ref
			preview[i].Content = previewContent(ref.Content, sourcePreviewChars)
		}
		out[standard] = preview
	}
	return out
}
