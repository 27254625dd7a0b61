package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmwiki/backend/internal/core/domain"
)

const (
	minProjectDescriptionLen = 10
	maxProjectDescriptionLen = 1000
)

var projectSizes = map[string]struct{}{
	"small":  {},
	"medium": {},
	"large":  {},
}

// GenerateProcess gathers evidence across multiple searches and synthesizes
// a tailored project process. This mode searches the full index without
// per-standard balancing: the goal is breadth of relevant material, not
// citation parity.
func (uc *RAGUseCase) GenerateProcess(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResult, error) {
	if err := validateProcessRequest(&req); err != nil {
		return nil, err
	}

	queries := buildProcessQueries(req)

	hits, err := uc.gatherProcessHits(ctx, queries)
	if err != nil {
		return nil, err
	}

	sections, err := uc.fetchHitSections(ctx, hits)
	if err != nil {
		return nil, err
	}

	refs, err := enrichHits(hits, sections)
	if err != nil {
		return nil, err
	}
	refs = trimSourceRefs(refs, processMaxSections)

	completion, err := uc.generator.GenerateProcess(ctx, req, refs)
	if err != nil {
		return nil, fmt.Errorf("generate process: %w", err)
	}

	return &domain.ProcessResult{
		ProjectType:         req.Type,
		ProjectSize:         req.Size,
		ProcessData:         completion.Text,
		SourceSectionsCount: len(refs),
		StandardsUsed:       standardsUsed(refs),
		UsageStats: domain.UsageStats{
			Model:  completion.Model,
			Tokens: completion.Usage,
		},
	}, nil
}

func validateProcessRequest(req *domain.ProcessRequest) error {
	desc := strings.TrimSpace(req.Description)
	if len(desc) < minProjectDescriptionLen || len(desc) > maxProjectDescriptionLen {
		return domain.WrapError(domain.ErrInvalidRequest, "generate process",
			fmt.Errorf("project description must be %d-%d characters", minProjectDescriptionLen, maxProjectDescriptionLen))
	}
	if strings.TrimSpace(req.Type) == "" {
		return domain.WrapError(domain.ErrInvalidRequest, "generate process", errors.New("project type is required"))
	}
	if req.Size == "" {
		req.Size = "medium"
	}
	if _, ok := projectSizes[req.Size]; !ok {
		return domain.WrapError(domain.ErrInvalidRequest, "generate process",
			fmt.Errorf("project size must be small, medium or large, got %q", req.Size))
	}
	return nil
}

// buildProcessQueries assembles the fixed lifecycle queries plus one query
// per focus area and per priority, priorities capped to bound query count.
func buildProcessQueries(req domain.ProcessRequest) []string {
	queries := []string{
		fmt.Sprintf("%s project lifecycle phases", req.Type),
		"project initiation and planning",
		"project execution and monitoring",
		"project closure and lessons learned",
	}

	queries = append(queries, req.FocusAreas...)

	priorities := req.Priorities
	if len(priorities) > processMaxPriorities {
		priorities = priorities[:processMaxPriorities]
	}
	for _, priority := range priorities {
		queries = append(queries, fmt.Sprintf("%s in project management", priority))
	}
	return queries
}

// gatherProcessHits accumulates hits across all queries, deduplicated by
// section id at each section's maximum observed score, sorted descending
// and truncated to the evidence cap.
func (uc *RAGUseCase) gatherProcessHits(ctx context.Context, queries []string) ([]domain.RetrievalHit, error) {
	best := make(map[string]domain.RetrievalHit)

	for _, query := range queries {
		vector, err := uc.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed process query %q: %w", query, err)
		}

		hits, err := uc.index.Search(ctx, vector, processTopKPerQuery, processScoreThreshold, domain.SearchFilter{})
		if err != nil {
			return nil, fmt.Errorf("search process query %q: %w", query, err)
		}

		for _, hit := range hits {
			current, seen := best[hit.SectionID]
			if !seen || hit.Score > current.Score {
				best[hit.SectionID] = hit
			}
		}
	}

	hits := make([]domain.RetrievalHit, 0, len(best))
	for _, hit := range best {
		hits = append(hits, hit)
	}
	sortHits(hits)
	if len(hits) > processMaxSections {
		hits = hits[:processMaxSections]
	}
	return hits, nil
}

func (uc *RAGUseCase) fetchHitSections(ctx context.Context, hits []domain.RetrievalHit) (map[string]domain.Section, error) {
	if len(hits) == 0 {
		return map[string]domain.Section{}, nil
	}
	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.SectionID
	}
	sections, err := uc.store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch section metadata: %w", err)
	}
	return sections, nil
}

func standardsUsed(refs []domain.SourceRef) []domain.Standard {
	seen := make(map[domain.Standard]bool, len(refs))
	for _, ref := range refs {
		seen[ref.Standard] = true
	}
	out := make([]domain.Standard, 0, len(seen))
	for _, standard := range domain.Standards() {
		if seen[standard] {
			out = append(out, standard)
		}
	}
	return out
}
