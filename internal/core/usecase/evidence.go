package usecase

import (
	"sort"
	"unicode/utf8"

	"github.com/pmwiki/backend/internal/core/domain"
)

// buildEvidenceBundle partitions enriched hits into primary and additional
// evidence. Per standard, the single top-scoring hit becomes primary and the
// rest additional; a standard contributing zero qualifying hits is simply
// absent. Hits whose ids have no metadata are dropped silently (the index
// and the store are eventually-consistent siblings).
func buildEvidenceBundle(
	hitsByStandard map[domain.Standard][]domain.RetrievalHit,
	sections map[string]domain.Section,
) (domain.EvidenceBundle, error) {
	var bundle domain.EvidenceBundle

	for _, standard := range domain.Standards() {
		refs, err := enrichHits(hitsByStandard[standard], sections)
		if err != nil {
			return domain.EvidenceBundle{}, err
		}
		if len(refs) == 0 {
			continue
		}

		refs[0].IsPrimary = true
		bundle.Primary = append(bundle.Primary, refs[0])
		bundle.Additional = append(bundle.Additional, refs[1:]...)
	}

	bundle.Additional = dedupeKeepMaxScore(bundle.Additional)
	return bundle, nil
}

// enrichHits joins hits with section metadata, preserving the index's score
// ordering. Every surfaced section must carry its citation fields.
func enrichHits(hits []domain.RetrievalHit, sections map[string]domain.Section) ([]domain.SourceRef, error) {
	refs := make([]domain.SourceRef, 0, len(hits))
	for _, hit := range hits {
		section, ok := sections[hit.SectionID]
		if !ok {
			continue
		}
		if err := section.ValidateForCitation(); err != nil {
			return nil, err
		}
		refs = append(refs, domain.SourceRef{
			Section:        section,
			Citation:       domain.Citation(section, domain.CitationAPA),
			RelevanceScore: hit.Score,
		})
	}
	return refs, nil
}

// dedupeKeepMaxScore collapses duplicate section ids, keeping each section
// at its maximum observed score, then re-sorts deterministically.
func dedupeKeepMaxScore(refs []domain.SourceRef) []domain.SourceRef {
	if len(refs) <= 1 {
		return refs
	}

	best := make(map[string]domain.SourceRef, len(refs))
	for _, ref := range refs {
		current, seen := best[ref.ID]
		if !seen || ref.RelevanceScore > current.RelevanceScore {
			best[ref.ID] = ref
		}
	}

	out := make([]domain.SourceRef, 0, len(best))
	for _, ref := range best {
		out = append(out, ref)
	}
	sortSourceRefs(out)
	return out
}

// sortSourceRefs orders by score descending with deterministic tiebreakers
// so identical inputs always produce identical evidence ordering.
func sortSourceRefs(refs []domain.SourceRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].RelevanceScore != refs[j].RelevanceScore {
			return refs[i].RelevanceScore > refs[j].RelevanceScore
		}
		if refs[i].Standard != refs[j].Standard {
			return refs[i].Standard < refs[j].Standard
		}
		return refs[i].ID < refs[j].ID
	})
}

// sortHits orders raw hits the same way: score descending, deterministic
// tiebreakers.
func sortHits(hits []domain.RetrievalHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Standard != hits[j].Standard {
			return hits[i].Standard < hits[j].Standard
		}
		return hits[i].SectionID < hits[j].SectionID
	})
}

func trimSourceRefs(refs []domain.SourceRef, limit int) []domain.SourceRef {
	if limit <= 0 || len(refs) <= limit {
		return refs
	}
	return refs[:limit]
}

// previewContent bounds the display copy of a source's content. Prompt-side
// truncation is the generator's concern; this is only for response payloads.
// The cut never splits a multibyte rune.
func previewContent(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
