package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pmwiki/backend/internal/core/domain"
	"github.com/pmwiki/backend/internal/core/ports"
)

// EmbedSectionsUseCase is the ingestion write path: it embeds sections that
// do not yet have vectors and upserts them into the index. It never runs in
// the serving path.
type EmbedSectionsUseCase struct {
	store     ports.SectionStore
	embedder  ports.Embedder
	index     ports.VectorIndex
	model     string
	batchSize int
}

func NewEmbedSectionsUseCase(
	store ports.SectionStore,
	embedder ports.Embedder,
	index ports.VectorIndex,
	model string,
	batchSize int,
) *EmbedSectionsUseCase {
	if batchSize <= 0 {
		batchSize = 128
	}
	return &EmbedSectionsUseCase{
		store:     store,
		embedder:  embedder,
		index:     index,
		model:     model,
		batchSize: batchSize,
	}
}

// ProcessBatch embeds the next batch of sections missing embeddings and
// returns how many were indexed. An empty batch is not an error.
func (uc *EmbedSectionsUseCase) ProcessBatch(ctx context.Context, batchID string) (int, error) {
	sections, err := uc.store.ListMissingEmbeddings(ctx, uc.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list sections missing embeddings: %w", err)
	}
	if len(sections) == 0 {
		return 0, nil
	}

	texts := make([]string, len(sections))
	for i, section := range sections {
		texts[i] = embeddingText(section)
	}

	vectors, err := uc.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch %s: %w", batchID, err)
	}
	if len(vectors) != len(sections) {
		return 0, fmt.Errorf("embed batch %s: got %d vectors for %d sections", batchID, len(vectors), len(sections))
	}

	points := make([]domain.SectionPoint, len(sections))
	ids := make([]string, len(sections))
	for i, section := range sections {
		points[i] = domain.SectionPoint{
			ID:            section.ID,
			Vector:        vectors[i],
			Standard:      section.Standard,
			SectionNumber: section.SectionNumber,
			PageStart:     section.PageStart,
			CitationKey:   section.CitationKey,
		}
		ids[i] = section.ID
	}

	if err := uc.index.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert batch %s: %w", batchID, err)
	}

	if err := uc.store.MarkEmbedded(ctx, ids, uc.model, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("mark embedded batch %s: %w", batchID, err)
	}
	return len(sections), nil
}

// embeddingText prefixes the cleaned content with its citation metadata so
// retrieval can match on standard and section identifiers, not just prose.
func embeddingText(section domain.Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Standard: %s\n", section.Standard)
	fmt.Fprintf(&b, "Section: %s - %s\n", section.SectionNumber, section.SectionTitle)
	fmt.Fprintf(&b, "Page: %d\n\n", section.PageStart)
	b.WriteString("Content: ")
	b.WriteString(section.Content)
	return b.String()
}
