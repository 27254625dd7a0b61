package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pmwiki/backend/internal/core/domain"
)

func TestProcessBatchEmbedsAndMarks(t *testing.T) {
	store := &storeFake{pending: []domain.Section{
		testSection("pm-1", domain.StandardPMBOK, "2.1", 40, 0),
		testSection("pr-1", domain.StandardPRINCE2, "5.1", 70, 0),
	}}
	index := &indexFake{}
	uc := NewEmbedSectionsUseCase(store, &embedderFake{}, index, "voyage-3-large", 128)

	count, err := uc.ProcessBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 sections embedded, got %d", count)
	}

	if len(index.upserted) != 2 {
		t.Fatalf("expected 2 points upserted, got %d", len(index.upserted))
	}
	if index.upserted[0].ID != "pm-1" || index.upserted[0].Standard != domain.StandardPMBOK {
		t.Fatalf("unexpected first point %+v", index.upserted[0])
	}
	if index.upserted[0].SectionNumber != "2.1" || index.upserted[0].PageStart != 40 {
		t.Fatalf("payload fields not carried: %+v", index.upserted[0])
	}

	if len(store.marked) != 2 || store.marked[0] != "pm-1" || store.marked[1] != "pr-1" {
		t.Fatalf("expected both sections marked embedded, got %v", store.marked)
	}
	if store.model != "voyage-3-large" {
		t.Fatalf("expected embedding model recorded, got %q", store.model)
	}
}

func TestProcessBatchEmptyBatch(t *testing.T) {
	uc := NewEmbedSectionsUseCase(&storeFake{}, &embedderFake{}, &indexFake{}, "voyage-3-large", 128)

	count, err := uc.ProcessBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty batch, got %d", count)
	}
}

func TestProcessBatchEmbedFailure(t *testing.T) {
	store := &storeFake{pending: []domain.Section{
		testSection("pm-1", domain.StandardPMBOK, "2.1", 40, 0),
	}}
	embedErr := domain.WrapError(domain.ErrEmbeddingUnavailable, "embed documents", errors.New("429"))
	uc := NewEmbedSectionsUseCase(store, &embedderFake{err: embedErr}, &indexFake{}, "voyage-3-large", 128)

	_, err := uc.ProcessBatch(context.Background(), "batch-1")
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding unavailable, got %v", err)
	}
}

func TestEmbeddingTextCarriesCitationMetadata(t *testing.T) {
	section := testSection("pm-1", domain.StandardPMBOK, "2.8.5", 122, 0)
	text := embeddingText(section)

	for _, want := range []string{
		"Standard: PMBOK",
		"Section: 2.8.5 - Title 2.8.5",
		"Page: 122",
		"Content: content of section 2.8.5",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("embedding text missing %q:\n%s", want, text)
		}
	}
}
