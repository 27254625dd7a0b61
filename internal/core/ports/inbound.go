package ports

import (
	"context"

	"github.com/pmwiki/backend/internal/core/domain"
)

// AnswerService is the inbound contract for the three RAG retrieval modes.
type AnswerService interface {
	AnswerWithCitations(ctx context.Context, query string, perStandardLimit int, scoreThreshold float64) (*domain.GeneratedAnswer, error)
	CompareTopic(ctx context.Context, topic string, perStandardLimit int, scoreThreshold float64) (*domain.ComparisonResult, error)
	GenerateProcess(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResult, error)
}

// SectionReader is the inbound read model for section metadata.
type SectionReader interface {
	GetByID(ctx context.Context, id string) (*domain.Section, error)
}

// EmbedProcessor is the inbound contract for asynchronous embedding batches.
type EmbedProcessor interface {
	ProcessBatch(ctx context.Context, batchID string) (int, error)
}
