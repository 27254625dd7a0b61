package ports

import (
	"context"
	"time"

	"github.com/pmwiki/backend/internal/core/domain"
)

// Embedder converts text into fixed-dimension vectors. Query and document
// embedding spaces are asymmetric and must not be conflated: queries go
// through EmbedQuery, corpus texts through EmbedDocuments.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex performs filtered nearest-neighbor search over section
// embeddings. Results are sorted by score descending, truncated at limit,
// and exclude anything below scoreThreshold. An empty result is not an
// error. Upsert is the ingestion write path, never called while serving.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64, filter domain.SearchFilter) ([]domain.RetrievalHit, error)
	Upsert(ctx context.Context, points []domain.SectionPoint) error
}

// SectionStore reads and maintains persisted section metadata. FetchByIDs is
// a single round trip; ids without a matching record are simply absent from
// the result, since the vector index and the store are eventually-consistent
// siblings.
type SectionStore interface {
	FetchByIDs(ctx context.Context, ids []string) (map[string]domain.Section, error)
	GetByID(ctx context.Context, id string) (*domain.Section, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]domain.Section, error)
	MarkEmbedded(ctx context.Context, ids []string, model string, at time.Time) error
}

// Completion is the generation provider's reply.
type Completion struct {
	Text         string
	Model        string
	Usage        domain.TokenUsage
	FinishReason string
}

// Generator wraps the text-generation provider, one method per fixed
// system-prompt template. The orchestrator calls exactly one of them once
// per user-facing request and never retries.
type Generator interface {
	GenerateCitationAnswer(ctx context.Context, query string, evidence domain.EvidenceBundle) (*Completion, error)
	GenerateComparison(ctx context.Context, topic string, sources map[domain.Standard][]domain.SourceRef) (*Completion, error)
	GenerateProcess(ctx context.Context, req domain.ProcessRequest, sections []domain.SourceRef) (*Completion, error)
}

// EmbedJobQueue carries embedding-batch requests from the API/loader to the
// ingestion worker.
type EmbedJobQueue interface {
	PublishEmbedRequested(ctx context.Context, batchID string) error
	SubscribeEmbedRequested(ctx context.Context, handler func(context.Context, string) error) error
}
