package bootstrap

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/pmwiki/backend/internal/config"
	"github.com/pmwiki/backend/internal/core/ports"
	"github.com/pmwiki/backend/internal/core/usecase"
	"github.com/pmwiki/backend/internal/infrastructure/embedding/voyage"
	"github.com/pmwiki/backend/internal/infrastructure/llm/groq"
	"github.com/pmwiki/backend/internal/infrastructure/queue/nats"
	"github.com/pmwiki/backend/internal/infrastructure/repository/postgres"
	"github.com/pmwiki/backend/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    ports.EmbedJobQueue
	Sections ports.SectionReader
	Answers  ports.AnswerService
	EmbedUC  ports.EmbedProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSectionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init embed job queue: %w", err)
	}

	embedder := voyage.New(cfg.VoyageURL, cfg.VoyageAPIKey, cfg.VoyageModel, voyage.Options{
		Timeout: time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
		// One document batch per second keeps ingestion inside the
		// provider's token-per-minute budget.
		DocumentBatchRate: rate.Limit(1),
	})
	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		Timeout: time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
	})
	generator := groq.New(cfg.GroqURL, cfg.GroqAPIKey, cfg.GroqModel,
		time.Duration(cfg.GenerateTimeoutSeconds)*time.Second)

	ragUC := usecase.NewRAGUseCaseWithOptions(embedder, index, repo, generator, usecase.RAGOptions{
		PerStandardLimit: cfg.RAGPerStandardLimit,
		ScoreThreshold:   cfg.RAGScoreThreshold,
	})
	embedUC := usecase.NewEmbedSectionsUseCase(repo, embedder, index, cfg.VoyageModel, cfg.EmbedBatchSize)

	return &App{
		Config: cfg,

		Queue:    queue,
		Sections: repo,
		Answers:  ragUC,
		EmbedUC:  embedUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
