package app

import (
	"context"
	"fmt"
	"time"

	"github.com/corpora-app/corpora/internal/config"
	"github.com/corpora-app/corpora/internal/core"
	db "github.com/corpora-app/corpora/internal/core/database"
	"github.com/corpora-app/corpora/internal/core/llm"
	"github.com/corpora-app/corpora/internal/core/objectstore"
	"github.com/corpora-app/corpora/internal/extract"
	"github.com/corpora-app/corpora/internal/ingest"
	"github.com/corpora-app/corpora/internal/registry"
	"github.com/corpora-app/corpora/internal/search"
	"github.com/corpora-app/corpora/pkg/logging"
)

// App wires the storage, provider and service layers together.
type App struct {
	DBClient core.DbClient
	Blobs    core.ObjectClient
	Ingestor ingest.Ingestor
	Server   *Server

	embedder *llm.GeminiEmbedder
	logger   *logging.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewLogger("app")

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and ready")

	blobs, err := objectstore.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("object storage initialized and ready")

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	extractor := extract.NewExtractor(cfg.FetchTimeout)
	reg := registry.NewService(dbClient, blobs)

	ingestor := ingest.NewDocumentIngestor(dbClient, blobs, embedder, extractor, reg, &ingest.Config{
		BatchSize:    cfg.EmbedBatchSize,
		MaxRetries:   cfg.EmbedMaxRetries,
		EmbedTimeout: cfg.EmbedTimeout,
		QueueSize:    cfg.IngestQueueSize,
	})
	ingestor.Start(ctx, cfg.IngestWorkers)

	searcher := search.NewService(dbClient, embedder)

	server := NewServer(cfg, reg, blobs, ingestor, searcher)

	return &App{
		DBClient: dbClient,
		Blobs:    blobs,
		Ingestor: ingestor,
		Server:   server,
		embedder: embedder,
		logger:   logger,
	}, nil
}

func (a *App) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
