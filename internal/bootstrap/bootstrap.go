package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qinyuanle/legal-qa-engine/internal/config"
	"github.com/qinyuanle/legal-qa-engine/internal/core/ports"
	"github.com/qinyuanle/legal-qa-engine/internal/core/usecase"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/index/qdrant"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/llm/ollama"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/queue/nats"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/repository/postgres"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/resilience"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/rules"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Questions ports.LegalQuestionService
	Admin     ports.GraphAdminService
	Index     ports.SearchIndex
	Builder   *usecase.GraphBuilder
	Bus       *nats.Bus

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewCaseRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	store, err := localfs.New(cfg.GraphStorePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init graph store: %w", err)
	}

	relationRules, scoring, err := rules.Load(cfg.RulesPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load relation rules: %w", err)
	}

	bus, err := nats.New(cfg.NATSURL, cfg.NATSEventsSubject, cfg.NATSRebuildSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message bus: %w", err)
	}

	runner := resilience.NewRunner(resilience.DefaultPolicy())
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, runner)
	classifier := ollama.NewClassifier(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)
	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder, runner)

	graphs := usecase.NewGraphProvider()
	builder := usecase.NewGraphBuilder(repo, store, graphs, relationRules, scoring)
	if err := builder.LoadFromStore(ctx); err != nil {
		// A corrupt or unreadable snapshot degrades graph paths until the
		// next rebuild; it must not keep the process from starting.
		slog.Warn("graph_snapshot_load_failed", "error", err)
	}

	var generator ports.AnswerGenerator
	if cfg.GenerationEnabled {
		generator = ollama.NewGenerator(ollamaClient)
	}

	pathTimeout := time.Duration(cfg.PathTimeoutSeconds) * time.Second
	executor := usecase.NewMultiPathExecutor(index, graphs, bus, cfg.PathTopK)
	pipeline := usecase.NewRetrievalPipeline(
		classifier,
		usecase.NewRouter(pathTimeout),
		executor,
		usecase.NewFusionEngine(usecase.DefaultFusionConfig()),
		generator,
		bus,
		cfg.FusionTopN,
	)
	admin := usecase.NewGraphAdminUseCase(graphs, builder, bus)

	return &App{
		Config: cfg,

		Questions: pipeline,
		Admin:     admin,
		Index:     index,
		Builder:   builder,
		Bus:       bus,

		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
