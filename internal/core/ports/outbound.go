package ports

import (
	"context"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

// SearchIndex is the shared external index every retrieval path queries.
type SearchIndex interface {
	Search(ctx context.Context, queryText string, topK int, includeContent bool) ([]domain.SearchHit, error)
	HybridSearch(ctx context.Context, queryText string, topK int) ([]domain.SearchHit, error)
	Health(ctx context.Context) (domain.IndexHealth, error)
}

// QueryClassifier produces the per-request classification/extraction result.
type QueryClassifier interface {
	Classify(ctx context.Context, question string) (*domain.ClassificationResult, error)
}

// AnswerGenerator creates the final user-facing answer from fused context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, articles, cases []domain.RankedResult) (string, error)
}

// Embedder builds query vectors for the index client.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EventSink publishes progress events best-effort. Implementations must be
// non-blocking; callers ignore the returned error beyond logging.
type EventSink interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}

// CaseRepository reads the labeled case corpus the extractor consumes and
// records build reports.
type CaseRepository interface {
	ListLabeledCases(ctx context.Context) ([]domain.LabeledCase, error)
	SaveBuildReport(ctx context.Context, report domain.GraphBuildReport) error
}

// GraphStore persists relation graph snapshots with a metadata sidecar.
type GraphStore interface {
	Save(ctx context.Context, snapshot domain.GraphSnapshot, meta domain.GraphMetadata) error
	Load(ctx context.Context) (domain.GraphSnapshot, domain.GraphMetadata, error)
	Metadata(ctx context.Context) (domain.GraphMetadata, error)
}

// RebuildTrigger connects the admin surface to the worker executing graph
// rebuilds.
type RebuildTrigger interface {
	PublishRebuildRequested(ctx context.Context, force bool) error
	SubscribeRebuildRequested(ctx context.Context, handler func(ctx context.Context, force bool) error) error
}
