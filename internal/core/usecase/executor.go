package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
	"github.com/qinyuanle/legal-qa-engine/internal/core/ports"
)

const defaultPathTopK = 20

// MultiPathExecutor runs every selected path concurrently against the shared
// search index. One path's failure or timeout never aborts or delays its
// siblings; it simply contributes zero hits.
type MultiPathExecutor struct {
	index  ports.SearchIndex
	graphs *GraphProvider
	sink   ports.EventSink
	topK   int
}

func NewMultiPathExecutor(
	index ports.SearchIndex,
	graphs *GraphProvider,
	sink ports.EventSink,
	topK int,
) *MultiPathExecutor {
	if topK <= 0 {
		topK = defaultPathTopK
	}
	return &MultiPathExecutor{
		index:  index,
		graphs: graphs,
		sink:   sink,
		topK:   topK,
	}
}

// ExecutionResult carries the settled per-path hit lists plus outcome
// accounting for quorum. Partial results are first-class: a timed-out stage
// returns whatever had settled.
type ExecutionResult struct {
	HitsByPath map[domain.RetrievalPath][]domain.SearchHit
	Outcomes   []domain.PathOutcome
	Succeeded  int
}

type settledPath struct {
	path    domain.RetrievalPath
	hits    []domain.SearchHit
	err     error
	elapsed time.Duration
}

// Execute fans the plan's paths out and collects until all settle or the
// plan timeout elapses. Results arriving after the deadline are discarded,
// never fused.
func (e *MultiPathExecutor) Execute(
	ctx context.Context,
	requestID string,
	question string,
	cls *domain.ClassificationResult,
	plan domain.RetrievalPlan,
) ExecutionResult {
	out := ExecutionResult{
		HitsByPath: make(map[domain.RetrievalPath][]domain.SearchHit, len(plan.Paths)),
	}
	if len(plan.Paths) == 0 {
		return out
	}

	execCtx, cancel := context.WithTimeout(ctx, plan.Timeout)
	defer cancel()

	// Buffered so straggler goroutines can always send and exit after the
	// collector has given up on them.
	settled := make(chan settledPath, len(plan.Paths))
	for _, selected := range plan.Paths {
		go func(path domain.RetrievalPath) {
			start := time.Now()
			hits, err := e.runPath(execCtx, path, question, cls)
			settled <- settledPath{path: path, hits: hits, err: err, elapsed: time.Since(start)}
		}(selected.Path)
	}

	reported := make(map[domain.RetrievalPath]bool, len(plan.Paths))
	for range plan.Paths {
		select {
		case result := <-settled:
			reported[result.path] = true
			outcome := domain.PathOutcome{
				Path:    result.path,
				Hits:    len(result.hits),
				Elapsed: result.elapsed,
			}
			switch {
			case result.err == nil:
				out.HitsByPath[result.path] = result.hits
				out.Succeeded++
			case errors.Is(result.err, context.DeadlineExceeded):
				outcome.TimedOut = true
				outcome.Hits = 0
			default:
				outcome.Err = result.err.Error()
				outcome.Hits = 0
				slog.Warn("retrieval_path_failed",
					"request_id", requestID,
					"path", string(result.path),
					"error", result.err,
				)
			}
			out.Outcomes = append(out.Outcomes, outcome)
			e.publishPathEvent(ctx, requestID, outcome)
		case <-execCtx.Done():
			for _, selected := range plan.Paths {
				if reported[selected.Path] {
					continue
				}
				outcome := domain.PathOutcome{Path: selected.Path, TimedOut: true}
				out.Outcomes = append(out.Outcomes, outcome)
				e.publishPathEvent(ctx, requestID, outcome)
			}
			e.sortOutcomes(out.Outcomes)
			return out
		}
	}

	e.sortOutcomes(out.Outcomes)
	return out
}

func (e *MultiPathExecutor) sortOutcomes(outcomes []domain.PathOutcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return pathPosition(outcomes[i].Path) < pathPosition(outcomes[j].Path)
	})
}

func pathPosition(path domain.RetrievalPath) int {
	for i, candidate := range domain.CanonicalPathOrder {
		if candidate == path {
			return i
		}
	}
	return len(domain.CanonicalPathOrder)
}

// runPath issues one index request using the path's own query representation
// and stamps source path and local rank onto the returned hits.
func (e *MultiPathExecutor) runPath(
	ctx context.Context,
	path domain.RetrievalPath,
	question string,
	cls *domain.ClassificationResult,
) ([]domain.SearchHit, error) {
	var (
		hits []domain.SearchHit
		err  error
	)

	switch path {
	case domain.PathBasicSemantic:
		hits, err = e.index.Search(ctx, question, e.topK, true)
	case domain.PathQuery2Doc:
		variant := ""
		if cls != nil {
			variant = strings.TrimSpace(cls.Variants.Query2Doc)
		}
		if variant == "" {
			return nil, fmt.Errorf("query2doc variant is empty")
		}
		hits, err = e.index.Search(ctx, variant, e.topK, true)
	case domain.PathHyDE:
		variant := ""
		if cls != nil {
			variant = strings.TrimSpace(cls.Variants.HyDE)
		}
		if variant == "" {
			return nil, fmt.Errorf("hyde variant is empty")
		}
		hits, err = e.index.Search(ctx, variant, e.topK, true)
	case domain.PathBM25Hybrid:
		query := weightedKeywordQuery(cls)
		if query == "" {
			return nil, fmt.Errorf("weighted keywords are empty")
		}
		hits, err = e.index.HybridSearch(ctx, query, e.topK)
	case domain.PathKnowledgeGraph:
		hits, err = e.runKnowledgeGraphPath(ctx, question)
	default:
		return nil, fmt.Errorf("unknown retrieval path: %s", path)
	}
	if err != nil {
		return nil, err
	}

	for i := range hits {
		hits[i].SourcePath = path
		hits[i].LocalRank = i
	}
	return hits, nil
}

func (e *MultiPathExecutor) runKnowledgeGraphPath(ctx context.Context, question string) ([]domain.SearchHit, error) {
	graph, ok := e.graphs.Get()
	if !ok {
		return nil, domain.WrapError(domain.ErrRelationGraphUnavailable, "knowledge graph path", fmt.Errorf("no graph loaded"))
	}

	expansion := graph.ExpandQuery(question)
	query := question
	if len(expansion.Keywords) > 0 {
		query = question + " " + strings.Join(expansion.Keywords, " ")
	}
	return e.index.Search(ctx, query, e.topK, true)
}

// weightedKeywordQuery renders the classifier's keyword list as one query
// string, heaviest terms first.
func weightedKeywordQuery(cls *domain.ClassificationResult) string {
	if cls == nil || len(cls.WeightedKeywords) == 0 {
		return ""
	}
	keywords := make([]domain.WeightedKeyword, 0, len(cls.WeightedKeywords))
	for _, keyword := range cls.WeightedKeywords {
		if strings.TrimSpace(keyword.Term) != "" {
			keywords = append(keywords, keyword)
		}
	}
	sort.SliceStable(keywords, func(i, j int) bool {
		return keywords[i].Weight > keywords[j].Weight
	})
	terms := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		terms = append(terms, strings.TrimSpace(keyword.Term))
	}
	return strings.Join(terms, " ")
}

func (e *MultiPathExecutor) publishPathEvent(ctx context.Context, requestID string, outcome domain.PathOutcome) {
	if e.sink == nil {
		return
	}
	status := "ok"
	switch {
	case outcome.TimedOut:
		status = "timeout"
	case outcome.Err != "":
		status = "error"
	}
	event := domain.ProgressEvent{
		RequestID: requestID,
		Stage:     domain.EventStagePath,
		Path:      outcome.Path,
		Status:    status,
		Hits:      outcome.Hits,
		ElapsedMS: float64(outcome.Elapsed.Microseconds()) / 1000.0,
		Timestamp: time.Now().UTC(),
	}
	if err := e.sink.Publish(ctx, event); err != nil {
		slog.Debug("progress_publish_failed", "request_id", requestID, "error", err)
	}
}
