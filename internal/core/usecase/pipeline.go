package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
	"github.com/qinyuanle/legal-qa-engine/internal/core/ports"
)

const defaultFusionTopN = 10

// RetrievalPipeline sequences classify → route → execute → fuse for one
// request and assembles the outward payload. Partial degradation is never an
// error; only malformed input raises.
type RetrievalPipeline struct {
	classifier ports.QueryClassifier
	router     *Router
	executor   *MultiPathExecutor
	fusion     *FusionEngine
	generator  ports.AnswerGenerator
	sink       ports.EventSink
	topN       int
}

func NewRetrievalPipeline(
	classifier ports.QueryClassifier,
	router *Router,
	executor *MultiPathExecutor,
	fusion *FusionEngine,
	generator ports.AnswerGenerator,
	sink ports.EventSink,
	topN int,
) *RetrievalPipeline {
	if topN <= 0 {
		topN = defaultFusionTopN
	}
	return &RetrievalPipeline{
		classifier: classifier,
		router:     router,
		executor:   executor,
		fusion:     fusion,
		generator:  generator,
		sink:       sink,
		topN:       topN,
	}
}

func (p *RetrievalPipeline) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", fmt.Errorf("question is required"))
	}

	requestID := uuid.NewString()
	start := time.Now()

	cls := p.classify(ctx, requestID, question)

	plan := p.router.BuildPlan(cls)
	p.publish(ctx, domain.ProgressEvent{
		RequestID: requestID,
		Stage:     domain.EventStagePlanned,
		Detail:    planSummary(plan),
		Timestamp: time.Now().UTC(),
	})

	execution := p.executor.Execute(ctx, requestID, question, cls, plan)

	articles := p.fusion.Fuse(execution.HitsByPath, domain.DocTypeArticle, p.topN)
	cases := p.fusion.Fuse(execution.HitsByPath, domain.DocTypeCase, p.topN)

	answer := &domain.Answer{
		RequestID: requestID,
		Question:  question,
		Articles:  articles,
		Cases:     cases,
		Degraded:  execution.Succeeded < plan.MinimumQuorum,
		Outcomes:  execution.Outcomes,
	}
	if answer.Degraded {
		slog.Warn("retrieval_quorum_not_met",
			"request_id", requestID,
			"succeeded", execution.Succeeded,
			"quorum", plan.MinimumQuorum,
		)
	}

	p.generate(ctx, requestID, answer)

	p.publish(ctx, domain.ProgressEvent{
		RequestID: requestID,
		Stage:     domain.EventStageFused,
		Hits:      len(articles) + len(cases),
		Status:    fusedStatus(answer.Degraded),
		ElapsedMS: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp: time.Now().UTC(),
	})
	return answer, nil
}

// classify is best-effort: an unavailable or unparsable classification stage
// degrades routing to the semantic baseline instead of failing the request.
func (p *RetrievalPipeline) classify(ctx context.Context, requestID, question string) *domain.ClassificationResult {
	if p.classifier == nil {
		return nil
	}
	cls, err := p.classifier.Classify(ctx, question)
	if err != nil {
		slog.Warn("classification_unavailable",
			"request_id", requestID,
			"error", err,
		)
		return nil
	}
	p.publish(ctx, domain.ProgressEvent{
		RequestID: requestID,
		Stage:     domain.EventStageClassified,
		Detail:    classificationSummary(cls),
		Timestamp: time.Now().UTC(),
	})
	return cls
}

// generate produces the user-facing answer text from fused context. Failures
// leave the ranked lists intact; generation is not part of the core contract.
func (p *RetrievalPipeline) generate(ctx context.Context, requestID string, answer *domain.Answer) {
	if p.generator == nil || len(answer.Articles)+len(answer.Cases) == 0 {
		return
	}
	text, err := p.generator.GenerateAnswer(ctx, answer.Question, answer.Articles, answer.Cases)
	if err != nil {
		slog.Warn("answer_generation_failed", "request_id", requestID, "error", err)
		return
	}
	answer.Text = strings.TrimSpace(text)
}

func (p *RetrievalPipeline) publish(ctx context.Context, event domain.ProgressEvent) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, event); err != nil {
		slog.Debug("progress_publish_failed", "request_id", event.RequestID, "error", err)
	}
}

func planSummary(plan domain.RetrievalPlan) string {
	names := make([]string, 0, len(plan.Paths))
	for _, selected := range plan.Paths {
		names = append(names, string(selected.Path))
	}
	return fmt.Sprintf("paths=%s quorum=%d", strings.Join(names, ","), plan.MinimumQuorum)
}

func classificationSummary(cls *domain.ClassificationResult) string {
	if cls == nil {
		return "none"
	}
	return fmt.Sprintf("legal=%t crimes=%d keywords=%d", cls.IsLegalDomain, len(cls.IdentifiedCrimes), len(cls.WeightedKeywords))
}

func fusedStatus(degraded bool) string {
	if degraded {
		return "degraded"
	}
	return "ok"
}
