package usecase

import (
	"context"
	"testing"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

type recordingTrigger struct {
	published []bool
	err       error
}

func (r *recordingTrigger) PublishRebuildRequested(_ context.Context, force bool) error {
	if r.err != nil {
		return r.err
	}
	r.published = append(r.published, force)
	return nil
}

func (r *recordingTrigger) SubscribeRebuildRequested(context.Context, func(context.Context, bool) error) error {
	return nil
}

func TestAdminReadsRequireLoadedGraph(t *testing.T) {
	admin := NewGraphAdminUseCase(NewGraphProvider(), nil, nil)
	ctx := context.Background()

	if _, err := admin.Stats(ctx); !domain.IsKind(err, domain.ErrRelationGraphUnavailable) {
		t.Fatalf("Stats: want ErrRelationGraphUnavailable, got %v", err)
	}
	if _, err := admin.Export(ctx); !domain.IsKind(err, domain.ErrRelationGraphUnavailable) {
		t.Fatalf("Export: want ErrRelationGraphUnavailable, got %v", err)
	}
	if _, err := admin.Expand(ctx, "盗窃"); !domain.IsKind(err, domain.ErrRelationGraphUnavailable) {
		t.Fatalf("Expand: want ErrRelationGraphUnavailable, got %v", err)
	}
}

func TestAdminExpandValidatesInput(t *testing.T) {
	admin := NewGraphAdminUseCase(seededProviderForPipeline(), nil, nil)
	if _, err := admin.Expand(context.Background(), "  "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestAdminExpandUsesLiveGraph(t *testing.T) {
	admin := NewGraphAdminUseCase(seededProviderForPipeline(), nil, nil)
	expansion, err := admin.Expand(context.Background(), "盗窃怎么判")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	found := false
	for _, kw := range expansion.Keywords {
		if kw == "第264条" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want 第264条 in expansion keywords, got %+v", expansion.Keywords)
	}
}

func TestAdminRelationDetailsValidatesInput(t *testing.T) {
	admin := NewGraphAdminUseCase(seededProviderForPipeline(), nil, nil)
	if _, err := admin.RelationDetails(context.Background(), "", 264); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("empty crime: want ErrInvalidInput, got %v", err)
	}
	if _, err := admin.RelationDetails(context.Background(), "盗窃", 0); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("zero article: want ErrInvalidInput, got %v", err)
	}
}

func TestAdminRequestRebuildPublishes(t *testing.T) {
	trigger := &recordingTrigger{}
	admin := NewGraphAdminUseCase(NewGraphProvider(), nil, trigger)

	if err := admin.RequestRebuild(context.Background(), true); err != nil {
		t.Fatalf("RequestRebuild: %v", err)
	}
	if len(trigger.published) != 1 || !trigger.published[0] {
		t.Fatalf("want one forced publish, got %+v", trigger.published)
	}
}

func TestAdminRebuildDelegatesToBuilder(t *testing.T) {
	builder, _, _, provider := newTestBuilder(theftCorpus())
	admin := NewGraphAdminUseCase(provider, builder, nil)

	report, err := admin.Rebuild(context.Background(), false)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Version != 1 {
		t.Fatalf("want version 1, got %d", report.Version)
	}
	stats, err := admin.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats after rebuild: %v", err)
	}
	if stats.Crimes == 0 {
		t.Fatalf("want populated stats, got %+v", stats)
	}
}
