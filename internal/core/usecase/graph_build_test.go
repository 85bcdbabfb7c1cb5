package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

type memCaseRepo struct {
	cases   []domain.LabeledCase
	reports []domain.GraphBuildReport
}

func (m *memCaseRepo) ListLabeledCases(context.Context) ([]domain.LabeledCase, error) {
	return m.cases, nil
}

func (m *memCaseRepo) SaveBuildReport(_ context.Context, report domain.GraphBuildReport) error {
	m.reports = append(m.reports, report)
	return nil
}

type memGraphStore struct {
	snapshot domain.GraphSnapshot
	meta     domain.GraphMetadata
	saved    bool
}

func (m *memGraphStore) Save(_ context.Context, snapshot domain.GraphSnapshot, meta domain.GraphMetadata) error {
	m.snapshot = snapshot
	m.meta = meta
	m.saved = true
	return nil
}

func (m *memGraphStore) Load(context.Context) (domain.GraphSnapshot, domain.GraphMetadata, error) {
	if !m.saved {
		return domain.GraphSnapshot{}, domain.GraphMetadata{}, domain.WrapError(domain.ErrNotFound, "load snapshot", errors.New("no snapshot"))
	}
	return m.snapshot, m.meta, nil
}

func (m *memGraphStore) Metadata(context.Context) (domain.GraphMetadata, error) {
	if !m.saved {
		return domain.GraphMetadata{}, domain.WrapError(domain.ErrNotFound, "read metadata", errors.New("no snapshot"))
	}
	return m.meta, nil
}

func newTestBuilder(cases []domain.LabeledCase) (*GraphBuilder, *memCaseRepo, *memGraphStore, *GraphProvider) {
	repo := &memCaseRepo{cases: cases}
	store := &memGraphStore{}
	provider := NewGraphProvider()
	builder := NewGraphBuilder(repo, store, provider, domain.DefaultRelationRules(), domain.DefaultRelationScoring())
	return builder, repo, store, provider
}

func theftCorpus() []domain.LabeledCase {
	return []domain.LabeledCase{
		{ID: "c1", Accusations: []string{"盗窃罪"}, RelevantArticles: []int{264, 52}},
		{ID: "c2", Accusations: []string{"盗窃"}, RelevantArticles: []int{264}},
		{ID: "c3", Accusations: []string{"抢劫"}, RelevantArticles: []int{263, 300}},
	}
}

func TestRebuildProducesMirroredGraph(t *testing.T) {
	builder, repo, store, provider := newTestBuilder(theftCorpus())

	report, err := builder.Rebuild(context.Background(), false)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Skipped {
		t.Fatal("first build must not be skipped")
	}
	if report.Version != 1 {
		t.Fatalf("want version 1, got %d", report.Version)
	}
	// 盗窃→264 twice plus 抢劫→263. 盗窃→52 and 抢劫→300 fall outside
	// their whitelist windows.
	if report.RelationCount != 3 {
		t.Fatalf("want 3 accepted relations, got %d", report.RelationCount)
	}
	if report.FilteredCount != 2 {
		t.Fatalf("want 2 filtered pairs, got %d", report.FilteredCount)
	}
	if want := 3.0 / 5.0; report.Quality != want {
		t.Fatalf("want quality %v, got %v", want, report.Quality)
	}
	if !store.saved {
		t.Fatal("snapshot was not persisted")
	}
	if store.snapshot.CrimeArticleMapping["盗窃"][264] != 2 {
		t.Fatalf("unexpected crime→article mapping: %+v", store.snapshot.CrimeArticleMapping)
	}
	if store.snapshot.ArticleCrimeMapping[264]["盗窃"] != 2 {
		t.Fatalf("mirror missing: %+v", store.snapshot.ArticleCrimeMapping)
	}
	if len(repo.reports) != 1 {
		t.Fatalf("want 1 persisted report, got %d", len(repo.reports))
	}
	if _, ok := provider.Get(); !ok {
		t.Fatal("rebuild must swap the graph into the provider")
	}
}

func TestRebuildRejectsGeneralProvisions(t *testing.T) {
	cases := []domain.LabeledCase{
		{ID: "c1", Accusations: []string{"故意伤害"}, RelevantArticles: []int{234}},
	}
	for n := 1; n <= 20; n++ {
		cases[0].RelevantArticles = append(cases[0].RelevantArticles, n)
	}
	builder, _, store, _ := newTestBuilder(cases)

	report, err := builder.Rebuild(context.Background(), false)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.RelationCount != 1 || report.FilteredCount != 20 {
		t.Fatalf("want 1 relation and 20 filtered, got %d/%d", report.RelationCount, report.FilteredCount)
	}
	for n := 1; n <= 20; n++ {
		if _, ok := store.snapshot.ArticleCrimeMapping[n]; ok {
			t.Fatalf("general provision article %d must never be recorded", n)
		}
	}
}

func TestRebuildAppliesBlacklist(t *testing.T) {
	builder, _, store, _ := newTestBuilder([]domain.LabeledCase{
		{ID: "c1", Accusations: []string{"盗窃"}, RelevantArticles: []int{264, 265}},
	})
	builder.rules.Blacklist = []int{265}

	report, err := builder.Rebuild(context.Background(), false)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.RelationCount != 1 || report.FilteredCount != 1 {
		t.Fatalf("want 1 relation and 1 filtered, got %d/%d", report.RelationCount, report.FilteredCount)
	}
	if _, ok := store.snapshot.ArticleCrimeMapping[265]; ok {
		t.Fatal("blacklisted article must not be recorded")
	}
}

func TestRebuildSkipsUnchangedCorpus(t *testing.T) {
	builder, repo, _, _ := newTestBuilder(theftCorpus())

	first, err := builder.Rebuild(context.Background(), false)
	if err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	second, err := builder.Rebuild(context.Background(), false)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if !second.Skipped {
		t.Fatal("unchanged corpus must skip the rebuild")
	}
	if second.Version != first.Version {
		t.Fatalf("skip must keep version %d, got %d", first.Version, second.Version)
	}
	if len(repo.reports) != 1 {
		t.Fatalf("skipped rebuild must not persist a report, got %d", len(repo.reports))
	}

	forced, err := builder.Rebuild(context.Background(), true)
	if err != nil {
		t.Fatalf("forced rebuild: %v", err)
	}
	if forced.Skipped {
		t.Fatal("force must bypass the hash check")
	}
	if forced.Version != first.Version+1 {
		t.Fatalf("want version bump to %d, got %d", first.Version+1, forced.Version)
	}
}

func TestRebuildVersionAdvancesOnCorpusChange(t *testing.T) {
	builder, repo, _, _ := newTestBuilder(theftCorpus())
	if _, err := builder.Rebuild(context.Background(), false); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	repo.cases = append(repo.cases, domain.LabeledCase{
		ID: "c4", Accusations: []string{"诈骗"}, RelevantArticles: []int{266},
	})
	report, err := builder.Rebuild(context.Background(), false)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if report.Skipped {
		t.Fatal("changed corpus must rebuild")
	}
	if report.Version != 2 {
		t.Fatalf("want version 2, got %d", report.Version)
	}
}

func TestLoadFromStoreRoundTrip(t *testing.T) {
	builder, _, store, _ := newTestBuilder(theftCorpus())
	if _, err := builder.Rebuild(context.Background(), false); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	freshProvider := NewGraphProvider()
	fresh := NewGraphBuilder(&memCaseRepo{}, store, freshProvider, domain.DefaultRelationRules(), domain.DefaultRelationScoring())
	if err := fresh.LoadFromStore(context.Background()); err != nil {
		t.Fatalf("LoadFromStore: %v", err)
	}
	graph, ok := freshProvider.Get()
	if !ok {
		t.Fatal("loaded graph missing from provider")
	}
	related := graph.RelatedArticles("盗窃", 5)
	if len(related) == 0 || related[0].Article != 264 {
		t.Fatalf("loaded graph lookup failed: %+v", related)
	}
}

func TestLoadFromStoreMissingSnapshotIsNotAnError(t *testing.T) {
	builder, _, _, provider := newTestBuilder(nil)
	if err := builder.LoadFromStore(context.Background()); err != nil {
		t.Fatalf("missing snapshot must be tolerated: %v", err)
	}
	if _, ok := provider.Get(); ok {
		t.Fatal("no graph should be installed without a snapshot")
	}
}

func TestRebuildEmptyCorpusIsInvalidInput(t *testing.T) {
	builder, _, _, _ := newTestBuilder(nil)
	if _, err := builder.Rebuild(context.Background(), false); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestCorpusHashIgnoresRowOrder(t *testing.T) {
	forward := theftCorpus()
	reversed := []domain.LabeledCase{forward[2], forward[1], forward[0]}
	if corpusHash(forward) != corpusHash(reversed) {
		t.Fatal("corpus hash must be order independent")
	}
	changed := append([]domain.LabeledCase{}, forward...)
	changed[0].RelevantArticles = []int{263}
	if corpusHash(forward) == corpusHash(changed) {
		t.Fatal("corpus hash must reflect content changes")
	}
}
