package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
	"github.com/qinyuanle/legal-qa-engine/internal/core/ports"
)

// GraphBuilder runs the offline extraction pass: load the labeled corpus,
// derive the crime↔article co-occurrence graph, persist the snapshot and
// swap it into the live provider. Rebuilds against an unchanged corpus are
// skipped unless forced.
type GraphBuilder struct {
	cases   ports.CaseRepository
	store   ports.GraphStore
	graphs  *GraphProvider
	rules   domain.RelationRules
	scoring domain.RelationScoring
}

func NewGraphBuilder(
	cases ports.CaseRepository,
	store ports.GraphStore,
	graphs *GraphProvider,
	rules domain.RelationRules,
	scoring domain.RelationScoring,
) *GraphBuilder {
	return &GraphBuilder{
		cases:   cases,
		store:   store,
		graphs:  graphs,
		rules:   rules,
		scoring: scoring,
	}
}

func (b *GraphBuilder) Rebuild(ctx context.Context, force bool) (domain.GraphBuildReport, error) {
	start := time.Now().UTC()

	labeled, err := b.cases.ListLabeledCases(ctx)
	if err != nil {
		return domain.GraphBuildReport{}, domain.WrapError(domain.ErrTemporary, "list labeled cases", err)
	}
	if len(labeled) == 0 {
		return domain.GraphBuildReport{}, domain.WrapError(domain.ErrInvalidInput, "rebuild graph", fmt.Errorf("labeled corpus is empty"))
	}

	hash := corpusHash(labeled)
	previous, err := b.store.Metadata(ctx)
	if err == nil && previous.DataHash == hash && !force {
		slog.Info("graph_rebuild_skipped", "data_hash", hash, "version", previous.Version)
		return domain.GraphBuildReport{
			Skipped:   true,
			Version:   previous.Version,
			CaseCount: len(labeled),
			Crimes:    previous.Crimes,
			Articles:  previous.Articles,
			DataHash:  hash,
			BuiltAt:   previous.CreatedAt,
		}, nil
	}

	crimeArticles, articleCrimes, relations, filtered := b.extractRelations(labeled)

	summary := domain.ExtractionSummary{
		RelationCount: relations,
		FilteredCount: filtered,
		Quality:       extractionQuality(relations, filtered),
		CaseCount:     len(labeled),
	}
	graph := domain.NewRelationGraph(crimeArticles, articleCrimes, b.scoring, summary, start)
	if err := graph.Validate(); err != nil {
		return domain.GraphBuildReport{}, domain.WrapError(domain.ErrRelationGraphUnavailable, "validate graph", err)
	}

	meta := domain.GraphMetadata{
		Version:   previous.Version + 1,
		CreatedAt: start,
		Crimes:    len(crimeArticles),
		Articles:  len(articleCrimes),
		Relations: relations,
		DataHash:  hash,
	}
	if err := b.store.Save(ctx, graph.Snapshot(), meta); err != nil {
		return domain.GraphBuildReport{}, domain.WrapError(domain.ErrTemporary, "save graph snapshot", err)
	}

	b.graphs.Replace(graph)

	report := domain.GraphBuildReport{
		Version:       meta.Version,
		CaseCount:     len(labeled),
		RelationCount: relations,
		FilteredCount: filtered,
		Quality:       summary.Quality,
		Crimes:        meta.Crimes,
		Articles:      meta.Articles,
		DataHash:      hash,
		BuiltAt:       start,
	}
	if err := b.cases.SaveBuildReport(ctx, report); err != nil {
		slog.Warn("graph_build_report_not_persisted", "error", err)
	}
	slog.Info("graph_rebuilt",
		"version", meta.Version,
		"cases", len(labeled),
		"relations", relations,
		"filtered", filtered,
		"quality", summary.Quality,
		"elapsed", time.Since(start),
	)
	return report, nil
}

// LoadFromStore hydrates the provider from the last persisted snapshot. A
// missing snapshot is not an error; retrieval runs without the knowledge
// graph path until the first rebuild completes.
func (b *GraphBuilder) LoadFromStore(ctx context.Context) error {
	snapshot, meta, err := b.store.Load(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			slog.Info("graph_snapshot_absent")
			return nil
		}
		return domain.WrapError(domain.ErrRelationGraphUnavailable, "load graph snapshot", err)
	}
	graph := domain.NewRelationGraph(
		snapshot.CrimeArticleMapping,
		snapshot.ArticleCrimeMapping,
		b.scoring,
		snapshot.ExtractionSummary,
		meta.CreatedAt,
	)
	if err := graph.Validate(); err != nil {
		return domain.WrapError(domain.ErrRelationGraphUnavailable, "validate loaded graph", err)
	}
	b.graphs.Replace(graph)
	slog.Info("graph_loaded", "version", meta.Version, "crimes", meta.Crimes, "articles", meta.Articles)
	return nil
}

// extractRelations folds the corpus into mirrored co-occurrence maps. Every
// (accusation, article) pair in a case either passes the rules and increments
// both directions or counts as filtered.
func (b *GraphBuilder) extractRelations(labeled []domain.LabeledCase) (map[string]map[int]int, map[int]map[string]int, int, int) {
	crimeArticles := make(map[string]map[int]int)
	articleCrimes := make(map[int]map[string]int)
	relations := 0
	filtered := 0

	for _, c := range labeled {
		for _, accusation := range c.Accusations {
			crime := domain.NormalizeCrime(accusation)
			if crime == "" {
				continue
			}
			for _, article := range c.RelevantArticles {
				if !b.rules.AcceptRelation(crime, article) {
					filtered++
					continue
				}
				if crimeArticles[crime] == nil {
					crimeArticles[crime] = make(map[int]int)
				}
				if articleCrimes[article] == nil {
					articleCrimes[article] = make(map[string]int)
				}
				crimeArticles[crime][article]++
				articleCrimes[article][crime]++
				relations++
			}
		}
	}
	return crimeArticles, articleCrimes, relations, filtered
}

func extractionQuality(relations, filtered int) float64 {
	total := relations + filtered
	if total == 0 {
		return 0
	}
	return float64(relations) / float64(total)
}

// corpusHash fingerprints the labeled corpus independent of row order.
func corpusHash(labeled []domain.LabeledCase) string {
	lines := make([]string, 0, len(labeled))
	for _, c := range labeled {
		lines = append(lines, fmt.Sprintf("%s|%v|%v", c.ID, c.Accusations, c.RelevantArticles))
	}
	sort.Strings(lines)
	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
