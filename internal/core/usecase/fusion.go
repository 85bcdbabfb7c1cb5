package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

// FusionConfig parameterizes the weighted RRF variant. One engine instance
// serves every call site; the weight table is the only thing call sites vary.
type FusionConfig struct {
	RRFK              int
	PathWeights       map[domain.RetrievalPath]float64
	DefaultPathWeight float64
	SimilarityFactor  float64
	DiversityPenalty  float64
	ConsistencyBonus  float64
	DedupePrefixChars int
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		RRFK: 20,
		PathWeights: map[domain.RetrievalPath]float64{
			domain.PathKnowledgeGraph: 2.5,
			domain.PathQuery2Doc:      2.2,
			domain.PathHyDE:           2.2,
			domain.PathBM25Hybrid:     2.0,
			domain.PathBasicSemantic:  1.8,
		},
		DefaultPathWeight: 2.0,
		SimilarityFactor:  1.5,
		DiversityPenalty:  0.85,
		ConsistencyBonus:  0.3,
		DedupePrefixChars: 100,
	}
}

func (c FusionConfig) normalize() FusionConfig {
	def := DefaultFusionConfig()
	if c.RRFK <= 0 {
		c.RRFK = def.RRFK
	}
	if len(c.PathWeights) == 0 {
		c.PathWeights = def.PathWeights
	}
	if c.DefaultPathWeight <= 0 {
		c.DefaultPathWeight = def.DefaultPathWeight
	}
	if c.SimilarityFactor <= 0 {
		c.SimilarityFactor = def.SimilarityFactor
	}
	if c.DiversityPenalty <= 0 || c.DiversityPenalty > 1 {
		c.DiversityPenalty = def.DiversityPenalty
	}
	if c.ConsistencyBonus < 0 {
		c.ConsistencyBonus = def.ConsistencyBonus
	}
	if c.DedupePrefixChars <= 0 {
		c.DedupePrefixChars = def.DedupePrefixChars
	}
	return c
}

// FusionEngine merges per-path ranked hit lists into one top-N list per
// document type. Identical inputs always yield identical output ordering and
// scores: paths are processed in canonical order and ties on aggregate score
// break by ascending doc id.
type FusionEngine struct {
	cfg FusionConfig
}

func NewFusionEngine(cfg FusionConfig) *FusionEngine {
	return &FusionEngine{cfg: cfg.normalize()}
}

type fusionRecord struct {
	best  domain.SearchHit
	score float64
	paths map[domain.RetrievalPath]struct{}
}

// Fuse merges all paths' hits of one document type. Per hit at 0-indexed
// local rank r within its path's type-filtered list:
//
//	contribution = 1/(k+r+1) * pathWeight * (1 + rawSimilarity*factor) * diversityPenalty
//
// where the penalty applies only to repeats of already-seen normalized
// content prefixes. Documents touched by P>1 paths get a consistency bonus
// of (1 + bonus*(P-1)) on the aggregate.
func (e *FusionEngine) Fuse(
	hitsByPath map[domain.RetrievalPath][]domain.SearchHit,
	docType domain.DocType,
	topN int,
) []domain.RankedResult {
	if len(hitsByPath) == 0 {
		return nil
	}

	records := make(map[string]*fusionRecord)
	order := make([]string, 0, 16)
	seenContent := make(map[string]struct{})

	for _, path := range domain.CanonicalPathOrder {
		hits := hitsByPath[path]
		if len(hits) == 0 {
			continue
		}
		weight := e.pathWeight(path)

		localRank := 0
		for _, hit := range hits {
			if hit.DocType != docType || hit.DocID == "" {
				continue
			}
			rank := localRank
			localRank++

			baseRRF := 1.0 / float64(e.cfg.RRFK+rank+1)
			weighted := baseRRF * weight * (1.0 + clamp01(hit.RawSimilarity)*e.cfg.SimilarityFactor)

			penalty := 1.0
			if key := e.contentKey(hit.Content); key != "" {
				if _, dup := seenContent[key]; dup {
					penalty = e.cfg.DiversityPenalty
				} else {
					seenContent[key] = struct{}{}
				}
			}

			record, ok := records[hit.DocID]
			if !ok {
				record = &fusionRecord{paths: make(map[domain.RetrievalPath]struct{})}
				records[hit.DocID] = record
				order = append(order, hit.DocID)
			}
			record.score += weighted * penalty
			record.paths[path] = struct{}{}
			record.best = preferRicherHit(record.best, hit)
		}
	}

	out := make([]domain.RankedResult, 0, len(order))
	for _, docID := range order {
		record := records[docID]
		if contributing := len(record.paths); contributing > 1 {
			record.score *= 1.0 + e.cfg.ConsistencyBonus*float64(contributing-1)
		}
		out = append(out, domain.RankedResult{
			DocID:        docID,
			DocType:      docType,
			Title:        record.best.Title,
			Content:      record.best.Content,
			Score:        record.score,
			DisplayScore: displayScore(record.score),
			Paths:        sortedPaths(record.paths),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func (e *FusionEngine) pathWeight(path domain.RetrievalPath) float64 {
	if weight, ok := e.cfg.PathWeights[path]; ok {
		return weight
	}
	return e.cfg.DefaultPathWeight
}

// contentKey normalizes the first N characters of hit content so near-exact
// duplicates across paths can be recognized within one fusion pass.
func (e *FusionEngine) contentKey(content string) string {
	content = strings.ToLower(strings.Join(strings.Fields(content), " "))
	if content == "" {
		return ""
	}
	runes := []rune(content)
	if len(runes) > e.cfg.DedupePrefixChars {
		runes = runes[:e.cfg.DedupePrefixChars]
	}
	return string(runes)
}

func preferRicherHit(current, candidate domain.SearchHit) domain.SearchHit {
	if current.DocID == "" {
		return candidate
	}
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if candidate.RawSimilarity > current.RawSimilarity {
		current.RawSimilarity = candidate.RawSimilarity
	}
	return current
}

func sortedPaths(set map[domain.RetrievalPath]struct{}) []domain.RetrievalPath {
	out := make([]domain.RetrievalPath, 0, len(set))
	for _, path := range domain.CanonicalPathOrder {
		if _, ok := set[path]; ok {
			out = append(out, path)
		}
	}
	return out
}

// displayScore scales the raw aggregate into a bounded UI value with one
// decimal. It is not a probability.
func displayScore(score float64) float64 {
	scaled := math.Max(score, 0.001) * 100
	if scaled > 100 {
		scaled = 100
	}
	return math.Round(scaled*10) / 10
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
