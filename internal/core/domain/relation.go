package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ConfidenceBoost upscales raw co-occurrence ratios for sparse relations so
// they are not outranked by high-volume common relations. Thresholds are
// checked in order; the first matching entry applies.
type ConfidenceBoost struct {
	MaxCount   int     `json:"max_count" yaml:"max_count"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	Cap        float64 `json:"cap" yaml:"cap"`
}

// RelationScoring carries the heuristic inclusion and boosting constants for
// graph lookups. The crime→article and article→crime curves differ on
// purpose; both are preserved as tunable configuration rather than unified.
type RelationScoring struct {
	SparseAnyMaxCases int               `json:"sparse_any_max_cases" yaml:"sparse_any_max_cases"`
	SparseMaxCases    int               `json:"sparse_max_cases" yaml:"sparse_max_cases"`
	SparseMinConf     float64           `json:"sparse_min_confidence" yaml:"sparse_min_confidence"`
	DenseMinConf      float64           `json:"dense_min_confidence" yaml:"dense_min_confidence"`
	DenseMinCount     int               `json:"dense_min_count" yaml:"dense_min_count"`
	CrimeBoosts       []ConfidenceBoost `json:"crime_boosts" yaml:"crime_boosts"`
	PairBoosts        []ConfidenceBoost `json:"pair_boosts" yaml:"pair_boosts"`
}

func DefaultRelationScoring() RelationScoring {
	return RelationScoring{
		SparseAnyMaxCases: 5,
		SparseMaxCases:    20,
		SparseMinConf:     0.02,
		DenseMinConf:      0.05,
		DenseMinCount:     2,
		CrimeBoosts: []ConfidenceBoost{
			{MaxCount: 3, Multiplier: 3.0, Cap: 0.95},
			{MaxCount: 10, Multiplier: 2.0, Cap: 0.85},
			{MaxCount: 20, Multiplier: 1.5, Cap: 0.75},
		},
		PairBoosts: []ConfidenceBoost{
			{MaxCount: 1, Multiplier: 2.5, Cap: 0.75},
			{MaxCount: 3, Multiplier: 2.0, Cap: 0.70},
			{MaxCount: 10, Multiplier: 1.5, Cap: 0.65},
		},
	}
}

func applyBoost(confidence float64, count int, boosts []ConfidenceBoost) float64 {
	for _, boost := range boosts {
		if count <= boost.MaxCount {
			boosted := confidence * boost.Multiplier
			if boosted > boost.Cap {
				boosted = boost.Cap
			}
			return boosted
		}
	}
	return confidence
}

type RelatedArticle struct {
	Article    int     `json:"article"`
	CaseCount  int     `json:"case_count"`
	Confidence float64 `json:"confidence"`
	Level      string  `json:"level"`
}

type RelatedCrime struct {
	Crime      string  `json:"crime"`
	CaseCount  int     `json:"case_count"`
	Confidence float64 `json:"confidence"`
	Level      string  `json:"level"`
}

type RelationDetail struct {
	CaseCount  int     `json:"case_count"`
	Confidence float64 `json:"confidence"`
	Exists     bool    `json:"exists"`
}

// QueryExpansion is the result of detecting crimes/articles in free text and
// expanding them through the graph.
type QueryExpansion struct {
	Crimes      []string `json:"crimes,omitempty"`
	Articles    []int    `json:"articles,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type RelationRow struct {
	Crime      string  `json:"crime"`
	Article    int     `json:"article"`
	CaseCount  int     `json:"case_count"`
	Confidence float64 `json:"confidence"`
}

type GraphStats struct {
	Crimes    int       `json:"crimes"`
	Articles  int       `json:"articles"`
	Relations int       `json:"relations"`
	Cases     int       `json:"cases"`
	Quality   float64   `json:"quality"`
	BuiltAt   time.Time `json:"built_at"`
}

type ExtractionSummary struct {
	RelationCount int     `json:"relation_count"`
	FilteredCount int     `json:"filtered_count"`
	Quality       float64 `json:"quality"`
	CaseCount     int     `json:"case_count"`
}

// RelationGraph is the read-only bipartite crime↔article co-occurrence index.
// Built once by the extractor, replaced only by atomic swap; lookups are
// synchronous in-memory operations safe for concurrent readers.
type RelationGraph struct {
	crimeArticles map[string]map[int]int
	articleCrimes map[int]map[string]int
	scoring       RelationScoring
	summary       ExtractionSummary
	builtAt       time.Time
}

func NewRelationGraph(
	crimeArticles map[string]map[int]int,
	articleCrimes map[int]map[string]int,
	scoring RelationScoring,
	summary ExtractionSummary,
	builtAt time.Time,
) *RelationGraph {
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	return &RelationGraph{
		crimeArticles: crimeArticles,
		articleCrimes: articleCrimes,
		scoring:       scoring,
		summary:       summary,
		builtAt:       builtAt,
	}
}

// Validate checks graph integrity: non-empty maps and every entry mirrored in
// both directions with equal count.
func (g *RelationGraph) Validate() error {
	if len(g.crimeArticles) == 0 || len(g.articleCrimes) == 0 {
		return fmt.Errorf("relation graph maps are empty")
	}
	for crime, articles := range g.crimeArticles {
		for article, count := range articles {
			mirrored, ok := g.articleCrimes[article][crime]
			if !ok {
				return fmt.Errorf("missing mirror for crime=%s article=%d", crime, article)
			}
			if mirrored != count {
				return fmt.Errorf("mirror count mismatch for crime=%s article=%d: %d != %d", crime, article, count, mirrored)
			}
		}
	}
	for article, crimes := range g.articleCrimes {
		for crime, count := range crimes {
			if g.crimeArticles[crime][article] != count {
				return fmt.Errorf("mirror count mismatch for article=%d crime=%s", article, crime)
			}
		}
	}
	return nil
}

func (g *RelationGraph) totalCasesForCrime(crime string) int {
	total := 0
	for _, count := range g.crimeArticles[crime] {
		total += count
	}
	return total
}

func (g *RelationGraph) totalCasesForArticle(article int) int {
	total := 0
	for _, count := range g.articleCrimes[article] {
		total += count
	}
	return total
}

// RelatedArticles ranks articles co-occurring with crime by case count.
// Inclusion relaxes with sparsity and confidence is boosted for rare crimes
// so thin but real relations survive.
func (g *RelationGraph) RelatedArticles(crime string, topK int) []RelatedArticle {
	articles := g.crimeArticles[NormalizeCrime(crime)]
	if len(articles) == 0 {
		return nil
	}
	totalCases := 0
	for _, count := range articles {
		totalCases += count
	}

	out := make([]RelatedArticle, 0, len(articles))
	for article, count := range articles {
		confidence := float64(count) / float64(totalCases)
		if !g.includeCrimeRelation(count, confidence, totalCases) {
			continue
		}
		confidence = applyBoost(confidence, totalCases, g.scoring.CrimeBoosts)
		out = append(out, RelatedArticle{
			Article:    article,
			CaseCount:  count,
			Confidence: confidence,
			Level:      confidenceLevel(confidence),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CaseCount != out[j].CaseCount {
			return out[i].CaseCount > out[j].CaseCount
		}
		return out[i].Article < out[j].Article
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func (g *RelationGraph) includeCrimeRelation(count int, confidence float64, totalCases int) bool {
	switch {
	case totalCases <= g.scoring.SparseAnyMaxCases:
		return count >= 1
	case totalCases <= g.scoring.SparseMaxCases:
		return confidence >= g.scoring.SparseMinConf
	default:
		return confidence >= g.scoring.DenseMinConf && count >= g.scoring.DenseMinCount
	}
}

// RelatedCrimes is the symmetric lookup; its boost is keyed on the absolute
// case count of the pair itself rather than the crime's volume.
func (g *RelationGraph) RelatedCrimes(article int, topK int) []RelatedCrime {
	crimes := g.articleCrimes[article]
	if len(crimes) == 0 {
		return nil
	}
	totalCases := 0
	for _, count := range crimes {
		totalCases += count
	}

	out := make([]RelatedCrime, 0, len(crimes))
	for crime, count := range crimes {
		confidence := float64(count) / float64(totalCases)
		if !g.includeCrimeRelation(count, confidence, totalCases) {
			continue
		}
		confidence = applyBoost(confidence, count, g.scoring.PairBoosts)
		out = append(out, RelatedCrime{
			Crime:      crime,
			CaseCount:  count,
			Confidence: confidence,
			Level:      confidenceLevel(confidence),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CaseCount != out[j].CaseCount {
			return out[i].CaseCount > out[j].CaseCount
		}
		return out[i].Crime < out[j].Crime
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func (g *RelationGraph) RelationDetails(crime string, article int) RelationDetail {
	normalized := NormalizeCrime(crime)
	count, ok := g.crimeArticles[normalized][article]
	if !ok {
		return RelationDetail{}
	}
	totalCases := g.totalCasesForCrime(normalized)
	confidence := 0.0
	if totalCases > 0 {
		confidence = float64(count) / float64(totalCases)
	}
	return RelationDetail{CaseCount: count, Confidence: confidence, Exists: true}
}

var articlePattern = regexp.MustCompile(`第?([0-9]{1,3})\s*条`)

const expansionTopK = 3

// ExpandQuery detects crime names and article numbers embedded in free text
// and returns graph-expanded keywords plus human-readable suggestions.
// Exact normalized crime matches win over substring matches so compound or
// bracketed crime labels do not shadow the plain form.
func (g *RelationGraph) ExpandQuery(text string) QueryExpansion {
	normalized := NormalizeCrime(text)
	if normalized == "" {
		return QueryExpansion{}
	}

	var exact, partial []string
	for crime := range g.crimeArticles {
		switch {
		case crime == normalized:
			exact = append(exact, crime)
		case strings.Contains(normalized, crime):
			partial = append(partial, crime)
		}
	}
	crimes := exact
	if len(crimes) == 0 {
		crimes = partial
	}
	sort.Strings(crimes)

	var articles []int
	seenArticles := make(map[int]struct{})
	for _, match := range articlePattern.FindAllStringSubmatch(text, -1) {
		article, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if _, ok := g.articleCrimes[article]; !ok {
			continue
		}
		if _, dup := seenArticles[article]; dup {
			continue
		}
		seenArticles[article] = struct{}{}
		articles = append(articles, article)
	}
	sort.Ints(articles)

	expansion := QueryExpansion{Crimes: crimes, Articles: articles}
	seenKeywords := make(map[string]struct{})
	addKeyword := func(keyword string) {
		if keyword == "" {
			return
		}
		if _, dup := seenKeywords[keyword]; dup {
			return
		}
		seenKeywords[keyword] = struct{}{}
		expansion.Keywords = append(expansion.Keywords, keyword)
	}

	for _, crime := range crimes {
		addKeyword(crime)
		for _, related := range g.RelatedArticles(crime, expansionTopK) {
			addKeyword(fmt.Sprintf("第%d条", related.Article))
			expansion.Suggestions = append(expansion.Suggestions, fmt.Sprintf(
				"%s 常关联 第%d条 (%d cases, confidence %.2f)",
				crime, related.Article, related.CaseCount, related.Confidence,
			))
		}
	}
	for _, article := range articles {
		addKeyword(fmt.Sprintf("第%d条", article))
		for _, related := range g.RelatedCrimes(article, expansionTopK) {
			addKeyword(related.Crime)
			expansion.Suggestions = append(expansion.Suggestions, fmt.Sprintf(
				"第%d条 常关联 %s (%d cases, confidence %.2f)",
				article, related.Crime, related.CaseCount, related.Confidence,
			))
		}
	}
	return expansion
}

func (g *RelationGraph) Stats() GraphStats {
	relations := 0
	for _, articles := range g.crimeArticles {
		relations += len(articles)
	}
	return GraphStats{
		Crimes:    len(g.crimeArticles),
		Articles:  len(g.articleCrimes),
		Relations: relations,
		Cases:     g.summary.CaseCount,
		Quality:   g.summary.Quality,
		BuiltAt:   g.builtAt,
	}
}

func (g *RelationGraph) Summary() ExtractionSummary {
	return g.summary
}

// ExportRelations flattens the graph into a deterministic relation table.
func (g *RelationGraph) ExportRelations() []RelationRow {
	rows := make([]RelationRow, 0, len(g.crimeArticles))
	for crime, articles := range g.crimeArticles {
		totalCases := 0
		for _, count := range articles {
			totalCases += count
		}
		for article, count := range articles {
			confidence := 0.0
			if totalCases > 0 {
				confidence = float64(count) / float64(totalCases)
			}
			rows = append(rows, RelationRow{
				Crime:      crime,
				Article:    article,
				CaseCount:  count,
				Confidence: confidence,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Crime != rows[j].Crime {
			return rows[i].Crime < rows[j].Crime
		}
		return rows[i].Article < rows[j].Article
	})
	return rows
}

// Snapshot copies the mappings for serialization.
func (g *RelationGraph) Snapshot() GraphSnapshot {
	crimeArticles := make(map[string]map[int]int, len(g.crimeArticles))
	for crime, articles := range g.crimeArticles {
		inner := make(map[int]int, len(articles))
		for article, count := range articles {
			inner[article] = count
		}
		crimeArticles[crime] = inner
	}
	articleCrimes := make(map[int]map[string]int, len(g.articleCrimes))
	for article, crimes := range g.articleCrimes {
		inner := make(map[string]int, len(crimes))
		for crime, count := range crimes {
			inner[crime] = count
		}
		articleCrimes[article] = inner
	}
	return GraphSnapshot{
		CrimeArticleMapping: crimeArticles,
		ArticleCrimeMapping: articleCrimes,
		ExtractionSummary:   g.summary,
	}
}

func confidenceLevel(confidence float64) string {
	switch {
	case confidence >= 0.5:
		return "高"
	case confidence >= 0.15:
		return "中"
	default:
		return "低"
	}
}

// NormalizeCrime canonicalizes crime labels: whitespace and bracket variants
// collapse, the trailing 罪 suffix is dropped.
func NormalizeCrime(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		"【", "", "】", "",
		"[", "", "]", "",
		"（", "", "）", "",
		"(", "", ")", "",
		" ", "", "\t", "",
	)
	s = replacer.Replace(s)
	return strings.TrimSuffix(s, "罪")
}
