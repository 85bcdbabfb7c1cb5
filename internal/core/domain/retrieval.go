package domain

import "time"

type RetrievalPath string

const (
	PathKnowledgeGraph RetrievalPath = "knowledge_graph"
	PathQuery2Doc      RetrievalPath = "query2doc"
	PathHyDE           RetrievalPath = "hyde"
	PathBM25Hybrid     RetrievalPath = "bm25_hybrid"
	PathBasicSemantic  RetrievalPath = "basic_semantic"
)

// CanonicalPathOrder fixes the processing order of paths wherever iteration
// order is observable (routing priority, fusion dedupe). Map iteration is
// never used for anything that affects output.
var CanonicalPathOrder = []RetrievalPath{
	PathKnowledgeGraph,
	PathQuery2Doc,
	PathHyDE,
	PathBM25Hybrid,
	PathBasicSemantic,
}

type DocType string

const (
	DocTypeArticle DocType = "article"
	DocTypeCase    DocType = "case"
)

// SearchHit is one ranked result from a single retrieval path. Hits are
// request-scoped and discarded after fusion.
type SearchHit struct {
	DocID         string        `json:"doc_id"`
	DocType       DocType       `json:"doc_type"`
	Title         string        `json:"title"`
	Content       string        `json:"content,omitempty"`
	RawSimilarity float64       `json:"raw_similarity"`
	SourcePath    RetrievalPath `json:"source_path"`
	LocalRank     int           `json:"local_rank"`
}

type SelectedPath struct {
	Path     RetrievalPath `json:"path"`
	Priority float64       `json:"priority"`
}

// RetrievalPlan is the router's output: which paths to run and under which
// execution constraints.
type RetrievalPlan struct {
	Paths         []SelectedPath `json:"paths"`
	Timeout       time.Duration  `json:"-"`
	MinimumQuorum int            `json:"minimum_quorum"`
}

func (p RetrievalPlan) Includes(path RetrievalPath) bool {
	for _, selected := range p.Paths {
		if selected.Path == path {
			return true
		}
	}
	return false
}

// PathOutcome records how one path finished; used for quorum accounting and
// progress events.
type PathOutcome struct {
	Path     RetrievalPath `json:"path"`
	Hits     int           `json:"hits"`
	Err      string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Elapsed  time.Duration `json:"-"`
}

func (o PathOutcome) Succeeded() bool {
	return o.Err == "" && !o.TimedOut
}

// RankedResult is one fused document in the final top-N list. Score is the
// raw RRF aggregate; DisplayScore is the bounded UI-facing scaled value, not
// a probability.
type RankedResult struct {
	DocID        string          `json:"doc_id"`
	DocType      DocType         `json:"doc_type"`
	Title        string          `json:"title"`
	Content      string          `json:"content,omitempty"`
	Score        float64         `json:"score"`
	DisplayScore float64         `json:"display_score"`
	Paths        []RetrievalPath `json:"paths"`
}

// Answer is the pipeline's outward payload for one question.
type Answer struct {
	RequestID string         `json:"request_id"`
	Question  string         `json:"question"`
	Text      string         `json:"text,omitempty"`
	Articles  []RankedResult `json:"articles"`
	Cases     []RankedResult `json:"cases"`
	Degraded  bool           `json:"degraded"`
	Outcomes  []PathOutcome  `json:"path_outcomes,omitempty"`
}

type IndexHealth struct {
	Healthy    bool   `json:"healthy"`
	Documents  int64  `json:"documents,omitempty"`
	Collection string `json:"collection,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// IndexedDocument is one corpus document as written into the search index.
type IndexedDocument struct {
	DocID   string  `json:"doc_id"`
	DocType DocType `json:"doc_type"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
}
