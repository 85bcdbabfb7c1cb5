package usecase

import (
	"strings"
	"time"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

const defaultPathTimeout = 30 * time.Second

// Router turns a classification result into the ordered set of retrieval
// paths plus an execution plan. It never fails: a missing or malformed
// classification degrades the plan to the basic semantic baseline.
type Router struct {
	timeout time.Duration
}

func NewRouter(timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = defaultPathTimeout
	}
	return &Router{timeout: timeout}
}

// BuildPlan selects paths in canonical order. basic_semantic is always
// included as the unconditional baseline; the others require their input
// signal to be present. Priority is 1/(position+1); quorum is ceil(n/2).
func (r *Router) BuildPlan(cls *domain.ClassificationResult) domain.RetrievalPlan {
	paths := make([]domain.RetrievalPath, 0, len(domain.CanonicalPathOrder))
	if cls != nil {
		if len(cls.IdentifiedCrimes) > 0 {
			paths = append(paths, domain.PathKnowledgeGraph)
		}
		if strings.TrimSpace(cls.Variants.Query2Doc) != "" {
			paths = append(paths, domain.PathQuery2Doc)
		}
		if strings.TrimSpace(cls.Variants.HyDE) != "" {
			paths = append(paths, domain.PathHyDE)
		}
		if len(cls.WeightedKeywords) > 0 {
			paths = append(paths, domain.PathBM25Hybrid)
		}
	}
	paths = append(paths, domain.PathBasicSemantic)

	selected := make([]domain.SelectedPath, len(paths))
	for i, path := range paths {
		selected[i] = domain.SelectedPath{
			Path:     path,
			Priority: 1.0 / float64(i+1),
		}
	}

	return domain.RetrievalPlan{
		Paths:         selected,
		Timeout:       r.timeout,
		MinimumQuorum: (len(selected) + 1) / 2,
	}
}
