package usecase

import (
	"testing"
	"time"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

func TestBuildPlanAlwaysIncludesBasicSemantic(t *testing.T) {
	router := NewRouter(0)

	inputs := []*domain.ClassificationResult{
		nil,
		{},
		{IsLegalDomain: true, IdentifiedCrimes: []string{"盗窃"}},
		{
			IsLegalDomain:    true,
			IdentifiedCrimes: []string{"盗窃"},
			Variants:         domain.QueryVariants{Query2Doc: "q2d", HyDE: "hyde"},
			WeightedKeywords: []domain.WeightedKeyword{{Term: "盗窃", Weight: 1.0}},
		},
	}
	for i, cls := range inputs {
		plan := router.BuildPlan(cls)
		if !plan.Includes(domain.PathBasicSemantic) {
			t.Fatalf("input %d: expected basic_semantic in plan, got %+v", i, plan.Paths)
		}
	}
}

func TestBuildPlanDegradesWithoutClassification(t *testing.T) {
	plan := NewRouter(0).BuildPlan(nil)
	if len(plan.Paths) != 1 || plan.Paths[0].Path != domain.PathBasicSemantic {
		t.Fatalf("expected basic_semantic-only plan, got %+v", plan.Paths)
	}
	if plan.MinimumQuorum != 1 {
		t.Fatalf("expected quorum 1 for single path, got %d", plan.MinimumQuorum)
	}
}

func TestBuildPlanSelectionRules(t *testing.T) {
	plan := NewRouter(0).BuildPlan(&domain.ClassificationResult{
		IsLegalDomain:    true,
		IdentifiedCrimes: []string{"盗窃"},
		Variants:         domain.QueryVariants{HyDE: "hypothetical answer"},
	})

	want := []domain.RetrievalPath{domain.PathKnowledgeGraph, domain.PathHyDE, domain.PathBasicSemantic}
	if len(plan.Paths) != len(want) {
		t.Fatalf("expected %d paths, got %+v", len(want), plan.Paths)
	}
	for i, path := range want {
		if plan.Paths[i].Path != path {
			t.Fatalf("path %d: expected %s, got %s", i, path, plan.Paths[i].Path)
		}
	}
	if plan.MinimumQuorum != 2 {
		t.Fatalf("expected quorum ceil(3/2)=2, got %d", plan.MinimumQuorum)
	}
}

func TestBuildPlanPriorities(t *testing.T) {
	plan := NewRouter(0).BuildPlan(&domain.ClassificationResult{
		IdentifiedCrimes: []string{"盗窃"},
		Variants:         domain.QueryVariants{Query2Doc: "expanded"},
	})

	for i, selected := range plan.Paths {
		want := 1.0 / float64(i+1)
		if selected.Priority != want {
			t.Fatalf("path %s: expected priority %f, got %f", selected.Path, want, selected.Priority)
		}
	}
}

func TestBuildPlanTimeoutDefault(t *testing.T) {
	if plan := NewRouter(0).BuildPlan(nil); plan.Timeout != 30*time.Second {
		t.Fatalf("expected default 30s timeout, got %s", plan.Timeout)
	}
	if plan := NewRouter(5 * time.Second).BuildPlan(nil); plan.Timeout != 5*time.Second {
		t.Fatalf("expected configured timeout, got %s", plan.Timeout)
	}
}
