package rules

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	relationRules, scoring, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(relationRules, domain.DefaultRelationRules()) {
		t.Fatalf("missing file must yield default rules: %+v", relationRules)
	}
	if !reflect.DeepEqual(scoring, domain.DefaultRelationScoring()) {
		t.Fatalf("missing file must yield default scoring: %+v", scoring)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	relationRules, _, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(relationRules.Whitelist) == 0 {
		t.Fatal("default whitelist must not be empty")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
whitelist:
  "抢夺罪": [267]
blacklist: [999]
scoring:
  sparse_min_confidence: 0.03
  dense_min_count: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	relationRules, scoring, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// New crimes merge in under their normalized name and defaults survive.
	if !reflect.DeepEqual(relationRules.Whitelist["抢夺"], []int{267}) {
		t.Fatalf("want normalized whitelist entry for 抢夺, got %+v", relationRules.Whitelist)
	}
	if !reflect.DeepEqual(relationRules.Whitelist["盗窃"], []int{264}) {
		t.Fatalf("default whitelist entry lost: %+v", relationRules.Whitelist)
	}
	if len(relationRules.Blacklist) != 1 || relationRules.Blacklist[0] != 999 {
		t.Fatalf("unexpected blacklist: %+v", relationRules.Blacklist)
	}
	if scoring.SparseMinConf != 0.03 || scoring.DenseMinCount != 3 {
		t.Fatalf("scoring overrides not applied: %+v", scoring)
	}
	if scoring.DenseMinConf != 0.05 {
		t.Fatalf("untouched scoring fields must keep defaults: %+v", scoring)
	}
	if len(scoring.CrimeBoosts) != 3 {
		t.Fatalf("boost tables must keep defaults when absent: %+v", scoring.CrimeBoosts)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("whitelist: [not a map"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("malformed yaml must error")
	}
}
