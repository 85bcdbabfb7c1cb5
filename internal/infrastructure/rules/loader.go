// Package rules loads extraction rules and scoring overrides from an
// operator-editable YAML file. The built-in defaults apply when the file is
// absent; a present file merges over them section by section.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

type fileFormat struct {
	Whitelist map[string][]int        `yaml:"whitelist"`
	Blacklist []int                   `yaml:"blacklist"`
	Scoring   *domain.RelationScoring `yaml:"scoring"`
}

// Load reads rules from path. An empty path or missing file yields the
// defaults unchanged; a malformed file is an error, not a silent fallback.
func Load(path string) (domain.RelationRules, domain.RelationScoring, error) {
	relationRules := domain.DefaultRelationRules()
	scoring := domain.DefaultRelationScoring()
	if path == "" {
		return relationRules, scoring, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return relationRules, scoring, nil
		}
		return domain.RelationRules{}, domain.RelationScoring{}, fmt.Errorf("read rules file: %w", err)
	}

	var parsed fileFormat
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return domain.RelationRules{}, domain.RelationScoring{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	if parsed.Whitelist != nil {
		merged := make(map[string][]int, len(relationRules.Whitelist)+len(parsed.Whitelist))
		for crime, articles := range relationRules.Whitelist {
			merged[crime] = articles
		}
		for crime, articles := range parsed.Whitelist {
			merged[domain.NormalizeCrime(crime)] = articles
		}
		relationRules.Whitelist = merged
	}
	if len(parsed.Blacklist) > 0 {
		relationRules.Blacklist = append(relationRules.Blacklist, parsed.Blacklist...)
	}
	if parsed.Scoring != nil {
		scoring = mergeScoring(scoring, *parsed.Scoring)
	}
	return relationRules, scoring, nil
}

func mergeScoring(base, override domain.RelationScoring) domain.RelationScoring {
	out := base
	if override.SparseAnyMaxCases > 0 {
		out.SparseAnyMaxCases = override.SparseAnyMaxCases
	}
	if override.SparseMaxCases > 0 {
		out.SparseMaxCases = override.SparseMaxCases
	}
	if override.SparseMinConf > 0 {
		out.SparseMinConf = override.SparseMinConf
	}
	if override.DenseMinConf > 0 {
		out.DenseMinConf = override.DenseMinConf
	}
	if override.DenseMinCount > 0 {
		out.DenseMinCount = override.DenseMinCount
	}
	if len(override.CrimeBoosts) > 0 {
		out.CrimeBoosts = override.CrimeBoosts
	}
	if len(override.PairBoosts) > 0 {
		out.PairBoosts = override.PairBoosts
	}
	return out
}
