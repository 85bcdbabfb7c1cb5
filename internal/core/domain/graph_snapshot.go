package domain

import "time"

// LabeledCase is one row of the offline corpus the extractor consumes.
type LabeledCase struct {
	ID               string   `json:"id"`
	Accusations      []string `json:"accusations"`
	RelevantArticles []int    `json:"relevant_articles"`
}

// GraphSnapshot is the serialized form of a relation graph.
type GraphSnapshot struct {
	CrimeArticleMapping map[string]map[int]int `json:"crime_article_mapping"`
	ArticleCrimeMapping map[int]map[string]int `json:"article_crime_mapping"`
	ExtractionSummary   ExtractionSummary      `json:"extraction_summary"`
}

// GraphMetadata is the sidecar next to a snapshot; DataHash identifies the
// source corpus so an unchanged corpus skips a no-op rebuild.
type GraphMetadata struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Crimes    int       `json:"crimes"`
	Articles  int       `json:"articles"`
	Relations int       `json:"relations"`
	DataHash  string    `json:"data_hash"`
}

// GraphBuildReport summarizes one rebuild attempt.
type GraphBuildReport struct {
	Skipped       bool      `json:"skipped"`
	Version       int       `json:"version"`
	CaseCount     int       `json:"case_count"`
	RelationCount int       `json:"relation_count"`
	FilteredCount int       `json:"filtered_count"`
	Quality       float64   `json:"quality"`
	Crimes        int       `json:"crimes"`
	Articles      int       `json:"articles"`
	DataHash      string    `json:"data_hash"`
	BuiltAt       time.Time `json:"built_at"`
}
