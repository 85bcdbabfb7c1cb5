package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

func TestClassifyParsesModelJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		payload := map[string]any{
			"response": "```\n" + `{"is_legal_domain":true,"confidence":0.92,` +
				`"identified_crimes":[" 盗窃 ",""],` +
				`"query_variants":{"query2doc":"盗窃罪 量刑 标准","hyde":"根据刑法第264条"},` +
				`"weighted_keywords":[{"term":"盗窃","weight":0.9},{"term":" ","weight":0.3},{"term":"量刑","weight":0}]}` + "\n```",
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	classifier := NewClassifier(New(server.URL, "gen", "embed", nil))
	result, err := classifier.Classify(context.Background(), "偷东西怎么判")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !result.IsLegalDomain || result.Confidence != 0.92 {
		t.Fatalf("unexpected classification: %+v", result)
	}
	if len(result.IdentifiedCrimes) != 1 || result.IdentifiedCrimes[0] != "盗窃" {
		t.Fatalf("blank crimes must be dropped and terms trimmed: %+v", result.IdentifiedCrimes)
	}
	if result.Variants.Query2Doc == "" || result.Variants.HyDE == "" {
		t.Fatalf("variants missing: %+v", result.Variants)
	}
	if len(result.WeightedKeywords) != 2 {
		t.Fatalf("blank keywords must be dropped: %+v", result.WeightedKeywords)
	}
	if result.WeightedKeywords[1].Weight != 0.5 {
		t.Fatalf("non-positive weight must fall back to 0.5, got %v", result.WeightedKeywords[1].Weight)
	}
}

func TestClassifyFailureIsClassificationUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusNotFound)
	}))
	defer server.Close()

	classifier := NewClassifier(New(server.URL, "gen", "embed", nil))
	_, err := classifier.Classify(context.Background(), "盗窃怎么判")
	if !domain.IsKind(err, domain.ErrClassificationUnavailable) {
		t.Fatalf("want ErrClassificationUnavailable, got %v", err)
	}
}

func TestGenerateAnswerBuildsLegalContextPrompt(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"依据第264条处三年以下有期徒刑"}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed", nil))
	answer, err := gen.GenerateAnswer(context.Background(), "盗窃怎么判",
		[]domain.RankedResult{{Title: "刑法第264条", Content: "盗窃公私财物", DisplayScore: 87.5}},
		[]domain.RankedResult{{Title: "某盗窃案", Content: "判处有期徒刑一年", DisplayScore: 60.0}},
	)
	if err != nil {
		t.Fatalf("GenerateAnswer: %v", err)
	}
	if answer == "" {
		t.Fatal("empty answer")
	}
	for _, want := range []string{"盗窃怎么判", "刑法第264条", "某盗窃案", "相关法条", "相关案例"} {
		if !strings.Contains(capturedPrompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, capturedPrompt)
		}
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "embedding model unavailable", http.StatusBadRequest)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", nil))
	_, err := embedder.Embed(context.Background(), []string{"盗窃"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "embedding model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestClassificationPromptTruncatesOnRuneBoundary(t *testing.T) {
	question := strings.Repeat("法", maxQuestionSnippet+1)

	prompt := buildClassificationPrompt(question)
	if !utf8.ValidString(prompt) {
		t.Fatal("truncated prompt must stay valid UTF-8")
	}
	if got := strings.Count(prompt, "法"); got != maxQuestionSnippet {
		t.Fatalf("expected %d snippet runes, got %d", maxQuestionSnippet, got)
	}
}
