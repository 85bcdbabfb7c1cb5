package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	runner     *resilience.Runner
}

func New(baseURL, genModel, embedModel string, runner *resilience.Runner) *Client {
	if runner == nil {
		runner = resilience.NewRunner(resilience.DefaultPolicy())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		runner:     runner,
	}
}

// Classifier extracts the routing signal from one free-text question. The
// model is asked for strict JSON matching ClassificationResult; any transport
// or parse failure surfaces as ErrClassificationUnavailable so the caller can
// degrade to baseline retrieval.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, question string) (*domain.ClassificationResult, error) {
	respText, err := c.client.generateJSON(ctx, "classify", buildClassificationPrompt(question))
	if err != nil {
		return nil, domain.WrapError(domain.ErrClassificationUnavailable, "classify question", err)
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return nil, domain.WrapError(domain.ErrClassificationUnavailable, "parse classification", err)
	}
	result.IdentifiedCrimes = cleanTerms(result.IdentifiedCrimes)
	result.WeightedKeywords = cleanKeywords(result.WeightedKeywords)
	return &result, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, articles, cases []domain.RankedResult) (string, error) {
	return g.client.generateText(ctx, "generate", buildAnswerPrompt(question, articles, cases))
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, operation, reqBody)
}

func (c *Client) generateText(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, operation, reqBody)
}

func (c *Client) generate(ctx context.Context, operation string, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, operation); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if trimmed := strings.TrimSpace(term); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func cleanKeywords(keywords []domain.WeightedKeyword) []domain.WeightedKeyword {
	out := make([]domain.WeightedKeyword, 0, len(keywords))
	for _, kw := range keywords {
		kw.Term = strings.TrimSpace(kw.Term)
		if kw.Term == "" {
			continue
		}
		if kw.Weight <= 0 {
			kw.Weight = 0.5
		}
		out = append(out, kw)
	}
	return out
}
