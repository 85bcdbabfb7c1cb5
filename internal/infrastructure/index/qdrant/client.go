package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
	"github.com/qinyuanle/legal-qa-engine/internal/core/ports"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
	hybridPrefetch   = 50
)

// Index is the Qdrant-backed document index shared by all retrieval paths.
// Dense search embeds the query text first; hybrid search additionally
// prefetches a sparse lexical candidate set and lets Qdrant fuse both.
type Index struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
	runner     *resilience.Runner

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, embedder ports.Embedder, runner *resilience.Runner) *Index {
	if runner == nil {
		runner = resilience.NewRunner(resilience.DefaultPolicy())
	}
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
		runner:     runner,
	}
}

func (c *Index) Search(ctx context.Context, queryText string, topK int, includeContent bool) ([]domain.SearchHit, error) {
	vector, err := c.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "embed query", err)
	}
	reqBody := map[string]any{
		"query":        vector,
		"using":        denseVectorName,
		"limit":        topK,
		"with_payload": true,
	}
	return c.query(ctx, "search", reqBody, includeContent)
}

func (c *Index) HybridSearch(ctx context.Context, queryText string, topK int) ([]domain.SearchHit, error) {
	vector, err := c.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "embed query", err)
	}
	sparse := encodeSparseQuery(queryText)

	reqBody := map[string]any{
		"prefetch": []map[string]any{
			{
				"query": vector,
				"using": denseVectorName,
				"limit": hybridPrefetch,
			},
			{
				"query": map[string]any{
					"indices": sparse.Indices,
					"values":  sparse.Values,
				},
				"using": sparseVectorName,
				"limit": hybridPrefetch,
			},
		},
		"query":        map[string]any{"fusion": "rrf"},
		"limit":        topK,
		"with_payload": true,
	}
	return c.query(ctx, "hybrid_search", reqBody, true)
}

func (c *Index) Health(ctx context.Context) (domain.IndexHealth, error) {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.IndexHealth{}, fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.IndexHealth{}, domain.WrapError(domain.ErrTemporary, "index health", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.IndexHealth{}, nil
	}

	var healthResp struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int64  `json:"points_count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return domain.IndexHealth{}, fmt.Errorf("decode health response: %w", err)
	}
	return domain.IndexHealth{
		Healthy:    strings.EqualFold(healthResp.Result.Status, "green") || strings.EqualFold(healthResp.Result.Status, "yellow"),
		Documents:  healthResp.Result.PointsCount,
		Collection: c.collection,
	}, nil
}

// IndexDocument upserts one document with both vector representations. Used
// by the seeder; the query surface never writes.
func (c *Index) IndexDocument(ctx context.Context, doc domain.IndexedDocument, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty document vector")
	}
	if err := c.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}

	sparse := encodeSparseDocument(doc.Content, doc.Title)
	point := map[string]any{
		"id": uuid.NewString(),
		"vector": map[string]any{
			denseVectorName: vector,
			sparseVectorName: map[string]any{
				"indices": sparse.Indices,
				"values":  sparse.Values,
			},
		},
		"payload": map[string]any{
			"doc_id":   doc.DocID,
			"doc_type": string(doc.DocType),
			"title":    doc.Title,
			"content":  doc.Content,
		},
	}

	body, err := json.Marshal(map[string]any{"points": []map[string]any{point}})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant upsert status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Index) query(ctx context.Context, operation string, reqBody map[string]any, includeContent bool) ([]domain.SearchHit, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	var hits []domain.SearchHit
	err = c.runner.Do(ctx, "qdrant_"+operation, classifyIndexError, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &indexStatusError{
				operation:  operation,
				statusCode: resp.StatusCode,
				status:     resp.Status,
				body:       strings.TrimSpace(string(body)),
			}
		}

		points, err := decodeQueryPoints(resp.Body)
		if err != nil {
			return err
		}
		hits = pointsToHits(points, includeContent)
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	return hits, nil
}

type queryPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func decodeQueryPoints(r io.Reader) ([]queryPoint, error) {
	var queryResp struct {
		Result struct {
			Points []queryPoint `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(r).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return queryResp.Result.Points, nil
}

func pointsToHits(points []queryPoint, includeContent bool) []domain.SearchHit {
	out := make([]domain.SearchHit, 0, len(points))
	for rank, p := range points {
		hit := domain.SearchHit{
			DocID:         getStringPayload(p.Payload, "doc_id"),
			DocType:       domain.DocType(getStringPayload(p.Payload, "doc_type")),
			Title:         getStringPayload(p.Payload, "title"),
			RawSimilarity: p.Score,
			LocalRank:     rank,
		}
		if includeContent {
			hit.Content = getStringPayload(p.Payload, "content")
		}
		out = append(out, hit)
	}
	return out
}

func (c *Index) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal ensure collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ensure collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
