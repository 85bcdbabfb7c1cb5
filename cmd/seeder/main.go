package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/qinyuanle/legal-qa-engine/internal/config"
	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/chunking"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/index/qdrant"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/llm/ollama"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/repository/postgres"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/resilience"
	"github.com/qinyuanle/legal-qa-engine/internal/observability/logging"
)

const embedBatchSize = 16

var (
	casesFile     = flag.String("cases", "", "labeled case corpus to load into postgres (.xlsx or .jsonl)")
	documentsFile = flag.String("documents", "", "statute and case documents to index into qdrant (.xlsx or .jsonl)")
)

func main() {
	flag.Parse()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("seeder", cfg.LogLevel))

	if *casesFile == "" && *documentsFile == "" {
		log.Fatal("nothing to seed: pass -cases and/or -documents")
	}

	ctx := context.Background()

	if *casesFile != "" {
		if err := seedCases(ctx, cfg, *casesFile); err != nil {
			log.Fatalf("seed cases: %v", err)
		}
	}
	if *documentsFile != "" {
		if err := seedDocuments(ctx, cfg, *documentsFile); err != nil {
			log.Fatalf("seed documents: %v", err)
		}
	}
}

func seedCases(ctx context.Context, cfg config.Config, path string) error {
	cases, err := readCases(path)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no labeled cases found in %s", path)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	repo := postgres.NewCaseRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	for _, c := range cases {
		if err := repo.UpsertLabeledCase(ctx, c); err != nil {
			return fmt.Errorf("upsert case %s: %w", c.ID, err)
		}
	}
	slog.Info("cases_seeded", "count", len(cases), "source", path)
	return nil
}

func seedDocuments(ctx context.Context, cfg config.Config, path string) error {
	docs, err := readDocuments(path)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found in %s", path)
	}
	docs = chunkDocuments(chunking.NewSplitter(0, -1), docs)

	runner := resilience.NewRunner(resilience.DefaultPolicy())
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, runner)
	embedder := ollama.NewEmbedder(client)
	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder, runner)

	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Title + "\n" + doc.Content
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed batch at %d: got %d vectors for %d documents", start, len(vectors), len(batch))
		}

		for i, doc := range batch {
			if err := index.IndexDocument(ctx, doc, vectors[i]); err != nil {
				return fmt.Errorf("index document %s: %w", doc.DocID, err)
			}
		}
		slog.Info("documents_indexed", "done", end, "total", len(docs))
	}
	return nil
}

// chunkDocuments splits oversized documents before embedding. Chunk ids get
// a positional suffix so hits on different parts of one judgment stay
// addressable.
func chunkDocuments(splitter *chunking.Splitter, docs []domain.IndexedDocument) []domain.IndexedDocument {
	out := make([]domain.IndexedDocument, 0, len(docs))
	for _, doc := range docs {
		chunks := splitter.Split(doc.Content)
		if len(chunks) <= 1 {
			out = append(out, doc)
			continue
		}
		for i, chunk := range chunks {
			out = append(out, domain.IndexedDocument{
				DocID:   fmt.Sprintf("%s#%d", doc.DocID, i+1),
				DocType: doc.DocType,
				Title:   doc.Title,
				Content: chunk,
			})
		}
	}
	return out
}

func readCases(path string) ([]domain.LabeledCase, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return casesFromXLSX(path)
	case ".jsonl":
		return jsonlRecords[domain.LabeledCase](path)
	default:
		return nil, fmt.Errorf("unsupported case corpus format %q", filepath.Ext(path))
	}
}

func readDocuments(path string) ([]domain.IndexedDocument, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return documentsFromXLSX(path)
	case ".jsonl":
		return jsonlRecords[domain.IndexedDocument](path)
	default:
		return nil, fmt.Errorf("unsupported document corpus format %q", filepath.Ext(path))
	}
}

// casesFromXLSX expects columns: id, accusations, relevant_articles. The list
// columns hold semicolon-separated values. The first row is a header.
func casesFromXLSX(path string) ([]domain.LabeledCase, error) {
	rows, err := firstSheetRows(path)
	if err != nil {
		return nil, err
	}

	var cases []domain.LabeledCase
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			continue
		}
		articles, err := splitInts(row[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		cases = append(cases, domain.LabeledCase{
			ID:               id,
			Accusations:      splitList(row[1]),
			RelevantArticles: articles,
		})
	}
	return cases, nil
}

// documentsFromXLSX expects columns: doc_id, doc_type, title, content.
func documentsFromXLSX(path string) ([]domain.IndexedDocument, error) {
	rows, err := firstSheetRows(path)
	if err != nil {
		return nil, err
	}

	var docs []domain.IndexedDocument
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			continue
		}
		docs = append(docs, domain.IndexedDocument{
			DocID:   id,
			DocType: domain.DocType(strings.TrimSpace(row[1])),
			Title:   strings.TrimSpace(row[2]),
			Content: row[3],
		})
	}
	return docs, nil
}

func firstSheetRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func jsonlRecords[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record T
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitInts(raw string) ([]int, error) {
	var out []int
	for _, part := range splitList(raw) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad article number %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
