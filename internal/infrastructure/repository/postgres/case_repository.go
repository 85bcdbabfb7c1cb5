package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

// CaseRepository stores the labeled case corpus the graph extractor consumes
// plus an append-only log of build reports.
type CaseRepository struct {
	db *sql.DB
}

func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CaseRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/seeder startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS labeled_cases (
	id TEXT PRIMARY KEY,
	accusations JSONB NOT NULL DEFAULT '[]'::jsonb,
	relevant_articles JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_builds (
	version BIGINT PRIMARY KEY,
	case_count BIGINT NOT NULL,
	relation_count BIGINT NOT NULL,
	filtered_count BIGINT NOT NULL,
	quality DOUBLE PRECISION NOT NULL,
	crimes BIGINT NOT NULL,
	articles BIGINT NOT NULL,
	data_hash TEXT NOT NULL,
	built_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_graph_builds_built_at ON graph_builds(built_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CaseRepository) ListLabeledCases(ctx context.Context) ([]domain.LabeledCase, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, accusations, relevant_articles
FROM labeled_cases
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query labeled cases: %w", err)
	}
	defer rows.Close()

	var out []domain.LabeledCase
	for rows.Next() {
		var c domain.LabeledCase
		var accusationsRaw, articlesRaw []byte
		if err := rows.Scan(&c.ID, &accusationsRaw, &articlesRaw); err != nil {
			return nil, fmt.Errorf("scan labeled case: %w", err)
		}
		if err := json.Unmarshal(accusationsRaw, &c.Accusations); err != nil {
			return nil, fmt.Errorf("unmarshal accusations for case %s: %w", c.ID, err)
		}
		if err := json.Unmarshal(articlesRaw, &c.RelevantArticles); err != nil {
			return nil, fmt.Errorf("unmarshal articles for case %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labeled cases: %w", err)
	}
	return out, nil
}

// UpsertLabeledCase loads one corpus row. Only the seeder writes here.
func (r *CaseRepository) UpsertLabeledCase(ctx context.Context, c domain.LabeledCase) error {
	accusationsJSON, err := json.Marshal(c.Accusations)
	if err != nil {
		return fmt.Errorf("marshal accusations: %w", err)
	}
	articlesJSON, err := json.Marshal(c.RelevantArticles)
	if err != nil {
		return fmt.Errorf("marshal articles: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO labeled_cases (id, accusations, relevant_articles, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET accusations = EXCLUDED.accusations, relevant_articles = EXCLUDED.relevant_articles
`, c.ID, accusationsJSON, articlesJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert labeled case: %w", err)
	}
	return nil
}

func (r *CaseRepository) SaveBuildReport(ctx context.Context, report domain.GraphBuildReport) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO graph_builds (version, case_count, relation_count, filtered_count, quality, crimes, articles, data_hash, built_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (version) DO NOTHING
`,
		report.Version, report.CaseCount, report.RelationCount, report.FilteredCount,
		report.Quality, report.Crimes, report.Articles, report.DataHash, report.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("insert build report: %w", err)
	}
	return nil
}

func (r *CaseRepository) LatestBuildReport(ctx context.Context) (domain.GraphBuildReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT version, case_count, relation_count, filtered_count, quality, crimes, articles, data_hash, built_at
FROM graph_builds
ORDER BY built_at DESC
LIMIT 1
`)

	var report domain.GraphBuildReport
	err := row.Scan(
		&report.Version, &report.CaseCount, &report.RelationCount, &report.FilteredCount,
		&report.Quality, &report.Crimes, &report.Articles, &report.DataHash, &report.BuiltAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GraphBuildReport{}, domain.WrapError(domain.ErrNotFound, "latest build report", err)
		}
		return domain.GraphBuildReport{}, fmt.Errorf("scan build report: %w", err)
	}
	return report, nil
}
