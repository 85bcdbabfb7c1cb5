package postgres

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*CaseRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &CaseRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestListLabeledCasesDecodesJSONColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "accusations", "relevant_articles"}).
		AddRow("c1", []byte(`["盗窃"]`), []byte(`[264]`)).
		AddRow("c2", []byte(`["抢劫","故意伤害"]`), []byte(`[263,234]`))
	mock.ExpectQuery("SELECT id, accusations, relevant_articles").
		WillReturnRows(rows)

	cases, err := repo.ListLabeledCases(context.Background())
	if err != nil {
		t.Fatalf("ListLabeledCases() error = %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if !reflect.DeepEqual(cases[0].Accusations, []string{"盗窃"}) || !reflect.DeepEqual(cases[0].RelevantArticles, []int{264}) {
		t.Fatalf("unexpected first case: %+v", cases[0])
	}
	if len(cases[1].Accusations) != 2 || len(cases[1].RelevantArticles) != 2 {
		t.Fatalf("unexpected second case: %+v", cases[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListLabeledCasesRejectsMalformedJSON(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "accusations", "relevant_articles"}).
		AddRow("c1", []byte(`not json`), []byte(`[264]`))
	mock.ExpectQuery("SELECT id, accusations, relevant_articles").
		WillReturnRows(rows)

	if _, err := repo.ListLabeledCases(context.Background()); err == nil {
		t.Fatalf("expected error for malformed accusations json")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertLabeledCaseEncodesJSON(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO labeled_cases").
		WithArgs("c1", []byte(`["盗窃"]`), []byte(`[264,265]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertLabeledCase(context.Background(), domain.LabeledCase{
		ID:               "c1",
		Accusations:      []string{"盗窃"},
		RelevantArticles: []int{264, 265},
	})
	if err != nil {
		t.Fatalf("UpsertLabeledCase() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveBuildReportInsertsAllFields(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	builtAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO graph_builds").
		WithArgs(3, 1500, 4200, 310, 0.93, 120, 240, "abc123", builtAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveBuildReport(context.Background(), domain.GraphBuildReport{
		Version:       3,
		CaseCount:     1500,
		RelationCount: 4200,
		FilteredCount: 310,
		Quality:       0.93,
		Crimes:        120,
		Articles:      240,
		DataHash:      "abc123",
		BuiltAt:       builtAt,
	})
	if err != nil {
		t.Fatalf("SaveBuildReport() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLatestBuildReportReturnsNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT version, case_count, relation_count").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestBuildReport(context.Background())
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
