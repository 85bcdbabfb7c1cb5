package ports

import (
	"context"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

// LegalQuestionService is the inbound contract for answering one free-text
// legal question with ranked statutes and cases.
type LegalQuestionService interface {
	Answer(ctx context.Context, question string) (*domain.Answer, error)
}

// GraphAdminService is the inbound contract of the administrative surface.
type GraphAdminService interface {
	RequestRebuild(ctx context.Context, force bool) error
	Rebuild(ctx context.Context, force bool) (domain.GraphBuildReport, error)
	Stats(ctx context.Context) (domain.GraphStats, error)
	Export(ctx context.Context) ([]domain.RelationRow, error)
	Expand(ctx context.Context, text string) (domain.QueryExpansion, error)
	RelationDetails(ctx context.Context, crime string, article int) (domain.RelationDetail, error)
}
