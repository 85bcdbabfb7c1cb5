package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
	"github.com/qinyuanle/legal-qa-engine/internal/core/ports"
)

// GraphAdminUseCase exposes the relation graph to the administrative surface.
// Reads go against the live provider; rebuilds are either dispatched to the
// worker through the trigger or executed inline when a builder is wired.
type GraphAdminUseCase struct {
	graphs  *GraphProvider
	builder *GraphBuilder
	trigger ports.RebuildTrigger
}

func NewGraphAdminUseCase(graphs *GraphProvider, builder *GraphBuilder, trigger ports.RebuildTrigger) *GraphAdminUseCase {
	return &GraphAdminUseCase{graphs: graphs, builder: builder, trigger: trigger}
}

func (u *GraphAdminUseCase) RequestRebuild(ctx context.Context, force bool) error {
	if u.trigger == nil {
		return domain.WrapError(domain.ErrTemporary, "request rebuild", fmt.Errorf("no rebuild trigger configured"))
	}
	if err := u.trigger.PublishRebuildRequested(ctx, force); err != nil {
		return domain.WrapError(domain.ErrTemporary, "request rebuild", err)
	}
	return nil
}

func (u *GraphAdminUseCase) Rebuild(ctx context.Context, force bool) (domain.GraphBuildReport, error) {
	if u.builder == nil {
		return domain.GraphBuildReport{}, domain.WrapError(domain.ErrTemporary, "rebuild graph", fmt.Errorf("no builder configured"))
	}
	return u.builder.Rebuild(ctx, force)
}

func (u *GraphAdminUseCase) Stats(ctx context.Context) (domain.GraphStats, error) {
	graph, err := u.live()
	if err != nil {
		return domain.GraphStats{}, err
	}
	return graph.Stats(), nil
}

func (u *GraphAdminUseCase) Export(ctx context.Context) ([]domain.RelationRow, error) {
	graph, err := u.live()
	if err != nil {
		return nil, err
	}
	return graph.ExportRelations(), nil
}

func (u *GraphAdminUseCase) Expand(ctx context.Context, text string) (domain.QueryExpansion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.QueryExpansion{}, domain.WrapError(domain.ErrInvalidInput, "expand query", fmt.Errorf("text is required"))
	}
	graph, err := u.live()
	if err != nil {
		return domain.QueryExpansion{}, err
	}
	return graph.ExpandQuery(text), nil
}

func (u *GraphAdminUseCase) RelationDetails(ctx context.Context, crime string, article int) (domain.RelationDetail, error) {
	crime = strings.TrimSpace(crime)
	if crime == "" || article <= 0 {
		return domain.RelationDetail{}, domain.WrapError(domain.ErrInvalidInput, "relation details", fmt.Errorf("crime and article are required"))
	}
	graph, err := u.live()
	if err != nil {
		return domain.RelationDetail{}, err
	}
	return graph.RelationDetails(crime, article), nil
}

func (u *GraphAdminUseCase) live() (*domain.RelationGraph, error) {
	graph, ok := u.graphs.Get()
	if !ok {
		return nil, domain.WrapError(domain.ErrRelationGraphUnavailable, "read graph", fmt.Errorf("no graph loaded"))
	}
	return graph, nil
}
