package usecase

import (
	"sync/atomic"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

// GraphProvider owns the process-lifetime relation graph pointer. Readers
// get a consistent snapshot; rebuilds replace the whole graph atomically, so
// in-flight readers never observe a half-built graph.
type GraphProvider struct {
	current atomic.Pointer[domain.RelationGraph]
}

func NewGraphProvider() *GraphProvider {
	return &GraphProvider{}
}

func (p *GraphProvider) Get() (*domain.RelationGraph, bool) {
	graph := p.current.Load()
	return graph, graph != nil
}

// Replace swaps the active graph. The new graph must already be validated.
func (p *GraphProvider) Replace(graph *domain.RelationGraph) {
	p.current.Store(graph)
}
