package cluster

import (
	"context"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	"github.com/drblury/reportflow/internal/runtime/strategy"
)

// DataProvider asks the analyzer for clusters. The boolean is false when
// there is nothing to cluster.
type DataProvider interface {
	Provide(ctx context.Context, cfg GenerateConfig) (Data, bool, error)
}

// LaunchDataProvider clusters every log of the launch.
type LaunchDataProvider struct {
	Analyzer AnalyzerClient
}

func (p LaunchDataProvider) Provide(ctx context.Context, cfg GenerateConfig) (Data, bool, error) {
	if p.Analyzer == nil || !p.Analyzer.HasClients() {
		return Data{}, false, errspkg.ErrNoAnalyzer
	}
	data, err := p.Analyzer.GenerateClusters(ctx, newRequest(cfg, nil))
	if err != nil {
		return Data{}, false, err
	}
	return data, true, nil
}

// ItemDataProvider clusters only the logs of the configured items.
type ItemDataProvider struct {
	Analyzer AnalyzerClient
}

func (p ItemDataProvider) Provide(ctx context.Context, cfg GenerateConfig) (Data, bool, error) {
	if p.Analyzer == nil || !p.Analyzer.HasClients() {
		return Data{}, false, errspkg.ErrNoAnalyzer
	}
	if len(cfg.EntityContext.ItemIDs) == 0 {
		return Data{}, false, nil
	}
	itemIDs := append([]int64(nil), cfg.EntityContext.ItemIDs...)
	data, err := p.Analyzer.GenerateClusters(ctx, newRequest(cfg, itemIDs))
	if err != nil {
		return Data{}, false, err
	}
	return data, true, nil
}

// NewDataResolver orders the item provider before the launch fallback.
func NewDataResolver(analyzer AnalyzerClient) *strategy.Resolver[GenerateConfig, DataProvider] {
	return strategy.MustResolver(
		strategy.Evaluator[GenerateConfig, DataProvider]{
			Supports: func(cfg GenerateConfig) bool { return cfg.ForUpdate },
			Strategy: ItemDataProvider{Analyzer: analyzer},
		},
		strategy.Evaluator[GenerateConfig, DataProvider]{
			Supports: func(cfg GenerateConfig) bool { return !cfg.ForUpdate },
			Strategy: LaunchDataProvider{Analyzer: analyzer},
		},
	)
}
