package cluster

import (
	"context"
	"time"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	"github.com/drblury/reportflow/internal/runtime/pipeline"
	"github.com/drblury/reportflow/internal/runtime/strategy"
)

// DeleteClustersPartProvider removes stale launch clusters unless the
// generation is an update.
type DeleteClustersPartProvider struct {
	Store Store
}

func (DeleteClustersPartProvider) Name() string { return "delete-clusters" }

func (p DeleteClustersPartProvider) Provide(_ context.Context, cfg GenerateConfig) (pipeline.Part, error) {
	if cfg.ForUpdate {
		return pipeline.NoopPart{}, nil
	}
	launchID := cfg.EntityContext.LaunchID
	return pipeline.PartFunc(func(ctx context.Context) error {
		return p.Store.DeleteLaunchClusters(ctx, launchID)
	}), nil
}

// SaveClusterDataPartProvider resolves a DataProvider for the config, fetches
// the clusters and returns a part that saves them.
type SaveClusterDataPartProvider struct {
	Resolver *strategy.Resolver[GenerateConfig, DataProvider]
	Store    Store
}

func (SaveClusterDataPartProvider) Name() string { return "save-cluster-data" }

func (p SaveClusterDataPartProvider) Provide(ctx context.Context, cfg GenerateConfig) (pipeline.Part, error) {
	provider, ok := p.Resolver.Resolve(cfg)
	if !ok {
		return nil, errspkg.ErrNoDataProvider
	}
	data, ok, err := provider.Provide(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return pipeline.NoopPart{}, nil
	}
	return pipeline.PartFunc(func(ctx context.Context) error {
		return p.Store.SaveClusters(ctx, data)
	}), nil
}

// SaveLastRunPartProvider stamps the launch with the generation time.
type SaveLastRunPartProvider struct {
	Store Store
	Now   func() time.Time
}

func (SaveLastRunPartProvider) Name() string { return "save-last-run" }

func (p SaveLastRunPartProvider) Provide(_ context.Context, cfg GenerateConfig) (pipeline.Part, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	launchID := cfg.EntityContext.LaunchID
	return pipeline.PartFunc(func(ctx context.Context) error {
		return p.Store.SaveLastRun(ctx, launchID, now())
	}), nil
}
