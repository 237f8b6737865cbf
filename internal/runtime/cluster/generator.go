package cluster

import (
	"context"
	"fmt"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	"github.com/drblury/reportflow/internal/runtime/multicaster"
	"github.com/drblury/reportflow/internal/runtime/pipeline"
)

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithExecutor runs generations on e instead of the calling goroutine.
func WithExecutor(e multicaster.Executor) GeneratorOption {
	return func(g *Generator) { g.executor = e }
}

// WithLogger sets the generator logger.
func WithLogger(log loggingpkg.ServiceLogger) GeneratorOption {
	return func(g *Generator) { g.logger = log }
}

// WithStatusCache shares the in-progress guard with other analyzers.
func WithStatusCache(c *StatusCache) GeneratorOption {
	return func(g *Generator) { g.status = c }
}

// Generator builds and runs the cluster pipeline for one launch at a time.
type Generator struct {
	constructor *pipeline.Constructor[GenerateConfig]
	status      *StatusCache
	executor    multicaster.Executor
	logger      loggingpkg.ServiceLogger
}

// NewGenerator wires the standard part providers: delete stale clusters,
// save cluster data and stamp the last run.
func NewGenerator(analyzer AnalyzerClient, store Store, opts ...GeneratorOption) (*Generator, error) {
	if store == nil {
		return nil, errspkg.ErrProviderRequired
	}
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = loggingpkg.OrNop(g.logger).With(loggingpkg.LogFields{"component": "cluster-generator"})
	if g.status == nil {
		g.status = NewStatusCache()
	}
	if g.executor == nil {
		g.executor = multicaster.SyncExecutor{}
	}

	constructor, err := pipeline.NewConstructor[GenerateConfig](g.logger,
		DeleteClustersPartProvider{Store: store},
		SaveClusterDataPartProvider{Resolver: NewDataResolver(analyzer), Store: store},
		SaveLastRunPartProvider{Store: store},
	)
	if err != nil {
		return nil, err
	}
	g.constructor = constructor
	return g, nil
}

// Generate refuses to start while the launch is being processed, then runs
// the pipeline on the executor. Pipeline failures are logged; the guard is
// released in every case.
func (g *Generator) Generate(ctx context.Context, cfg GenerateConfig) error {
	launchID := cfg.EntityContext.LaunchID
	if !g.status.Start(launchID, cfg.EntityContext.ProjectID) {
		return fmt.Errorf("launch %d: %w", launchID, errspkg.ErrAnalysisInProgress)
	}

	err := g.executor.Execute(ctx, func(ctx context.Context) {
		defer g.status.Finish(launchID)
		if err := g.run(ctx, cfg); err != nil {
			g.logger.Error("Cluster generation failed", err, loggingpkg.LogFields{
				"launch_id":  launchID,
				"project_id": cfg.EntityContext.ProjectID,
			})
		}
	})
	if err != nil {
		g.status.Finish(launchID)
		return fmt.Errorf("submit cluster generation for launch %d: %w", launchID, err)
	}
	return nil
}

// InProgress reports whether clusters of launchID are being generated.
func (g *Generator) InProgress(launchID int64) bool {
	return g.status.InProgress(launchID)
}

func (g *Generator) run(ctx context.Context, cfg GenerateConfig) error {
	p, err := g.constructor.Construct(ctx, cfg)
	if err != nil {
		return err
	}
	if err := p.Run(ctx); err != nil {
		return err
	}
	g.logger.Debug("Clusters generated", loggingpkg.LogFields{
		"launch_id": cfg.EntityContext.LaunchID,
		"parts":     p.Len(),
	})
	return nil
}
