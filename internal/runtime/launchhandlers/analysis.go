package launchhandlers

import (
	"context"
	"fmt"

	"github.com/drblury/reportflow/internal/runtime/cluster"
	"github.com/drblury/reportflow/internal/runtime/events"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	"github.com/drblury/reportflow/internal/runtime/projectconfig"
)

// Analyzer is the analyzer service as seen by the auto-analysis runner.
type Analyzer interface {
	HasAnalyzers() bool
	IndexLaunchLogs(ctx context.Context, ev events.LaunchFinished, cfg projectconfig.AnalyzerConfig) (int64, error)
	CollectToInvestigate(ctx context.Context, projectID, launchID int64) ([]int64, error)
	RunAnalyzers(ctx context.Context, launchID int64, itemIDs []int64, cfg projectconfig.AnalyzerConfig) error
	IndexItemsLogs(ctx context.Context, projectID, launchID int64, itemIDs []int64, cfg projectconfig.AnalyzerConfig) error
}

// EventPublisher is satisfied by *multicaster.Multicaster.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// AutoAnalysisRunner indexes the logs of a finished launch and, when the
// project enables auto-analysis, analyzes its to-investigate items. It
// publishes AnalysisFinished once the work is done.
type AutoAnalysisRunner struct {
	Analyzer  Analyzer
	Publisher EventPublisher
	Logger    loggingpkg.ServiceLogger
}

func (AutoAnalysisRunner) Name() string { return "launch-auto-analysis" }

func (r AutoAnalysisRunner) Handle(ctx context.Context, ev events.LaunchFinished, config map[string]string) error {
	log := loggingpkg.OrNop(r.Logger).With(loggingpkg.LogFields{"launch_id": ev.LaunchID})
	if r.Analyzer == nil || !r.Analyzer.HasAnalyzers() {
		log.Debug("No analyzers deployed, skipping auto-analysis", nil)
		return nil
	}
	cfg := projectconfig.AnalyzerConfigFrom(config)

	indexed, err := r.Analyzer.IndexLaunchLogs(ctx, ev, cfg)
	if err != nil {
		return fmt.Errorf("index logs of launch %d: %w", ev.LaunchID, err)
	}
	log.Debug("Launch logs indexed", loggingpkg.LogFields{"logs": indexed})

	if cfg.AutoAnalyzerEnabled {
		itemIDs, err := r.Analyzer.CollectToInvestigate(ctx, ev.Project, ev.LaunchID)
		if err != nil {
			return fmt.Errorf("collect items of launch %d: %w", ev.LaunchID, err)
		}
		if err := r.Analyzer.RunAnalyzers(ctx, ev.LaunchID, itemIDs, cfg); err != nil {
			return fmt.Errorf("analyze launch %d: %w", ev.LaunchID, err)
		}
		if err := r.Analyzer.IndexItemsLogs(ctx, ev.Project, ev.LaunchID, itemIDs, cfg); err != nil {
			return fmt.Errorf("index analyzed items of launch %d: %w", ev.LaunchID, err)
		}
	}

	if r.Publisher != nil {
		r.Publisher.Publish(ctx, events.AnalysisFinished{
			LaunchID: ev.LaunchID,
			Project:  ev.Project,
			BaseURL:  ev.BaseURL,
		})
	}
	return nil
}

// ClusterGenerator is satisfied by *cluster.Generator.
type ClusterGenerator interface {
	Generate(ctx context.Context, cfg cluster.GenerateConfig) error
}

// UniqueErrorRunner regenerates launch clusters after auto-analysis when the
// project enables unique error analysis.
type UniqueErrorRunner struct {
	Generator ClusterGenerator
}

func (UniqueErrorRunner) Name() string { return "launch-unique-error" }

func (r UniqueErrorRunner) Handle(ctx context.Context, ev events.AnalysisFinished, config map[string]string) error {
	cfg := projectconfig.AnalyzerConfigFrom(config)
	if !cfg.UniqueErrorEnabled {
		return nil
	}
	return r.Generator.Generate(ctx, cluster.GenerateConfig{
		EntityContext: cluster.EntityContext{LaunchID: ev.LaunchID, ProjectID: ev.Project},
		CleanNumbers:  cfg.UniqueErrorRemoveNumbers,
		Analyzer:      cfg,
	})
}
