// Package cluster generates unique-error clusters for a launch by running a
// pipeline of part providers over a GenerateConfig.
package cluster

import (
	"context"
	"time"

	"github.com/drblury/reportflow/internal/runtime/projectconfig"
)

// LastRunAttributeKey is the launch attribute updated after each generation.
const LastRunAttributeKey = "rp.cluster.lastRun"

// EntityContext scopes a generation to a launch and, optionally, to items.
type EntityContext struct {
	LaunchID  int64
	ProjectID int64
	ItemIDs   []int64
}

// GenerateConfig describes one cluster generation request.
type GenerateConfig struct {
	EntityContext EntityContext
	// ForUpdate keeps existing clusters and merges the items into them.
	ForUpdate    bool
	CleanNumbers bool
	Analyzer     projectconfig.AnalyzerConfig
}

// Cluster is one group of logs sharing an error message.
type Cluster struct {
	Index   int64
	Message string
	ItemIDs []int64
	LogIDs  []int64
}

// Data is the analyzer response for one generation.
type Data struct {
	LaunchID  int64
	ProjectID int64
	Clusters  []Cluster
}

// Request is sent to the analyzer.
type Request struct {
	LaunchID         int64
	ProjectID        int64
	ItemIDs          []int64
	ForUpdate        bool
	CleanNumbers     bool
	NumberOfLogLines int
}

// AnalyzerClient talks to the analyzer services.
type AnalyzerClient interface {
	HasClients() bool
	GenerateClusters(ctx context.Context, rq Request) (Data, error)
}

// Store persists clusters and the last-run attribute.
type Store interface {
	DeleteLaunchClusters(ctx context.Context, launchID int64) error
	SaveClusters(ctx context.Context, data Data) error
	SaveLastRun(ctx context.Context, launchID int64, at time.Time) error
}

func newRequest(cfg GenerateConfig, itemIDs []int64) Request {
	return Request{
		LaunchID:         cfg.EntityContext.LaunchID,
		ProjectID:        cfg.EntityContext.ProjectID,
		ItemIDs:          itemIDs,
		ForUpdate:        cfg.ForUpdate,
		CleanNumbers:     cfg.CleanNumbers,
		NumberOfLogLines: cfg.Analyzer.NumberOfLogLines,
	}
}
