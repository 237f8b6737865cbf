// Package events defines the domain events published on the multicaster.
//
// Events are immutable values: subscribers receive them by value and must not
// rely on identity. Every event that takes part in project-config delegated
// dispatch implements ProjectEvent.
package events

import (
	"fmt"
	"reflect"
	"time"
)

// Event is anything that can be published on the multicaster.
type Event interface {
	// EventName is a stable, human readable identifier used in logs and metrics.
	EventName() string
}

// ProjectEvent is an event scoped to one project (tenant).
type ProjectEvent interface {
	Event
	ProjectID() int64
}

// Name returns ev.EventName(), falling back to the Go type name.
func Name(ev Event) string {
	if ev == nil {
		return "<nil>"
	}
	if name := ev.EventName(); name != "" {
		return name
	}
	return reflect.TypeOf(ev).String()
}

// ItemFinished is published when a test item reaches a final status.
type ItemFinished struct {
	ItemID     int64
	LaunchID   int64
	Project    int64
	Status     string
	FinishedAt time.Time
}

func (ItemFinished) EventName() string { return "item_finished" }

func (e ItemFinished) ProjectID() int64 { return e.Project }

func (e ItemFinished) String() string {
	return fmt.Sprintf("ItemFinished{item=%d launch=%d project=%d}", e.ItemID, e.LaunchID, e.Project)
}

// LaunchStarted is published once a launch has been created.
type LaunchStarted struct {
	LaunchID   int64
	LaunchUUID string
	Project    int64
	Name       string
}

func (LaunchStarted) EventName() string { return "launch_started" }

func (e LaunchStarted) ProjectID() int64 { return e.Project }

// LaunchFinished is published when a launch is finished. BaseURL is the UI
// address used by notification links.
type LaunchFinished struct {
	LaunchID   int64
	LaunchUUID string
	Project    int64
	Name       string
	UserID     int64
	BaseURL    string
	Statistics LaunchStatistics
}

func (LaunchFinished) EventName() string { return "launch_finished" }

func (e LaunchFinished) ProjectID() int64 { return e.Project }

// LaunchStatistics are the counters carried with a finished launch.
type LaunchStatistics struct {
	Total         int
	ToInvestigate int
	ProductBug    int
	AutomationBug int
	SystemIssue   int
}

// FailureRate returns the share of executions that ended with a defect.
func (s LaunchStatistics) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	defects := s.ToInvestigate + s.ProductBug + s.AutomationBug + s.SystemIssue
	return float64(defects) / float64(s.Total)
}

// AnalysisFinished is published after auto-analysis of a finished launch
// completed, whether or not analyzers actually ran.
type AnalysisFinished struct {
	LaunchID int64
	Project  int64
	BaseURL  string
}

func (AnalysisFinished) EventName() string { return "analysis_finished" }

func (e AnalysisFinished) ProjectID() int64 { return e.Project }
