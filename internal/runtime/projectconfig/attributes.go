package projectconfig

import (
	"strconv"
	"strings"
)

// Project attribute keys read by the launch handlers.
const (
	AttrNotificationsEnabled     = "notifications.enabled"
	AttrAutoAnalyzerEnabled      = "analyzer.isAutoAnalyzerEnabled"
	AttrAutoAnalyzerMode         = "analyzer.autoAnalyzerMode"
	AttrMinShouldMatch           = "analyzer.minShouldMatch"
	AttrNumberOfLogLines         = "analyzer.numberOfLogLines"
	AttrAllMessagesShouldMatch   = "analyzer.allMessagesShouldMatch"
	AttrAutoUniqueErrorEnabled   = "analyzer.uniqueError.enabled"
	AttrUniqueErrorRemoveNumbers = "analyzer.uniqueError.removeNumbers"
	AttrPatternAnalysisEnabled   = "analyzer.isPatternAnalysisEnabled"
	AttrInterruptJobTime         = "job.interruptJobTime"
)

// Analyzer modes stored under AttrAutoAnalyzerMode.
const (
	ModeAllLaunches         = "ALL_LAUNCHES"
	ModeLaunchName          = "LAUNCH_NAME"
	ModeCurrentLaunch       = "CURRENT_LAUNCH"
	ModePreviousLaunch      = "PREVIOUS_LAUNCH"
	ModeCurrentAndSameName  = "CURRENT_AND_THE_SAME_NAME"
	DefaultAutoAnalyzerMode = ModeLaunchName
)

// Bool interprets attrs[key] as a boolean. "true", "yes", "on", "y" and "t"
// (any case) are true; everything else, including a missing key, is false.
func Bool(attrs map[string]string, key string) bool {
	switch strings.ToLower(strings.TrimSpace(attrs[key])) {
	case "true", "yes", "on", "y", "t":
		return true
	default:
		return false
	}
}

// String returns attrs[key] or fallback when the key is missing or blank.
func String(attrs map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(attrs[key]); v != "" {
		return v
	}
	return fallback
}

// Int returns attrs[key] parsed as an int, or fallback when the key is
// missing or malformed.
func Int(attrs map[string]string, key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(attrs[key]))
	if err != nil {
		return fallback
	}
	return v
}

// AnalyzerConfig is the analyzer section of a project configuration.
type AnalyzerConfig struct {
	AutoAnalyzerEnabled      bool
	Mode                     string
	MinShouldMatch           int
	NumberOfLogLines         int
	AllMessagesShouldMatch   bool
	UniqueErrorEnabled       bool
	UniqueErrorRemoveNumbers bool
}

// AnalyzerConfigFrom reads the analyzer attributes. Missing values take the
// server defaults: LAUNCH_NAME mode, 95% should-match and all log lines (-1).
func AnalyzerConfigFrom(attrs map[string]string) AnalyzerConfig {
	return AnalyzerConfig{
		AutoAnalyzerEnabled:      Bool(attrs, AttrAutoAnalyzerEnabled),
		Mode:                     String(attrs, AttrAutoAnalyzerMode, DefaultAutoAnalyzerMode),
		MinShouldMatch:           Int(attrs, AttrMinShouldMatch, 95),
		NumberOfLogLines:         Int(attrs, AttrNumberOfLogLines, -1),
		AllMessagesShouldMatch:   Bool(attrs, AttrAllMessagesShouldMatch),
		UniqueErrorEnabled:       Bool(attrs, AttrAutoUniqueErrorEnabled),
		UniqueErrorRemoveNumbers: Bool(attrs, AttrUniqueErrorRemoveNumbers),
	}
}
