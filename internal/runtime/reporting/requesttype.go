// Package reporting routes inbound reporting messages to exactly one handler
// keyed by the request type header.
package reporting

import "strings"

// RequestType is the routing tag carried under metadata.KeyRequestType.
type RequestType string

const (
	StartLaunch  RequestType = "START_LAUNCH"
	FinishLaunch RequestType = "FINISH_LAUNCH"
	StartTest    RequestType = "START_TEST"
	FinishTest   RequestType = "FINISH_TEST"
	Log          RequestType = "LOG"
)

var requestTypes = []RequestType{StartLaunch, FinishLaunch, StartTest, FinishTest, Log}

// RequestTypes lists the closed set of known tags.
func RequestTypes() []RequestType {
	return append([]RequestType(nil), requestTypes...)
}

// ParseRequestType maps a raw header value onto the closed tag set. Matching
// ignores case and surrounding spaces. Values outside the set report false.
func ParseRequestType(raw string) (RequestType, bool) {
	candidate := RequestType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, rt := range requestTypes {
		if rt == candidate {
			return rt, true
		}
	}
	return "", false
}

func (rt RequestType) String() string { return string(rt) }

// Valid reports whether rt belongs to the known tag set.
func (rt RequestType) Valid() bool {
	for _, known := range requestTypes {
		if rt == known {
			return true
		}
	}
	return false
}
