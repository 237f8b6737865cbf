// Package metadata holds the header map carried by reporting envelopes and the
// well-known keys the reporting consumer reads.
package metadata

import "strconv"

// Well-known envelope headers.
const (
	KeyRequestType   = "requestType"
	KeyUsername      = "username"
	KeyProjectName   = "projectName"
	KeyProjectID     = "projectId"
	KeyLaunchID      = "launchId"
	KeyLaunchUUID    = "launchUuid"
	KeyItemID        = "itemId"
	KeyParentItemID  = "parentItemId"
	KeyBaseURL       = "baseUrl"
	KeyCorrelationID = "correlation_id"
	KeyDeathCount    = "x-death-count"
	KeyParkedReason  = "parked_reason"
)

// Metadata represents the headers carried alongside a reporting message.
type Metadata map[string]string

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a copy containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// Int64 parses the value stored under key. Missing or malformed values report false.
func (m Metadata) Int64(key string) (int64, bool) {
	raw, ok := m[key]
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
