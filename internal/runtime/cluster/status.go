package cluster

import "sync"

// StatusCache tracks launches whose clusters are being generated.
type StatusCache struct {
	mu      sync.Mutex
	running map[int64]int64
}

// NewStatusCache returns an empty cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{running: make(map[int64]int64)}
}

// Start marks launchID as in progress. It reports false when a generation
// for the launch is already running.
func (c *StatusCache) Start(launchID, projectID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.running[launchID]; busy {
		return false
	}
	c.running[launchID] = projectID
	return true
}

// Finish releases launchID.
func (c *StatusCache) Finish(launchID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, launchID)
}

// InProgress reports whether launchID is being processed.
func (c *StatusCache) InProgress(launchID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.running[launchID]
	return busy
}
