package reporting

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DefaultQueuePrefix names the sharded reporting queues.
const DefaultQueuePrefix = "reporting"

// QueueSelector spreads launches over a fixed number of queues. Every request
// of one launch lands on the same queue so a single consumer sees them in
// order.
type QueueSelector struct {
	prefix string
	count  int
}

// NewQueueSelector returns a selector over count queues named prefix.<n>.
// A count below one is treated as one.
func NewQueueSelector(prefix string, count int) QueueSelector {
	if prefix == "" {
		prefix = DefaultQueuePrefix
	}
	if count < 1 {
		count = 1
	}
	return QueueSelector{prefix: prefix, count: count}
}

// Select returns the queue that owns launchUUID.
func (s QueueSelector) Select(launchUUID string) string {
	return s.queue(int(xxhash.Sum64String(launchUUID) % uint64(s.count)))
}

// Queues lists every queue the selector may return.
func (s QueueSelector) Queues() []string {
	out := make([]string, s.count)
	for i := range out {
		out[i] = s.queue(i)
	}
	return out
}

func (s QueueSelector) queue(n int) string {
	return s.prefix + "." + strconv.Itoa(n)
}
