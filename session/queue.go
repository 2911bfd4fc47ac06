package session

import (
	"github.com/theralink/sessionkit/types"
)

// DefaultQueueCapacity bounds the pending queue while disconnected.
const DefaultQueueCapacity = 50

// pendingQueue is a capacity-bounded FIFO of analysis requests awaiting
// reconnection. On overflow the oldest entry is evicted; producers never
// block. It is not goroutine-safe: the orchestrator serializes access.
type pendingQueue struct {
	capacity int
	requests []*types.AnalysisRequest
}

func newPendingQueue(capacity int) *pendingQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &pendingQueue{capacity: capacity}
}

// push appends a request, evicting and returning the oldest entry when the
// queue is full. Returns nil when nothing was dropped.
func (q *pendingQueue) push(req *types.AnalysisRequest) *types.AnalysisRequest {
	var dropped *types.AnalysisRequest
	if len(q.requests) >= q.capacity {
		dropped = q.requests[0]
		q.requests = q.requests[1:]
	}
	q.requests = append(q.requests, req)
	return dropped
}

// drain removes and returns all queued requests in FIFO submission order.
func (q *pendingQueue) drain() []*types.AnalysisRequest {
	out := q.requests
	q.requests = nil
	return out
}

// requeue puts undispatched requests back at the front, preserving their
// original order. Used when a drain is interrupted by another disconnect.
func (q *pendingQueue) requeue(reqs []*types.AnalysisRequest) {
	if len(reqs) == 0 {
		return
	}
	combined := make([]*types.AnalysisRequest, 0, len(reqs)+len(q.requests))
	combined = append(combined, reqs...)
	combined = append(combined, q.requests...)
	if len(combined) > q.capacity {
		combined = combined[len(combined)-q.capacity:]
	}
	q.requests = combined
}

func (q *pendingQueue) len() int {
	return len(q.requests)
}
