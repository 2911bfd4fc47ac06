package session

import (
	"github.com/theralink/sessionkit/logger"
	promkit "github.com/theralink/sessionkit/metrics/prometheus"
	"github.com/theralink/sessionkit/types"
)

// Subscriber handles results dispatched for one inbound event kind.
type Subscriber func(*types.AnalysisResult)

// subscription pairs a subscriber with a registry-assigned id so it can be
// removed later.
type subscription struct {
	id int
	fn Subscriber
}

// subscriberRegistry maps event kinds to ordered subscriber lists.
// Invocation order is registration order. Not goroutine-safe: the
// orchestrator serializes access.
type subscriberRegistry struct {
	nextID int
	byKind map[types.EventKind][]subscription
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{
		byKind: make(map[types.EventKind][]subscription),
	}
}

// add registers a subscriber and returns its id.
func (r *subscriberRegistry) add(kind types.EventKind, fn Subscriber) int {
	r.nextID++
	r.byKind[kind] = append(r.byKind[kind], subscription{id: r.nextID, fn: fn})
	return r.nextID
}

// remove drops the subscriber with the given id. Unknown ids are a no-op.
func (r *subscriberRegistry) remove(kind types.EventKind, id int) {
	subs := r.byKind[kind]
	for i, sub := range subs {
		if sub.id == id {
			r.byKind[kind] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// snapshot returns the current subscribers for a kind in registration order.
func (r *subscriberRegistry) snapshot(kind types.EventKind) []subscription {
	subs := r.byKind[kind]
	out := make([]subscription, len(subs))
	copy(out, subs)
	return out
}

// invoke calls each subscriber in registration order. A panicking subscriber
// is logged and skipped; it never prevents the remaining subscribers from
// running.
func invoke(kind types.EventKind, subs []subscription, result *types.AnalysisResult) {
	for _, sub := range subs {
		safeInvoke(kind, sub, result)
	}
}

func safeInvoke(kind types.EventKind, sub subscription, result *types.AnalysisResult) {
	defer func() {
		if rec := recover(); rec != nil {
			promkit.RecordSubscriberPanic(string(kind))
			logger.Error("subscriber panicked during dispatch",
				"event", kind, "subscriber_id", sub.id, "panic", rec)
		}
	}()
	sub.fn(result)
}
