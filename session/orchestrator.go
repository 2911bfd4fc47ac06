// Package session implements the session-scoped orchestrator at the core of
// sessionkit: it coordinates capture cadence, queues outgoing analysis
// requests while the channel is down, dispatches incoming results to
// subscribers, and maintains rolling windows of recent results per modality.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/theralink/sessionkit/logger"
	promkit "github.com/theralink/sessionkit/metrics/prometheus"
	"github.com/theralink/sessionkit/resultstore"
	"github.com/theralink/sessionkit/transport"
	"github.com/theralink/sessionkit/types"
)

// Transport is the slice of the channel the orchestrator depends on.
// *transport.Channel satisfies it.
type Transport interface {
	State() transport.ConnectionState
	Send(event types.EventKind, payload interface{}) error
}

// Config configures an Orchestrator.
type Config struct {
	// Transport carries events to and from the analysis backend. Required.
	Transport Transport

	// Store receives every dispatched result, capped per modality.
	// Optional; nil disables result persistence.
	Store resultstore.Store

	// QueueCapacity bounds the pending queue. Defaults to
	// DefaultQueueCapacity.
	QueueCapacity int

	// OnReconnectExhausted is invoked once when the channel gives up
	// reconnecting. Optional.
	OnReconnectExhausted func(error)
}

// Orchestrator is the single source of truth for a live analysis session:
// queuing policy, result fan-out, and rolling result history. One instance
// is owned by the embedding application's session lifecycle: constructed at
// session start, closed at session end.
//
// All mutable state is serialized behind one mutex; dispatch callbacks run
// outside it so subscribers may call back into query methods.
type Orchestrator struct {
	mu sync.Mutex

	transport Transport
	store     resultstore.Store
	queue     *pendingQueue
	subs      *subscriberRegistry

	sessionID string
	config    types.SessionConfig

	stress     *rollingWindow
	emotion    *rollingWindow
	engagement *rollingWindow
	heartRate  *rollingWindow
	sentiment  *rollingWindow
	micro      *markerWindow

	lastEmotions map[string]float64

	onExhausted func(error)

	// now is swapped in window tests to control pruning.
	now func() time.Time
}

// New creates an orchestrator. The caller wires it to the channel by passing
// the orchestrator as the channel's Handler.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	return &Orchestrator{
		transport:   cfg.Transport,
		store:       cfg.Store,
		queue:       newPendingQueue(cfg.QueueCapacity),
		subs:        newSubscriberRegistry(),
		stress:      newRollingWindow(DefaultWindowDuration),
		emotion:     newRollingWindow(DefaultWindowDuration),
		engagement:  newRollingWindow(DefaultWindowDuration),
		heartRate:   newRollingWindow(DefaultWindowDuration),
		sentiment:   newRollingWindow(DefaultWindowDuration),
		micro:       newMarkerWindow(MicroexpressionWindowDuration),
		onExhausted: cfg.OnReconnectExhausted,
		now:         time.Now,
	}, nil
}

// StartSession resolves the configuration, generates a session identifier
// when none is supplied, and emits a start event if the channel is
// Connected. Starting while disconnected does NOT queue the start event:
// sessions are not meaningfully startable offline. The resolved identifier
// is returned synchronously either way.
func (o *Orchestrator) StartSession(cfg types.SessionConfig) string {
	cfg.Defaults()
	if cfg.Session.SessionID == "" {
		cfg.Session.SessionID = fmt.Sprintf("session_%d", o.nowFunc().UnixMilli())
	}

	o.mu.Lock()
	o.sessionID = cfg.Session.SessionID
	o.config = cfg
	o.mu.Unlock()

	if o.transport.State() != transport.StateConnected {
		logger.Warn("session started while disconnected, start event not sent",
			"session_id", cfg.Session.SessionID)
		return cfg.Session.SessionID
	}

	if err := o.transport.Send(types.EventStartAnalysis, cfg); err != nil {
		promkit.RecordEventSent(string(types.EventStartAnalysis), "error")
		logger.Error("failed to send session start", "error", err,
			"session_id", cfg.Session.SessionID)
	} else {
		promkit.RecordEventSent(string(types.EventStartAnalysis), "success")
		logger.Info("session started", "session_id", cfg.Session.SessionID,
			"session_type", cfg.Session.SessionType)
	}
	return cfg.Session.SessionID
}

// StopSession emits a stop event for the session if the channel is
// Connected; otherwise it is a no-op (the stop is not queued).
func (o *Orchestrator) StopSession(sessionID string) {
	if o.transport.State() != transport.StateConnected {
		return
	}

	payload := map[string]string{"session_id": sessionID}
	if err := o.transport.Send(types.EventStopAnalysis, payload); err != nil {
		promkit.RecordEventSent(string(types.EventStopAnalysis), "error")
		logger.Error("failed to send session stop", "error", err,
			"session_id", sessionID)
		return
	}
	promkit.RecordEventSent(string(types.EventStopAnalysis), "success")
	logger.Info("session stopped", "session_id", sessionID)
}

// SessionID returns the identifier of the current session, or "" before
// StartSession.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Submit stamps the request and either sends it immediately (Connected) or
// appends it to the pending queue, evicting the oldest entry on overflow.
// It never blocks and never returns an error to the producer: submission is
// fire-and-forget.
func (o *Orchestrator) Submit(req *types.AnalysisRequest) {
	if req == nil {
		return
	}
	if req.CapturedAt == 0 {
		req.CapturedAt = o.nowFunc().UnixMilli()
	}

	o.mu.Lock()
	if req.SessionID == "" {
		req.SessionID = o.sessionID
	}

	if o.transport.State() == transport.StateConnected {
		o.mu.Unlock()
		o.sendRequest(req)
		return
	}

	o.enqueueLocked(req)
	o.mu.Unlock()
}

// sendRequest dispatches one request on the channel. A failed send re-queues
// the request: the channel does not retry individual sends, so the request
// waits for the next reconnection drain instead.
func (o *Orchestrator) sendRequest(req *types.AnalysisRequest) bool {
	if err := o.transport.Send(req.Event(), req); err != nil {
		promkit.RecordEventSent(string(req.Event()), "error")
		logger.Warn("send failed, request re-queued",
			"event", req.Event(), "request_id", req.ID, "error", err)
		o.mu.Lock()
		o.enqueueLocked(req)
		o.mu.Unlock()
		return false
	}
	promkit.RecordEventSent(string(req.Event()), "success")
	return true
}

// enqueueLocked appends to the pending queue under o.mu.
func (o *Orchestrator) enqueueLocked(req *types.AnalysisRequest) {
	if dropped := o.queue.push(req); dropped != nil {
		// Drop-oldest is the defined backpressure policy, not an error.
		promkit.RecordDroppedRequest(string(dropped.Modality))
		logger.Debug("pending queue full, oldest request dropped",
			"dropped_id", dropped.ID, "modality", dropped.Modality)
	}
	promkit.SetPendingQueueDepth(o.queue.len())
}

// QueueDepth returns the number of requests waiting for reconnection.
func (o *Orchestrator) QueueDepth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.len()
}

// Subscribe registers a callback for one inbound event kind. Callbacks for
// a kind run in registration order. The returned id is passed to
// Unsubscribe.
func (o *Orchestrator) Subscribe(kind types.EventKind, fn Subscriber) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.subs.add(kind, fn)
}

// Unsubscribe removes a previously registered callback.
func (o *Orchestrator) Unsubscribe(kind types.EventKind, id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs.remove(kind, id)
}

// HandleConnected implements transport.Handler: on every (re)connection the
// pending queue is drained entirely, each request dispatched exactly once in
// FIFO submission order. If the channel fails mid-drain, the undispatched
// tail is put back in order.
func (o *Orchestrator) HandleConnected() {
	promkit.RecordReconnect("success")

	o.mu.Lock()
	pending := o.queue.drain()
	o.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	logger.Info("draining pending queue", "requests", len(pending))
	for i, req := range pending {
		if err := o.transport.Send(req.Event(), req); err != nil {
			promkit.RecordEventSent(string(req.Event()), "error")
			logger.Warn("drain interrupted, re-queuing remainder",
				"sent", i, "remaining", len(pending)-i, "error", err)
			o.mu.Lock()
			o.queue.requeue(pending[i:])
			promkit.SetPendingQueueDepth(o.queue.len())
			o.mu.Unlock()
			return
		}
		promkit.RecordEventSent(string(req.Event()), "success")
	}

	o.mu.Lock()
	promkit.SetPendingQueueDepth(o.queue.len())
	o.mu.Unlock()
}

// HandleReconnectExhausted implements transport.Handler. Exhausted retries
// are surfaced to the embedding application, never fatal to the process.
func (o *Orchestrator) HandleReconnectExhausted(err error) {
	promkit.RecordReconnect("exhausted")
	logger.Error("analysis channel gave up reconnecting", "error", err)
	if o.onExhausted != nil {
		o.onExhausted(err)
	}
}

// HandleDeliver implements transport.Handler: it decodes the inbound
// payload, updates the relevant rolling windows, invokes subscribers in
// registration order, and appends the result to the store. A malformed
// payload is logged and skipped; other deliveries are unaffected.
func (o *Orchestrator) HandleDeliver(event types.EventKind, payload json.RawMessage) {
	promkit.RecordEventReceived(string(event))

	result, err := types.DecodeResult(event, payload)
	if err != nil {
		logger.Warn("discarding malformed result payload",
			"event", event, "error", err)
		return
	}
	if result == nil {
		logger.Debug("ignoring unhandled event", "event", event)
		return
	}

	o.mu.Lock()
	o.updateWindowsLocked(result)
	subs := o.subs.snapshot(event)
	o.mu.Unlock()

	invoke(event, subs, result)

	if o.store != nil {
		if err := o.store.Append(context.Background(), result.Modality, result); err != nil {
			logger.Warn("failed to persist result", "modality", result.Modality, "error", err)
		}
	}
}

// updateWindowsLocked folds one result into the rolling windows. Caller
// holds o.mu.
func (o *Orchestrator) updateWindowsLocked(result *types.AnalysisResult) {
	at := result.ReceivedAt

	switch {
	case result.Video != nil:
		v := result.Video
		if len(v.Emotions) > 0 {
			name, score := v.DominantEmotion()
			o.emotion.append(at, score)
			o.lastEmotions = v.Emotions
			logger.Debug("video result", "dominant_emotion", name, "score", score)
		}
		if v.StressLevel != nil {
			o.stress.append(at, *v.StressLevel)
		}
		if v.EngagementLevel != nil {
			o.engagement.append(at, *v.EngagementLevel)
		}
		for _, label := range v.Microexpressions {
			o.micro.append(at, label)
		}

	case result.Biometric != nil:
		b := result.Biometric
		if b.CurrentState.HeartRate > 0 {
			o.heartRate.append(at, b.CurrentState.HeartRate)
		}
		if b.StressLevel != nil {
			o.stress.append(at, *b.StressLevel)
		}
		for _, alert := range b.Alerts {
			logger.Warn("biometric alert", "kind", alert.Kind,
				"severity", alert.Severity, "message", alert.Message)
		}

	case result.Text != nil:
		t := result.Text
		if t.Sentiment != nil {
			o.sentiment.append(at, *t.Sentiment)
		}
		if t.RiskLevel == "high" || t.RiskLevel == "critical" {
			logger.Warn("elevated risk level in text analysis",
				"risk_level", t.RiskLevel, "topics", t.Topics)
		}

	case result.Comprehensive != nil:
		c := result.Comprehensive
		if c.StressLevel != nil {
			o.stress.append(at, *c.StressLevel)
		}
		if c.EngagementLevel != nil {
			o.engagement.append(at, *c.EngagementLevel)
		}
	}
}

func (o *Orchestrator) nowFunc() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now()
}
