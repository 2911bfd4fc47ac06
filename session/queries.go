package session

import (
	"sort"
	"time"

	"github.com/theralink/sessionkit/types"
)

// Summary describes the recent history of one rolling window.
type Summary struct {
	Modality types.Modality
	Count    int
	Latest   float64
	Mean     float64

	// Trend is nil when the window holds fewer than two samples.
	Trend *Trend
}

// windowForLocked maps a modality to its primary rolling window. Caller
// holds o.mu.
func (o *Orchestrator) windowForLocked(modality types.Modality) *rollingWindow {
	switch modality {
	case types.ModalityBiometric:
		return o.heartRate
	case types.ModalityText:
		return o.sentiment
	case types.ModalityComprehensive:
		return o.stress
	default:
		return o.emotion
	}
}

// Trend returns the split-halves trend for the modality's primary window:
// dominant-emotion score for video, heart rate for biometric, sentiment for
// text, stress for comprehensive. Returns nil when fewer than two samples
// exist.
func (o *Orchestrator) Trend(modality types.Modality) *Trend {
	o.mu.Lock()
	defer o.mu.Unlock()
	return computeTrend(o.windowForLocked(modality).snapshot(o.now()))
}

// StressTrend returns the trend over the shared stress window, fed by video,
// biometric, and comprehensive results alike.
func (o *Orchestrator) StressTrend() *Trend {
	o.mu.Lock()
	defer o.mu.Unlock()
	return computeTrend(o.stress.snapshot(o.now()))
}

// Summary returns count, latest, mean, and trend for the modality's primary
// window. Returns nil when the window is empty.
func (o *Orchestrator) Summary(modality types.Modality) *Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return summarize(modality, o.windowForLocked(modality), o.now())
}

// StressSummary returns a summary of the shared stress window.
func (o *Orchestrator) StressSummary() *Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return summarize(types.ModalityComprehensive, o.stress, o.now())
}

func summarize(modality types.Modality, w *rollingWindow, now time.Time) *Summary {
	samples := w.snapshot(now)
	if len(samples) == 0 {
		return nil
	}
	return &Summary{
		Modality: modality,
		Count:    len(samples),
		Latest:   samples[len(samples)-1].Value,
		Mean:     mean(samples),
		Trend:    computeTrend(samples),
	}
}

// PrimaryEmotion returns the dominant emotion from the most recent video
// result. Ties break to the lexicographically smallest emotion name.
// Returns ("", 0) before any video result arrives.
func (o *Orchestrator) PrimaryEmotion() (string, float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.lastEmotions) == 0 {
		return "", 0
	}

	names := make([]string, 0, len(o.lastEmotions))
	for name := range o.lastEmotions {
		names = append(names, name)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if o.lastEmotions[name] > o.lastEmotions[best] {
			best = name
		}
	}
	return best, o.lastEmotions[best]
}

// Microexpressions returns the labels currently retained in the
// ten-second microexpression buffer, oldest first.
func (o *Orchestrator) Microexpressions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	markers := o.micro.snapshot(o.now())
	out := make([]string, len(markers))
	for i, m := range markers {
		out[i] = m.Label
	}
	return out
}

// SessionSummary correlates every modality's trend into one view of the
// session's direction.
type SessionSummary struct {
	SessionID string
	Stress    *Summary
	Video     *Summary
	Biometric *Summary
	Text      *Summary
}

// SessionOverview returns per-modality summaries for the current session.
// Individual summaries are nil when their windows are empty.
func (o *Orchestrator) SessionOverview() *SessionSummary {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	return &SessionSummary{
		SessionID: o.sessionID,
		Stress:    summarize(types.ModalityComprehensive, o.stress, now),
		Video:     summarize(types.ModalityVideo, o.emotion, now),
		Biometric: summarize(types.ModalityBiometric, o.heartRate, now),
		Text:      summarize(types.ModalityText, o.sentiment, now),
	}
}
