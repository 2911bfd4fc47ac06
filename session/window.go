package session

import "time"

// Retention windows for per-modality result history.
const (
	// DefaultWindowDuration retains emotion, stress, engagement, sentiment,
	// and heart-rate history.
	DefaultWindowDuration = 60 * time.Second

	// MicroexpressionWindowDuration retains the short microexpression buffer.
	MicroexpressionWindowDuration = 10 * time.Second
)

// Sample is one timestamped scalar in a rolling window.
type Sample struct {
	At    time.Time
	Value float64
}

// rollingWindow retains timestamped samples no older than its duration.
// Entries stay in arrival order; pruning happens lazily on every append and
// every read and never reorders. Not goroutine-safe: owned exclusively by
// the orchestrator.
type rollingWindow struct {
	duration time.Duration
	samples  []Sample
}

func newRollingWindow(duration time.Duration) *rollingWindow {
	return &rollingWindow{duration: duration}
}

func (w *rollingWindow) append(at time.Time, value float64) {
	w.prune(at)
	w.samples = append(w.samples, Sample{At: at, Value: value})
}

// snapshot prunes against now and returns the retained samples in arrival
// order. The returned slice is shared; callers must not mutate it.
func (w *rollingWindow) snapshot(now time.Time) []Sample {
	w.prune(now)
	return w.samples
}

func (w *rollingWindow) latest(now time.Time) (Sample, bool) {
	w.prune(now)
	if len(w.samples) == 0 {
		return Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

func (w *rollingWindow) len(now time.Time) int {
	w.prune(now)
	return len(w.samples)
}

// prune drops entries older than the window. Samples arrive in order, so a
// single scan from the front suffices.
func (w *rollingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.duration)
	i := 0
	for i < len(w.samples) && w.samples[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = w.samples[i:]
	}
}

// Marker is one timestamped label in a marker window (microexpressions).
type Marker struct {
	At    time.Time
	Label string
}

// markerWindow is the label analog of rollingWindow, used for the
// short-lived microexpression buffer.
type markerWindow struct {
	duration time.Duration
	markers  []Marker
}

func newMarkerWindow(duration time.Duration) *markerWindow {
	return &markerWindow{duration: duration}
}

func (w *markerWindow) append(at time.Time, label string) {
	w.prune(at)
	w.markers = append(w.markers, Marker{At: at, Label: label})
}

func (w *markerWindow) snapshot(now time.Time) []Marker {
	w.prune(now)
	return w.markers
}

func (w *markerWindow) prune(now time.Time) {
	cutoff := now.Add(-w.duration)
	i := 0
	for i < len(w.markers) && w.markers[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.markers = w.markers[i:]
	}
}
