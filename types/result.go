package types

import (
	"encoding/json"
	"sort"
	"time"
)

// VideoResult is the structured payload of a video_analysis event. Fields
// the orchestrator does not read are preserved opaquely on AnalysisResult.Raw.
type VideoResult struct {
	// Emotions maps emotion name to a confidence score in [0, 1].
	Emotions map[string]float64 `json:"emotions,omitempty"`

	StressLevel     *float64 `json:"stress_level,omitempty"`
	EngagementLevel *float64 `json:"engagement_level,omitempty"`

	// Microexpressions lists brief expressions detected in the frame window.
	Microexpressions []string `json:"microexpressions,omitempty"`

	GazeDirection string `json:"gaze_direction,omitempty"`
}

// DominantEmotion returns the emotion with the highest score. Ties break to
// the lexicographically smallest name so the result is deterministic.
// Returns "" when no emotions are present.
func (v *VideoResult) DominantEmotion() (string, float64) {
	if len(v.Emotions) == 0 {
		return "", 0
	}
	names := make([]string, 0, len(v.Emotions))
	for name := range v.Emotions {
		names = append(names, name)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if v.Emotions[name] > v.Emotions[best] {
			best = name
		}
	}
	return best, v.Emotions[best]
}

// BiometricState is the current_state block of a biometric_analysis event.
type BiometricState struct {
	HeartRate float64 `json:"heart_rate"`
	HRV       float64 `json:"hrv,omitempty"`
	SpO2      float64 `json:"spo2,omitempty"`
}

// Alert is a backend-raised notice attached to a biometric result, e.g. an
// elevated heart rate warning.
type Alert struct {
	Kind     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

// BiometricResult is the structured payload of a biometric_analysis event.
type BiometricResult struct {
	CurrentState BiometricState `json:"current_state"`
	StressLevel  *float64       `json:"stress_level,omitempty"`
	Alerts       []Alert        `json:"alerts,omitempty"`
}

// TextResult is the structured payload of a text_analysis event.
type TextResult struct {
	// Sentiment is in [-1, 1]: negative to positive.
	Sentiment *float64 `json:"sentiment,omitempty"`

	RiskLevel string   `json:"risk_level,omitempty"`
	Topics    []string `json:"topics,omitempty"`
}

// ComprehensiveResult is the structured payload of an analysis_complete
// event correlating all active modalities.
type ComprehensiveResult struct {
	OverallState    string   `json:"overall_state,omitempty"`
	StressLevel     *float64 `json:"stress_level,omitempty"`
	EngagementLevel *float64 `json:"engagement_level,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// AnalysisResult is an inbound analysis unit delivered by the backend. It is
// a tagged union: exactly one of Video, Biometric, Text, or Comprehensive is
// set, matching Modality. Results are immutable after decoding.
type AnalysisResult struct {
	SessionID string   `json:"session_id,omitempty"`
	Modality  Modality `json:"modality"`

	// ReceivedAt is stamped by the orchestrator at delivery time.
	ReceivedAt time.Time `json:"received_at"`

	Video         *VideoResult         `json:"video,omitempty"`
	Biometric     *BiometricResult     `json:"biometric,omitempty"`
	Text          *TextResult          `json:"text,omitempty"`
	Comprehensive *ComprehensiveResult `json:"comprehensive,omitempty"`

	// Raw is the verbatim payload as delivered, for consumers that read
	// fields the core treats as opaque.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// resultEnvelope mirrors the backend payload shape: session_id alongside the
// modality-specific fields at the top level.
type resultEnvelope struct {
	SessionID string `json:"session_id"`
}

// DecodeResult parses an inbound payload for the given event kind into an
// AnalysisResult. Unknown event kinds return a nil result with no error;
// malformed JSON returns the Unmarshal error.
func DecodeResult(event EventKind, payload json.RawMessage) (*AnalysisResult, error) {
	var env resultEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}

	res := &AnalysisResult{
		SessionID:  env.SessionID,
		ReceivedAt: time.Now(),
		Raw:        payload,
	}

	switch event {
	case EventVideoAnalysis:
		res.Modality = ModalityVideo
		res.Video = &VideoResult{}
		if err := json.Unmarshal(payload, res.Video); err != nil {
			return nil, err
		}
	case EventBiometricAnalysis:
		res.Modality = ModalityBiometric
		res.Biometric = &BiometricResult{}
		if err := json.Unmarshal(payload, res.Biometric); err != nil {
			return nil, err
		}
	case EventTextAnalysis:
		res.Modality = ModalityText
		res.Text = &TextResult{}
		if err := json.Unmarshal(payload, res.Text); err != nil {
			return nil, err
		}
	case EventAnalysisComplete:
		res.Modality = ModalityComprehensive
		res.Comprehensive = &ComprehensiveResult{}
		if err := json.Unmarshal(payload, res.Comprehensive); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}

	return res, nil
}
