// Package types defines the core data model shared by the sessionkit
// packages: analysis requests and results as tagged unions, the wire event
// vocabulary, and session configuration.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Modality identifies a distinct analysis input/output category.
type Modality string

const (
	// ModalityVideo covers camera frames and their emotion/gaze analysis.
	ModalityVideo Modality = "video"
	// ModalityBiometric covers wearable readings (heart rate, HRV, stress).
	ModalityBiometric Modality = "biometric"
	// ModalityText covers transcript snippets and sentiment analysis.
	ModalityText Modality = "text"
	// ModalityComprehensive covers cross-modality correlated results.
	ModalityComprehensive Modality = "comprehensive"
)

// EventKind names a message on the backend wire protocol.
type EventKind string

// Outbound events (client → analysis backend).
const (
	EventVideoFrame      EventKind = "video_frame"
	EventBiometricUpdate EventKind = "biometric_update"
	EventTextAnalysis    EventKind = "text_analysis"
	EventStartAnalysis   EventKind = "start_multimodal_analysis"
	EventStopAnalysis    EventKind = "stop_multimodal_analysis"
)

// Inbound events (analysis backend → client). EventTextAnalysis is used in
// both directions by the protocol.
const (
	EventVideoAnalysis     EventKind = "video_analysis"
	EventBiometricAnalysis EventKind = "biometric_analysis"
	EventAnalysisComplete  EventKind = "analysis_complete"
	EventError             EventKind = "error"
)

// VideoFramePayload is a single captured camera frame.
type VideoFramePayload struct {
	// Data is the encoded frame (typically JPEG).
	Data []byte `json:"data"`

	// MIMEType describes the encoding, e.g. "image/jpeg".
	MIMEType string `json:"mime_type"`

	Width    int   `json:"width,omitempty"`
	Height   int   `json:"height,omitempty"`
	FrameNum int64 `json:"frame_num,omitempty"`
}

// BiometricSamplePayload is one reading cycle from a wearable source.
type BiometricSamplePayload struct {
	// DeviceKind names the producing device, e.g. "apple_watch".
	DeviceKind string `json:"device_kind"`

	// Readings maps feature name (heart_rate, hrv, stress, spo2, activity,
	// sleep) to its value. Only negotiated features appear.
	Readings map[string]float64 `json:"readings"`
}

// TextSnippetPayload is a fragment of session transcript or typed input.
type TextSnippetPayload struct {
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

// AnalysisRequest is an outbound analysis unit produced by an adapter at
// capture time. It is a tagged union: exactly one of Video, Biometric, or
// Text is set, matching Modality. Requests are immutable after creation and
// consumed exactly once by the transport (or dropped on queue overflow).
type AnalysisRequest struct {
	// ID uniquely identifies the request for tracing.
	ID string `json:"id"`

	Modality  Modality `json:"modality"`
	SessionID string   `json:"session_id,omitempty"`

	// CapturedAt is the capture timestamp in Unix milliseconds.
	CapturedAt int64 `json:"captured_at"`

	Video     *VideoFramePayload      `json:"video,omitempty"`
	Biometric *BiometricSamplePayload `json:"biometric,omitempty"`
	Text      *TextSnippetPayload     `json:"text,omitempty"`

	// Options carries per-modality analysis options (enable_emotions,
	// enable_microexpressions, sentiment_tracking, ...).
	Options map[string]any `json:"options,omitempty"`
}

// NewVideoRequest builds a video-frame analysis request stamped with the
// current time.
func NewVideoRequest(frame *VideoFramePayload, sessionID string, options map[string]any) *AnalysisRequest {
	return &AnalysisRequest{
		ID:         uuid.New().String(),
		Modality:   ModalityVideo,
		SessionID:  sessionID,
		CapturedAt: time.Now().UnixMilli(),
		Video:      frame,
		Options:    options,
	}
}

// NewBiometricRequest builds a biometric analysis request stamped with the
// current time.
func NewBiometricRequest(sample *BiometricSamplePayload, sessionID string, options map[string]any) *AnalysisRequest {
	return &AnalysisRequest{
		ID:         uuid.New().String(),
		Modality:   ModalityBiometric,
		SessionID:  sessionID,
		CapturedAt: time.Now().UnixMilli(),
		Biometric:  sample,
		Options:    options,
	}
}

// NewTextRequest builds a text analysis request stamped with the current time.
func NewTextRequest(snippet *TextSnippetPayload, sessionID string, options map[string]any) *AnalysisRequest {
	return &AnalysisRequest{
		ID:         uuid.New().String(),
		Modality:   ModalityText,
		SessionID:  sessionID,
		CapturedAt: time.Now().UnixMilli(),
		Text:       snippet,
		Options:    options,
	}
}

// Event returns the outbound wire event kind for the request's modality.
func (r *AnalysisRequest) Event() EventKind {
	switch r.Modality {
	case ModalityBiometric:
		return EventBiometricUpdate
	case ModalityText:
		return EventTextAnalysis
	default:
		return EventVideoFrame
	}
}
