package types

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default session configuration values applied by SessionConfig.Defaults.
const (
	// DefaultFrameRate is the video capture cadence in frames per second.
	DefaultFrameRate = 15

	// DefaultBiometricInterval is the wearable sampling interval.
	DefaultBiometricInterval = 5 * time.Second

	// DefaultSessionType is used when the embedding application does not
	// name a session type.
	DefaultSessionType = "therapy"
)

// VideoConfig controls the video capture/analysis pipeline for a session.
type VideoConfig struct {
	Enabled                bool `yaml:"enabled" json:"enabled"`
	FrameRate              int  `yaml:"frame_rate" json:"frame_rate"`
	EnableEmotions         bool `yaml:"enable_emotions" json:"enable_emotions"`
	EnableMicroexpressions bool `yaml:"enable_microexpressions" json:"enable_microexpressions"`
	EnableGazeTracking     bool `yaml:"enable_gaze_tracking" json:"enable_gaze_tracking"`
}

// BiometricConfig controls the wearable sampling pipeline for a session.
type BiometricConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	UpdateInterval time.Duration `yaml:"update_interval" json:"update_interval"`
	Devices        []string      `yaml:"devices" json:"devices"`
}

// UnmarshalYAML accepts update_interval either as a Go duration string
// ("2s", "500ms") or as an integer nanosecond count.
func (c *BiometricConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		Enabled        bool     `yaml:"enabled"`
		UpdateInterval string   `yaml:"update_interval"`
		Devices        []string `yaml:"devices"`
	}
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}

	c.Enabled = r.Enabled
	c.Devices = r.Devices
	if r.UpdateInterval == "" {
		c.UpdateInterval = 0
		return nil
	}

	d, err := time.ParseDuration(r.UpdateInterval)
	if err != nil {
		n, numErr := strconv.ParseInt(r.UpdateInterval, 10, 64)
		if numErr != nil {
			return fmt.Errorf("invalid update_interval %q: %w", r.UpdateInterval, err)
		}
		d = time.Duration(n)
	}
	c.UpdateInterval = d
	return nil
}

// TextConfig controls transcript analysis for a session.
type TextConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RealTimeAnalysis  bool `yaml:"real_time_analysis" json:"real_time_analysis"`
	SentimentTracking bool `yaml:"sentiment_tracking" json:"sentiment_tracking"`
}

// SessionInfo identifies the session and the participant it belongs to.
type SessionInfo struct {
	SessionID   string `yaml:"session_id" json:"session_id"`
	SessionType string `yaml:"session_type" json:"session_type"`
	PatientID   string `yaml:"patient_id" json:"patient_id"`
}

// SessionConfig configures one analysis session. Zero values are filled in
// by Defaults; a SessionConfig literal with only the fields you care about
// is valid input to StartSession.
type SessionConfig struct {
	Video     VideoConfig     `yaml:"video" json:"video"`
	Biometric BiometricConfig `yaml:"biometric" json:"biometric"`
	Text      TextConfig      `yaml:"text" json:"text"`
	Session   SessionInfo     `yaml:"session" json:"session"`
}

// DefaultSessionConfig returns a config with every modality enabled and all
// documented defaults applied.
func DefaultSessionConfig() SessionConfig {
	cfg := SessionConfig{
		Video: VideoConfig{
			Enabled:                true,
			EnableEmotions:         true,
			EnableMicroexpressions: true,
		},
		Biometric: BiometricConfig{Enabled: true},
		Text: TextConfig{
			Enabled:           true,
			RealTimeAnalysis:  true,
			SentimentTracking: true,
		},
	}
	cfg.Defaults()
	return cfg
}

// Defaults fills unset numeric and string fields with their documented
// defaults. Boolean enable flags are left as provided: an explicit
// `enabled: false` disables the modality.
func (c *SessionConfig) Defaults() {
	if c.Video.FrameRate <= 0 {
		c.Video.FrameRate = DefaultFrameRate
	}
	if c.Biometric.UpdateInterval <= 0 {
		c.Biometric.UpdateInterval = DefaultBiometricInterval
	}
	if len(c.Biometric.Devices) == 0 && c.Biometric.Enabled {
		c.Biometric.Devices = []string{"simulated"}
	}
	if c.Session.SessionType == "" {
		c.Session.SessionType = DefaultSessionType
	}
}

// LoadSessionConfig reads a YAML session configuration from path and applies
// defaults.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- caller-chosen config path
	if err != nil {
		return nil, fmt.Errorf("failed to read session config: %w", err)
	}

	var cfg SessionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse session config: %w", err)
	}

	cfg.Defaults()
	return &cfg, nil
}
