package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSessionConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultSessionConfig()

	assert.True(t, cfg.Video.Enabled)
	assert.Equal(t, DefaultFrameRate, cfg.Video.FrameRate)
	assert.True(t, cfg.Video.EnableEmotions)
	assert.True(t, cfg.Video.EnableMicroexpressions)
	assert.False(t, cfg.Video.EnableGazeTracking)

	assert.True(t, cfg.Biometric.Enabled)
	assert.Equal(t, DefaultBiometricInterval, cfg.Biometric.UpdateInterval)
	assert.Equal(t, []string{"simulated"}, cfg.Biometric.Devices)

	assert.True(t, cfg.Text.SentimentTracking)
	assert.Equal(t, DefaultSessionType, cfg.Session.SessionType)
}

func TestDefaultsPreserveExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := SessionConfig{
		Video:     VideoConfig{Enabled: true, FrameRate: 30},
		Biometric: BiometricConfig{Enabled: true, UpdateInterval: time.Second, Devices: []string{"apple_watch"}},
		Session:   SessionInfo{SessionType: "intake"},
	}
	cfg.Defaults()

	assert.Equal(t, 30, cfg.Video.FrameRate)
	assert.Equal(t, time.Second, cfg.Biometric.UpdateInterval)
	assert.Equal(t, []string{"apple_watch"}, cfg.Biometric.Devices)
	assert.Equal(t, "intake", cfg.Session.SessionType)
}

func TestDefaultsLeaveDisabledModalitiesAlone(t *testing.T) {
	t.Parallel()

	cfg := SessionConfig{}
	cfg.Defaults()

	// Disabled biometrics get no device list.
	assert.False(t, cfg.Biometric.Enabled)
	assert.Empty(t, cfg.Biometric.Devices)

	// Numeric defaults are still filled so enabling later behaves sanely.
	assert.Equal(t, DefaultFrameRate, cfg.Video.FrameRate)
	assert.Equal(t, DefaultBiometricInterval, cfg.Biometric.UpdateInterval)
}

func TestLoadSessionConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.yaml")
	data := `
video:
  enabled: true
  frame_rate: 10
  enable_emotions: true
biometric:
  enabled: true
  update_interval: 2s
  devices: [fitbit, garmin]
text:
  enabled: true
  sentiment_tracking: true
session:
  session_type: group
  patient_id: anon-17
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadSessionConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Video.FrameRate)
	assert.Equal(t, 2*time.Second, cfg.Biometric.UpdateInterval)
	assert.Equal(t, []string{"fitbit", "garmin"}, cfg.Biometric.Devices)
	assert.Equal(t, "group", cfg.Session.SessionType)
	assert.Equal(t, "anon-17", cfg.Session.PatientID)
}

func TestLoadSessionConfigErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadSessionConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("video: ["), 0o600))
	_, err = LoadSessionConfig(path)
	assert.Error(t, err)
}
