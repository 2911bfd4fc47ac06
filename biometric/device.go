// Package biometric owns wearable data sources for a session: device kinds
// with negotiated feature sets and a periodic sampler that feeds readings
// into the orchestrator. No analysis logic lives here.
package biometric

import (
	"errors"
	"math/rand/v2"
)

// Feature names a reading a device can produce.
type Feature string

// Features negotiable at connect time.
const (
	FeatureHeartRate Feature = "heart_rate"
	FeatureHRV       Feature = "hrv"
	FeatureStress    Feature = "stress"
	FeatureSpO2      Feature = "spo2"
	FeatureActivity  Feature = "activity"
	FeatureSleep     Feature = "sleep"
)

// DeviceKind identifies a supported wearable class.
type DeviceKind string

// Supported device kinds.
const (
	DeviceAppleWatch DeviceKind = "apple_watch"
	DeviceFitbit     DeviceKind = "fitbit"
	DeviceGarmin     DeviceKind = "garmin"
	DeviceSimulated  DeviceKind = "simulated"
)

// ErrUnknownDevice is returned by Connect for an unsupported device kind.
var ErrUnknownDevice = errors.New("unknown device kind")

// ErrPermissionDenied is returned by Connect when the device-permission
// boundary denies sensor access. Surfaced once, at connect time.
var ErrPermissionDenied = errors.New("biometric sensor permission denied")

// FeaturesFor returns the feature set a device kind negotiates. Unknown
// kinds return nil.
func FeaturesFor(kind DeviceKind) []Feature {
	switch kind {
	case DeviceAppleWatch:
		return []Feature{FeatureHeartRate, FeatureHRV, FeatureStress, FeatureSpO2, FeatureActivity}
	case DeviceFitbit:
		return []Feature{FeatureHeartRate, FeatureStress, FeatureActivity, FeatureSleep}
	case DeviceGarmin:
		return []Feature{FeatureHeartRate, FeatureHRV, FeatureStress, FeatureSpO2}
	case DeviceSimulated:
		return []Feature{FeatureHeartRate, FeatureHRV, FeatureStress, FeatureSpO2, FeatureActivity, FeatureSleep}
	default:
		return nil
	}
}

// Reader produces one reading cycle for a negotiated feature set.
type Reader interface {
	Read(features []Feature) map[string]float64
}

// SimulatedReader produces plausible resting-state readings with bounded
// jitter per cycle. It stands in for real device integrations in
// development and tests.
type SimulatedReader struct {
	rng *rand.Rand
}

// NewSimulatedReader creates a reader seeded for reproducible sequences.
func NewSimulatedReader(seed uint64) *SimulatedReader {
	return &SimulatedReader{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Baseline values and jitter bounds for simulated readings.
var baselines = map[Feature]struct{ base, jitter float64 }{
	FeatureHeartRate: {base: 72, jitter: 8},
	FeatureHRV:       {base: 55, jitter: 12},
	FeatureStress:    {base: 0.35, jitter: 0.15},
	FeatureSpO2:      {base: 97.5, jitter: 1.2},
	FeatureActivity:  {base: 0.2, jitter: 0.15},
	FeatureSleep:     {base: 0.8, jitter: 0.1},
}

// Read implements Reader.
func (r *SimulatedReader) Read(features []Feature) map[string]float64 {
	readings := make(map[string]float64, len(features))
	for _, f := range features {
		b, ok := baselines[f]
		if !ok {
			continue
		}
		readings[string(f)] = b.base + (r.rng.Float64()*2-1)*b.jitter
	}
	return readings
}
