package biometric

import (
	"sync"
	"time"

	"github.com/theralink/sessionkit/logger"
	"github.com/theralink/sessionkit/types"
)

// Submitter accepts analysis requests for delivery. The orchestrator's
// Submit method satisfies it.
type Submitter interface {
	Submit(req *types.AnalysisRequest)
}

// SourceConfig configures a biometric Source.
type SourceConfig struct {
	// Submitter receives one analysis request per reading cycle. Required.
	Submitter Submitter

	// UpdateInterval is the sampling cadence. Defaults to
	// types.DefaultBiometricInterval.
	UpdateInterval time.Duration

	// Reader produces readings. Defaults to a SimulatedReader.
	Reader Reader

	// SessionID stamps submitted requests. Optional; the orchestrator fills
	// in the active session when empty.
	SessionID string

	// DenyPermission makes Connect fail with ErrPermissionDenied, for
	// exercising the denial path with the simulated reader.
	DenyPermission bool
}

// Source manages one wearable connection: it negotiates a feature set at
// connect time and emits one sample per configured interval until
// disconnected.
type Source struct {
	cfg SourceConfig

	mu       sync.Mutex
	kind     DeviceKind
	features []Feature
	ticker   *time.Ticker
	stop     chan struct{}
	done     chan struct{}
}

// NewSource creates a biometric source. Call Connect to begin sampling.
func NewSource(cfg SourceConfig) *Source {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = types.DefaultBiometricInterval
	}
	if cfg.Reader == nil {
		cfg.Reader = NewSimulatedReader(uint64(time.Now().UnixNano()))
	}
	return &Source{cfg: cfg}
}

// Connect negotiates the device's feature set and starts the sampling loop.
// The negotiated features are returned to the caller. Connecting an already
// connected source returns the current feature set without side effects.
func (s *Source) Connect(kind DeviceKind) ([]Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return s.features, nil
	}

	if s.cfg.DenyPermission {
		return nil, ErrPermissionDenied
	}

	features := FeaturesFor(kind)
	if features == nil {
		return nil, ErrUnknownDevice
	}

	s.kind = kind
	s.features = features
	s.ticker = time.NewTicker(s.cfg.UpdateInterval)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.ticker, s.stop, s.done)

	logger.Info("biometric device connected",
		"device", kind, "features", len(features), "interval", s.cfg.UpdateInterval)
	return features, nil
}

func (s *Source) loop(ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Source) sample() {
	s.mu.Lock()
	kind := s.kind
	features := make([]Feature, len(s.features))
	copy(features, s.features)
	s.mu.Unlock()

	readings := s.cfg.Reader.Read(features)
	if len(readings) == 0 {
		return
	}

	req := types.NewBiometricRequest(&types.BiometricSamplePayload{
		DeviceKind: string(kind),
		Readings:   readings,
	}, s.cfg.SessionID, nil)

	s.cfg.Submitter.Submit(req)
}

// Disconnect synchronously stops the sampling loop and releases the device.
// After Disconnect returns, no further samples are submitted. Disconnecting
// an unconnected source is a no-op.
func (s *Source) Disconnect() {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return
	}
	ticker, stop, done := s.ticker, s.stop, s.done
	s.ticker, s.stop, s.done = nil, nil, nil
	s.features = nil
	kind := s.kind
	s.mu.Unlock()

	ticker.Stop()
	close(stop)
	<-done

	logger.Info("biometric device disconnected", "device", kind)
}
