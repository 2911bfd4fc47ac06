package capture

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/theralink/sessionkit/logger"
	"github.com/theralink/sessionkit/types"
)

// Submitter accepts analysis requests for delivery. The orchestrator's
// Submit method satisfies it.
type Submitter interface {
	Submit(req *types.AnalysisRequest)
}

// StreamerConfig configures a frame Streamer.
type StreamerConfig struct {
	// Source supplies frames. Required.
	Source FrameSource

	// Submitter receives one analysis request per captured frame. Required.
	Submitter Submitter

	// FrameRate is the capture cadence in frames per second. Defaults to
	// types.DefaultFrameRate.
	FrameRate int

	// SessionID stamps submitted requests. Optional; the orchestrator fills
	// in the active session when empty.
	SessionID string

	// Options carries per-frame analysis options (enable_emotions,
	// enable_microexpressions, enable_gaze_tracking).
	Options map[string]any
}

// Streamer paces frames from a FrameSource into the orchestrator at a fixed
// frame rate. Frames are pulled on the limiter's cadence; a not-ready source
// (nil frame) is skipped silently.
type Streamer struct {
	cfg StreamerConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewStreamer creates a streamer. Call Start to begin capturing.
func NewStreamer(cfg StreamerConfig) (*Streamer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("frame source is required")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = types.DefaultFrameRate
	}
	return &Streamer{cfg: cfg}, nil
}

// Start opens the source and begins the paced capture loop. A permission
// denial from the source is returned here, once; the streamer is then inert.
func (s *Streamer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if err := s.cfg.Source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start frame source: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.loop(loopCtx)

	logger.Info("frame streamer started", "frame_rate", s.cfg.FrameRate)
	return nil
}

func (s *Streamer) loop(ctx context.Context) {
	defer close(s.done)

	limiter := rate.NewLimiter(rate.Limit(s.cfg.FrameRate), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		frame := s.cfg.Source.CurrentFrame()
		if frame == nil {
			continue
		}

		req := types.NewVideoRequest(&types.VideoFramePayload{
			Data:     frame.Data,
			MIMEType: frame.MIMEType,
			Width:    frame.Width,
			Height:   frame.Height,
			FrameNum: frame.Num,
		}, s.cfg.SessionID, s.cfg.Options)
		req.CapturedAt = frame.CapturedAt.UnixMilli()

		s.cfg.Submitter.Submit(req)
	}
}

// Stop cancels the capture loop, waits for it to exit, and releases the
// source. After Stop returns, no further frames are submitted.
func (s *Streamer) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	logger.Info("frame streamer stopped")
	return s.cfg.Source.Stop()
}
