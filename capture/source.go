// Package capture owns the media capture device for a session: frame
// sources that produce timestamped snapshots on demand, and a streamer that
// paces them into the orchestrator at the configured frame rate. No analysis
// logic lives here.
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// ErrPermissionDenied is returned by Start when the device-permission
// boundary denies camera access. It is surfaced exactly once, at start time;
// later CurrentFrame calls return nil instead of erroring.
var ErrPermissionDenied = errors.New("camera permission denied")

// Frame is a single timestamped capture snapshot.
type Frame struct {
	Data       []byte
	MIMEType   string
	Width      int
	Height     int
	Num        int64
	CapturedAt time.Time
}

// FrameSource produces frame snapshots on demand.
//
// Start surfaces unrecoverable device-access failure (permission denial)
// once; transient unavailability never errors. CurrentFrame simply returns
// nil until the device is ready. Stop synchronously releases the device; a
// stopped source produces no further frames.
type FrameSource interface {
	Start(ctx context.Context) error
	Stop() error

	// CurrentFrame returns the latest snapshot, or nil when the device is
	// not ready or the source is stopped.
	CurrentFrame() *Frame
}

// SimulatedCamera is a FrameSource producing synthetic frames, used in
// development and tests where no physical device exists.
type SimulatedCamera struct {
	mu       sync.Mutex
	running  bool
	frameNum int64

	width, height  int
	denyPermission bool
}

// CameraOption configures a SimulatedCamera.
type CameraOption func(*SimulatedCamera)

// WithResolution sets the synthetic frame dimensions.
func WithResolution(width, height int) CameraOption {
	return func(c *SimulatedCamera) {
		c.width = width
		c.height = height
	}
}

// WithPermissionDenied makes Start fail with ErrPermissionDenied, for
// exercising the denial path.
func WithPermissionDenied() CameraOption {
	return func(c *SimulatedCamera) {
		c.denyPermission = true
	}
}

// NewSimulatedCamera creates a simulated camera producing 640x480 frames by
// default.
func NewSimulatedCamera(opts ...CameraOption) *SimulatedCamera {
	c := &SimulatedCamera{width: 640, height: 480}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start implements FrameSource.
func (c *SimulatedCamera) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.denyPermission {
		return ErrPermissionDenied
	}
	c.running = true
	return nil
}

// Stop implements FrameSource.
func (c *SimulatedCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// CurrentFrame implements FrameSource. It returns nil when the camera was
// never started, was stopped, or was denied permission.
func (c *SimulatedCamera) CurrentFrame() *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	c.frameNum++

	// Synthetic payload: frame number encoded into a fixed-size buffer so
	// consumers see distinct bytes per frame.
	data := make([]byte, 16)
	binary.BigEndian.PutUint64(data, uint64(c.frameNum))

	return &Frame{
		Data:       data,
		MIMEType:   "image/jpeg",
		Width:      c.width,
		Height:     c.height,
		Num:        c.frameNum,
		CapturedAt: time.Now(),
	}
}
