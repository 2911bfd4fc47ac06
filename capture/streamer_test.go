package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theralink/sessionkit/types"
)

// collectingSubmitter records submitted requests.
type collectingSubmitter struct {
	mu   sync.Mutex
	reqs []*types.AnalysisRequest
}

func (c *collectingSubmitter) Submit(req *types.AnalysisRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
}

func (c *collectingSubmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

func (c *collectingSubmitter) requests() []*types.AnalysisRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.AnalysisRequest, len(c.reqs))
	copy(out, c.reqs)
	return out
}

func waitForCount(t *testing.T, sub *collectingSubmitter, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sub.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d submitted frames, got %d", n, sub.count())
}

func TestStreamerRequiresSourceAndSubmitter(t *testing.T) {
	t.Parallel()

	_, err := NewStreamer(StreamerConfig{Submitter: &collectingSubmitter{}})
	assert.Error(t, err)

	_, err = NewStreamer(StreamerConfig{Source: NewSimulatedCamera()})
	assert.Error(t, err)
}

func TestStreamerSubmitsPacedFrames(t *testing.T) {
	t.Parallel()

	sub := &collectingSubmitter{}
	s, err := NewStreamer(StreamerConfig{
		Source:    NewSimulatedCamera(WithResolution(320, 240)),
		Submitter: sub,
		FrameRate: 100,
		SessionID: "session_9",
		Options:   map[string]any{"enable_emotions": true},
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	waitForCount(t, sub, 3)
	require.NoError(t, s.Stop())

	reqs := sub.requests()
	first := reqs[0]
	assert.Equal(t, types.ModalityVideo, first.Modality)
	assert.Equal(t, "session_9", first.SessionID)
	require.NotNil(t, first.Video)
	assert.Equal(t, "image/jpeg", first.Video.MIMEType)
	assert.Equal(t, 320, first.Video.Width)
	assert.Equal(t, 240, first.Video.Height)
	assert.Equal(t, true, first.Options["enable_emotions"])

	// Frame numbers are monotonically increasing.
	for i := 1; i < len(reqs); i++ {
		assert.Greater(t, reqs[i].Video.FrameNum, reqs[i-1].Video.FrameNum)
	}
}

func TestStreamerStopIsSynchronous(t *testing.T) {
	t.Parallel()

	sub := &collectingSubmitter{}
	s, err := NewStreamer(StreamerConfig{
		Source:    NewSimulatedCamera(),
		Submitter: sub,
		FrameRate: 200,
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	waitForCount(t, sub, 1)
	require.NoError(t, s.Stop())

	// No frames trickle in after Stop returns.
	n := sub.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, sub.count())

	// Stopping again is a no-op.
	require.NoError(t, s.Stop())
}

func TestStreamerStartIsIdempotent(t *testing.T) {
	t.Parallel()

	sub := &collectingSubmitter{}
	s, err := NewStreamer(StreamerConfig{
		Source:    NewSimulatedCamera(),
		Submitter: sub,
		FrameRate: 100,
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}

func TestStreamerPermissionDenied(t *testing.T) {
	t.Parallel()

	sub := &collectingSubmitter{}
	s, err := NewStreamer(StreamerConfig{
		Source:    NewSimulatedCamera(WithPermissionDenied()),
		Submitter: sub,
		FrameRate: 100,
	})
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)

	// The streamer is inert after a denied start.
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, sub.count())
	require.NoError(t, s.Stop())
}

func TestSimulatedCameraLifecycle(t *testing.T) {
	t.Parallel()

	cam := NewSimulatedCamera()

	// Not started: no frames.
	assert.Nil(t, cam.CurrentFrame())

	require.NoError(t, cam.Start(context.Background()))
	f1 := cam.CurrentFrame()
	require.NotNil(t, f1)
	f2 := cam.CurrentFrame()
	require.NotNil(t, f2)
	assert.Equal(t, f1.Num+1, f2.Num)
	assert.NotEqual(t, f1.Data, f2.Data)

	require.NoError(t, cam.Stop())
	assert.Nil(t, cam.CurrentFrame())
}

func TestSimulatedCameraPermissionDenied(t *testing.T) {
	t.Parallel()

	cam := NewSimulatedCamera(WithPermissionDenied())
	err := cam.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Nil(t, cam.CurrentFrame())
}
