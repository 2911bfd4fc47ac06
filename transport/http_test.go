package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theralink/sessionkit/types"
)

func videoRequest() *types.AnalysisRequest {
	return types.NewVideoRequest(&types.VideoFramePayload{
		Data:     []byte{0xff, 0xd8, 0xff},
		MIMEType: "image/jpeg",
	}, "session_1", nil)
}

func TestFallbackAnalyzeFrame(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/video-analysis", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req types.AnalysisRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, types.ModalityVideo, req.Modality)
		assert.Equal(t, "session_1", req.SessionID)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"emotions":{"calm":0.8,"joy":0.1},"stress_level":0.25}`))
	}))
	defer srv.Close()

	client := NewFallbackClient(srv.URL)

	result, err := client.AnalyzeFrame(context.Background(), videoRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Video)

	name, score := result.Video.DominantEmotion()
	assert.Equal(t, "calm", name)
	assert.InDelta(t, 0.8, score, 1e-9)
	require.NotNil(t, result.Video.StressLevel)
	assert.InDelta(t, 0.25, *result.Video.StressLevel, 1e-9)
}

func TestFallbackRejectsNonVideoRequest(t *testing.T) {
	t.Parallel()

	client := NewFallbackClient("http://example.invalid")

	_, err := client.AnalyzeFrame(context.Background(), nil)
	assert.Error(t, err)

	req := types.NewTextRequest(&types.TextSnippetPayload{Text: "hi"}, "session_1", nil)
	_, err = client.AnalyzeFrame(context.Background(), req)
	assert.Error(t, err)
}

func TestFallbackNonSuccessStatusIsHardFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewFallbackClient(srv.URL)

	_, err := client.AnalyzeFrame(context.Background(), videoRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	// No internal retry: one request per call.
	assert.Equal(t, 1, calls)
}

func TestFallbackTrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/video-analysis", r.URL.Path)
		_, _ = w.Write([]byte(`{"emotions":{}}`))
	}))
	defer srv.Close()

	client := NewFallbackClient(srv.URL + "/")

	_, err := client.AnalyzeFrame(context.Background(), videoRequest())
	require.NoError(t, err)
}
