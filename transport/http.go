package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/theralink/sessionkit/types"
	"github.com/theralink/sessionkit/version"
)

// DefaultHTTPTimeout bounds a single-shot fallback request.
const DefaultHTTPTimeout = 30 * time.Second

// videoAnalysisPath is the backend's single-shot analysis endpoint.
const videoAnalysisPath = "/api/video-analysis"

// FallbackClient performs single-shot analysis requests over HTTP when a
// persistent channel is unavailable or unwanted. Failed requests are not
// retried; the caller decides whether to resubmit.
type FallbackClient struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// FallbackOption configures a FallbackClient.
type FallbackOption func(*FallbackClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(client *http.Client) FallbackOption {
	return func(f *FallbackClient) {
		f.client = client
	}
}

// WithFallbackLogger sets the logger used for request/response logging.
func WithFallbackLogger(logger Logger) FallbackOption {
	return func(f *FallbackClient) {
		f.logger = logger
	}
}

// NewFallbackClient creates a fallback client for the given backend base URL.
func NewFallbackClient(baseURL string, opts ...FallbackOption) *FallbackClient {
	f := &FallbackClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultHTTPTimeout},
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AnalyzeFrame submits one video frame for analysis and returns the decoded
// result. Any non-2xx response is a hard failure for this request: it is
// logged and returned, never retried here.
func (f *FallbackClient) AnalyzeFrame(ctx context.Context, req *types.AnalysisRequest) (*types.AnalysisResult, error) {
	if req == nil || req.Video == nil {
		return nil, fmt.Errorf("video frame request is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+videoAnalysisPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("video analysis request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Error("video analysis request rejected",
			"status", resp.StatusCode, "request_id", req.ID)
		return nil, fmt.Errorf("video analysis returned status %d", resp.StatusCode)
	}

	result, err := types.DecodeResult(types.EventVideoAnalysis, respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to decode analysis result: %w", err)
	}
	return result, nil
}
