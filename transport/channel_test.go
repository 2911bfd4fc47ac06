package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	promkit "github.com/theralink/sessionkit/metrics/prometheus"
	"github.com/theralink/sessionkit/types"
)

// recordingHandler collects handler callbacks for assertions.
type recordingHandler struct {
	mu        sync.Mutex
	connects  int
	delivered []Envelope
	exhausted chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{exhausted: make(chan error, 1)}
}

func (h *recordingHandler) HandleConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
}

func (h *recordingHandler) HandleDeliver(event types.EventKind, payload json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delivered = append(h.delivered, Envelope{Event: event, Payload: payload})
}

func (h *recordingHandler) HandleReconnectExhausted(err error) {
	h.exhausted <- err
}

func (h *recordingHandler) connectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects
}

func (h *recordingHandler) deliveredEnvelopes() []Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Envelope, len(h.delivered))
	copy(out, h.delivered)
	return out
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsTestServer upgrades connections and hands them to serve.
func wsTestServer(t *testing.T, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestChannelRequiresHandler(t *testing.T) {
	t.Parallel()

	_, err := NewChannel(&ChannelConfig{URL: "ws://example.invalid"})
	assert.Error(t, err)
}

func TestChannelConnectAndSend(t *testing.T) {
	t.Parallel()

	received := make(chan Envelope, 1)
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		_ = json.Unmarshal(data, &env)
		received <- env
		// Keep the connection open until the client closes it.
		_, _, _ = conn.ReadMessage()
	})

	h := newRecordingHandler()
	ch, err := NewChannel(&ChannelConfig{URL: wsURL(srv), Handler: h})
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))
	assert.Equal(t, StateConnected, ch.State())
	assert.Equal(t, 1, h.connectCount())

	require.NoError(t, ch.Send(types.EventVideoFrame, map[string]string{"frame": "abc"}))

	select {
	case env := <-received:
		assert.Equal(t, types.EventVideoFrame, env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the event")
	}
}

func TestChannelConnectIsIdempotent(t *testing.T) {
	t.Parallel()

	srv := wsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	})

	h := newRecordingHandler()
	ch, err := NewChannel(&ChannelConfig{URL: wsURL(srv), Handler: h})
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Connect(context.Background()))

	assert.Equal(t, 1, h.connectCount())
}

func TestChannelSendWhileDisconnected(t *testing.T) {
	t.Parallel()

	h := newRecordingHandler()
	ch, err := NewChannel(&ChannelConfig{URL: "ws://127.0.0.1:1", Handler: h})
	require.NoError(t, err)
	defer ch.Close()

	err = ch.Send(types.EventVideoFrame, map[string]string{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestChannelDeliversInboundEvents(t *testing.T) {
	t.Parallel()

	srv := wsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		env := Envelope{
			Event:   types.EventVideoAnalysis,
			Payload: json.RawMessage(`{"emotions":{"calm":0.9}}`),
		}
		data, _ := json.Marshal(env)
		_ = conn.WriteMessage(websocket.TextMessage, data)
		_, _, _ = conn.ReadMessage()
	})

	h := newRecordingHandler()
	ch, err := NewChannel(&ChannelConfig{URL: wsURL(srv), Handler: h})
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))

	waitFor(t, 2*time.Second, func() bool { return len(h.deliveredEnvelopes()) == 1 })
	env := h.deliveredEnvelopes()[0]
	assert.Equal(t, types.EventVideoAnalysis, env.Event)
	assert.JSONEq(t, `{"emotions":{"calm":0.9}}`, string(env.Payload))
}

func TestChannelSkipsMalformedAndErrorFrames(t *testing.T) {
	t.Parallel()

	srv := wsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"payload":{}}`))
		errEnv, _ := json.Marshal(Envelope{Event: types.EventError, Payload: json.RawMessage(`{"message":"bad frame"}`)})
		_ = conn.WriteMessage(websocket.TextMessage, errEnv)
		okEnv, _ := json.Marshal(Envelope{Event: types.EventTextAnalysis, Payload: json.RawMessage(`{"sentiment":0.1}`)})
		_ = conn.WriteMessage(websocket.TextMessage, okEnv)
		_, _, _ = conn.ReadMessage()
	})

	h := newRecordingHandler()
	ch, err := NewChannel(&ChannelConfig{URL: wsURL(srv), Handler: h})
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))

	// Only the final well-formed non-error frame reaches the handler.
	waitFor(t, 2*time.Second, func() bool { return len(h.deliveredEnvelopes()) == 1 })
	assert.Equal(t, types.EventTextAnalysis, h.deliveredEnvelopes()[0].Event)
}

func TestChannelReconnectsAfterServerDrop(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	conns := 0
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		conns++
		first := conns == 1
		mu.Unlock()
		if first {
			// Drop the first connection immediately to force a reconnect.
			_ = conn.Close()
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	})

	h := newRecordingHandler()
	ch, err := NewChannel(&ChannelConfig{
		URL:           wsURL(srv),
		Handler:       h,
		ReconnectBase: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))

	waitFor(t, 2*time.Second, func() bool { return h.connectCount() == 2 })
	assert.Equal(t, StateConnected, ch.State())
}

func TestChannelReconnectExhausted(t *testing.T) {
	t.Parallel()

	accepted := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		accepted <- struct{}{}
		<-release
		_ = conn.Close()
	})

	h := newRecordingHandler()
	ch, err := NewChannel(&ChannelConfig{
		URL:                  wsURL(srv),
		Handler:              h,
		ReconnectBase:        2 * time.Millisecond,
		MaxReconnectAttempts: 3,
	})
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))
	<-accepted

	// Take the backend away entirely: the dropped connection triggers
	// reconnection, and every redial now fails until the budget runs out.
	srv.Close()
	close(release)

	select {
	case err := <-h.exhausted:
		assert.ErrorIs(t, err, ErrReconnectExhausted)
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect exhaustion was not reported")
	}
	assert.Equal(t, StateDisconnected, ch.State())

	// Every failed redial lands on the reconnect counter.
	metricsSrv := httptest.NewServer(promkit.NewExporter(":0").Handler())
	defer metricsSrv.Close()
	resp, err := metricsSrv.Client().Get(metricsSrv.URL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `sessionkit_reconnects_total{outcome="failure"}`)
}

func TestChannelCloseStopsReconnection(t *testing.T) {
	t.Parallel()

	srv := wsTestServer(t, func(conn *websocket.Conn) {
		_ = conn.Close()
	})

	h := newRecordingHandler()
	ch, err := NewChannel(&ChannelConfig{
		URL:           wsURL(srv),
		Handler:       h,
		ReconnectBase: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Close())

	err = ch.Send(types.EventVideoFrame, map[string]string{})
	assert.ErrorIs(t, err, ErrChannelClosed)

	err = ch.Connect(context.Background())
	assert.ErrorIs(t, err, ErrChannelClosed)
}
