package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/notifykit/pkg/notify"
	"github.com/kart-io/notifykit/pkg/notify/channel/channeltest"
	"github.com/kart-io/notifykit/pkg/observability"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNotify_OK(t *testing.T) {
	a, b := channeltest.New("a"), channeltest.New("b")
	s := New(notify.New(notify.WithChannels(a, b)))

	w := do(t, s.Handler(), http.MethodPost, "/v1/notify", `{"title":"t","content":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"dispatched":2}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, "hello", a.Calls()[0].Content)
	assert.Equal(t, "t", b.Calls()[0].Title)
}

func TestNotify_BadRequest(t *testing.T) {
	s := New(notify.New())
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"content":`},
		{"empty content", `{"title":"t","content":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodPost, "/v1/notify", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestNotify_ConcurrentFailures(t *testing.T) {
	a := channeltest.New("a").WithError(errors.New("a down"))
	b := channeltest.New("b")
	c := channeltest.New("c").WithError(errors.New("c down"))
	s := New(notify.New(notify.WithChannels(a, b, c)))

	w := do(t, s.Handler(), http.MethodPost, "/v1/notify", `{"content":"x"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []Failure{
		{Channel: "a", Error: "a down"},
		{Channel: "c", Error: "c down"},
	}, resp.Failures)
	assert.Equal(t, 1, b.CallCount())
}

func TestNotify_SequentialStopsAtFailure(t *testing.T) {
	a := channeltest.New("a").WithError(errors.New("a down"))
	b := channeltest.New("b")
	s := New(notify.New(notify.WithChannels(a, b)), WithConcurrentDefault(true))

	w := do(t, s.Handler(), http.MethodPost, "/v1/notify", `{"content":"x","concurrent":false}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 0, b.CallCount())
}

func TestHealth(t *testing.T) {
	s := New(notify.New(notify.WithChannels(channeltest.New("bark"), channeltest.New("ntfy"))))
	w := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","channels":["bark","ntfy"]}`, w.Body.String())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := observability.NewPromRecorder(reg)
	pub := notify.New(notify.WithChannels(channeltest.New("bark")), notify.WithRecorder(rec))
	s := New(pub, WithGatherer(reg))

	require.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodPost, "/v1/notify", `{"content":"x"}`).Code)

	w := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `notifykit_sends_total{channel="bark",status="success"} 1`)
}

func TestRun_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(notify.New(), WithHTTPTimeouts(time.Second, time.Second, time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
