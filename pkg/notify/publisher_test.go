package notify

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
	"github.com/kart-io/notifykit/pkg/notify/channel/channeltest"
)

func threeChannels(failing error) (*channeltest.Log, []*channeltest.Channel) {
	log := &channeltest.Log{}
	a := channeltest.New("a").WithLog(log)
	b := channeltest.New("b").WithLog(log).WithError(failing)
	c := channeltest.New("c").WithLog(log)
	return log, []*channeltest.Channel{a, b, c}
}

func attach(p *Publisher, chs []*channeltest.Channel) {
	for _, ch := range chs {
		p.Add(ch)
	}
}

func TestPublish_CallsEveryChannelInOrder(t *testing.T) {
	log, chs := threeChannels(nil)
	p := New()
	attach(p, chs)

	require.NoError(t, p.Publish(context.Background(), "content", "title"))
	assert.Equal(t, []string{"a", "b", "c"}, log.Names())
	for _, ch := range chs {
		calls := ch.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "content", calls[0].Content)
		assert.Equal(t, "title", calls[0].Title)
	}
}

func TestPublish_FailFast(t *testing.T) {
	boom := nerrors.NewDeliveryError("b", 500, "server error", nil)
	_, chs := threeChannels(boom)
	p := New()
	attach(p, chs)

	err := p.Publish(context.Background(), "x", "")
	assert.Same(t, boom, err)
	assert.Equal(t, 1, chs[0].CallCount())
	assert.Equal(t, 1, chs[1].CallCount())
	assert.Equal(t, 0, chs[2].CallCount())

	// the publisher stays usable and keeps its channels
	assert.Equal(t, 3, p.Len())
}

func TestPublishConcurrently_JoinAll(t *testing.T) {
	boom := errors.New("b exploded")
	_, chs := threeChannels(boom)
	chs[0].WithDelay(20 * time.Millisecond)
	p := New()
	attach(p, chs)

	err := p.PublishConcurrently(context.Background(), "x", "t")
	require.Error(t, err)
	for _, ch := range chs {
		assert.Equal(t, 1, ch.CallCount(), ch.Name())
	}

	var de *nerrors.DispatchError
	require.True(t, errors.As(err, &de))
	require.Equal(t, 1, de.Count())
	assert.Equal(t, "b", de.Failures[0].Channel)
	assert.Equal(t, 1, de.Failures[0].Index)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b exploded")
}

func TestPublishConcurrently_FailuresInAttachOrder(t *testing.T) {
	p := New()
	slow := channeltest.New("slow").WithError(errors.New("slow failed")).WithDelay(30 * time.Millisecond)
	fast := channeltest.New("fast").WithError(errors.New("fast failed"))
	p.Add(slow, fast)

	err := p.PublishConcurrently(context.Background(), "x", "")
	var de *nerrors.DispatchError
	require.True(t, errors.As(err, &de))
	require.Equal(t, 2, de.Count())
	assert.Equal(t, "slow", de.Failures[0].Channel)
	assert.Equal(t, "fast", de.Failures[1].Channel)
}

func TestPublish_Empty(t *testing.T) {
	p := New()
	assert.NoError(t, p.Publish(context.Background(), "x", ""))
	assert.NoError(t, p.PublishConcurrently(context.Background(), "x", ""))
}

func TestAdd(t *testing.T) {
	ch := channeltest.New("a")
	p := New(WithChannels(ch))
	p.Add(nil, ch)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []string{"a", "a"}, p.Names())

	require.NoError(t, p.Publish(context.Background(), "x", ""))
	assert.Equal(t, 2, ch.CallCount())

	snapshot := p.Channels()
	snapshot[0] = nil
	assert.NotNil(t, p.Channels()[0])
}

func TestPublishConcurrently_NativeSender(t *testing.T) {
	n := &nativeSender{Channel: channeltest.New("native")}
	p := New(WithChannels(n))
	require.NoError(t, p.PublishConcurrently(context.Background(), "x", ""))
	assert.True(t, n.used)
	assert.Equal(t, 0, n.Channel.(*channeltest.Channel).CallCount())
}

// gatedChannel blocks in Send until the gate closes.
type gatedChannel struct {
	started chan struct{}
	gate    chan struct{}
}

func (g *gatedChannel) Name() string { return "gated" }

func (g *gatedChannel) Send(ctx context.Context, _, _ string) error {
	g.started <- struct{}{}
	select {
	case <-g.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPublishConcurrently_OneGoroutinePerChannel(t *testing.T) {
	const n = 20
	g := &gatedChannel{started: make(chan struct{}, n), gate: make(chan struct{})}
	p := New()
	for i := 0; i < n; i++ {
		p.Add(g)
	}

	before := runtime.NumGoroutine()
	done := make(chan error, 1)
	go func() { done <- p.PublishConcurrently(context.Background(), "x", "") }()
	for i := 0; i < n; i++ {
		<-g.started
	}
	during := runtime.NumGoroutine() - before
	close(g.gate)
	require.NoError(t, <-done)

	// n senders plus the caller goroutine above, with a little slack.
	assert.GreaterOrEqual(t, during, n)
	assert.Less(t, during, n+n/2)
}

type nativeSender struct {
	channel.Channel
	used bool
}

func (n *nativeSender) SendConcurrently(ctx context.Context, content, title string) <-chan error {
	n.used = true
	ch := make(chan error, 1)
	ch <- nil
	return ch
}

func TestClose(t *testing.T) {
	a := channeltest.New("a")
	p := New(WithChannels(a, &plainChannel{}))
	require.NoError(t, p.Close())
	assert.Equal(t, 1, a.Closed())
}

type plainChannel struct{}

func (plainChannel) Name() string                                { return "plain" }
func (plainChannel) Send(context.Context, string, string) error { return nil }

type recordedSend struct {
	channel string
	err     error
}

type fakeRecorder struct {
	mu    sync.Mutex
	sends []recordedSend
}

func (f *fakeRecorder) RecordSend(_ context.Context, ch string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, recordedSend{ch, err})
}

func TestRecorderAndTracing(t *testing.T) {
	rec := &fakeRecorder{}
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	boom := errors.New("boom")
	p := New(
		WithRecorder(rec),
		WithTracerProvider(tp),
		WithChannels(channeltest.New("ok"), channeltest.New("bad").WithError(boom)),
	)
	require.Error(t, p.PublishConcurrently(context.Background(), "x", ""))

	assert.Len(t, rec.sends, 2)
	var failed int
	for _, s := range rec.sends {
		if s.err != nil {
			failed++
			assert.Equal(t, "bad", s.channel)
		}
	}
	assert.Equal(t, 1, failed)

	spans := sr.Ended()
	names := map[string]int{}
	for _, s := range spans {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["notify.publish"])
	assert.Equal(t, 2, names["notify.send"])
}

func TestDefaultPublisher(t *testing.T) {
	t.Cleanup(ClearDefault)
	assert.Nil(t, Default())

	p := New()
	SetDefault(p)
	assert.Same(t, p, Default())

	ClearDefault()
	assert.Nil(t, Default())
}
