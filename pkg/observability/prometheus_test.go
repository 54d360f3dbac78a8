package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
)

func TestPromRecorder_RecordSend(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPromRecorder(reg)
	ctx := context.Background()

	r.RecordSend(ctx, "bark", 5*time.Millisecond, nil)
	r.RecordSend(ctx, "bark", 5*time.Millisecond, nil)
	r.RecordSend(ctx, "feishu", time.Second, nerrors.NewDeliveryError("feishu", 400, "bad", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.SendsTotal.WithLabelValues("bark", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SendsTotal.WithLabelValues("feishu", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FailuresTotal.WithLabelValues("feishu", "CHANNEL_DELIVERY")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.SendDuration))
}

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordSend(context.Context, string, time.Duration, error) { c.n++ }

func TestRecorders_FanOut(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	rs := Recorders{a, nil, b}
	rs.RecordSend(context.Background(), "x", 0, errors.New("e"))
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
