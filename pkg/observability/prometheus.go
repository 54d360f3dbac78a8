package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromRecorder exports dispatch metrics to Prometheus.
type PromRecorder struct {
	SendsTotal    *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
	SendDuration  *prometheus.HistogramVec
}

// NewPromRecorder registers the notifykit collectors with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PromRecorder{
		SendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifykit_sends_total",
				Help: "Total number of channel sends by channel and status",
			},
			[]string{"channel", "status"},
		),
		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifykit_send_failures_total",
				Help: "Total number of failed channel sends by channel and error code",
			},
			[]string{"channel", "error_code"},
		),
		SendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notifykit_send_duration_seconds",
				Help:    "Channel send duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
	}
}

// RecordSend implements notify.Recorder.
func (p *PromRecorder) RecordSend(_ context.Context, channel string, d time.Duration, err error) {
	p.SendsTotal.WithLabelValues(channel, status(err)).Inc()
	p.SendDuration.WithLabelValues(channel).Observe(d.Seconds())
	if err != nil {
		p.FailuresTotal.WithLabelValues(channel, errorCode(err)).Inc()
	}
}

// Recorders fans one RecordSend out to several recorders.
type Recorders []interface {
	RecordSend(ctx context.Context, channel string, d time.Duration, err error)
}

// RecordSend implements notify.Recorder.
func (rs Recorders) RecordSend(ctx context.Context, channel string, d time.Duration, err error) {
	for _, r := range rs {
		if r != nil {
			r.RecordSend(ctx, channel, d, err)
		}
	}
}
