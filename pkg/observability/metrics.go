/*
2026 © Postgres.ai
*/

// Package observability provides counters and timing histograms of session and query processing.
package observability

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName identifies meters and tracers of the service.
const InstrumentationName = "gitlab.com/postgres-ai/hostlink"

// Metric names.
const (
	SessionsTotal     = "sessions.total"
	SessionsFree      = "sessions.free"
	SessionsUnhealthy = "sessions.unhealthy"
	QueriesRun        = "queries.run"
	LockWait          = "lock.wait"
	QueryDuration     = "query.duration"
	KeySend           = "key.send"
	ScreenWait        = "screen.wait"
)

// Metrics records service events. A nil *Metrics discards everything.
type Metrics struct {
	queriesRun    metric.Int64Counter
	lockWait      metric.Float64Histogram
	queryDuration metric.Float64Histogram
	keySend       metric.Float64Histogram
	screenWait    metric.Float64Histogram

	total     atomic.Int64
	free      atomic.Int64
	unhealthy atomic.Int64
}

// NewDefault creates metrics on the global meter provider.
func NewDefault() (*Metrics, error) {
	return New(otel.Meter(InstrumentationName))
}

// New creates metrics on the given meter.
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	if m.queriesRun, err = meter.Int64Counter(QueriesRun, metric.WithDescription("Queries run against the host")); err != nil {
		return nil, errors.Wrap(err, "failed to create a counter")
	}

	histograms := []struct {
		name   string
		target *metric.Float64Histogram
		desc   string
	}{
		{name: LockWait, target: &m.lockWait, desc: "Time spent acquiring a session lease"},
		{name: QueryDuration, target: &m.queryDuration, desc: "Duration of query instruction sets"},
		{name: KeySend, target: &m.keySend, desc: "Latency of key commands"},
		{name: ScreenWait, target: &m.screenWait, desc: "Time spent waiting for screen identification marks"},
	}

	for _, h := range histograms {
		if *h.target, err = meter.Float64Histogram(h.name, metric.WithUnit("s"), metric.WithDescription(h.desc)); err != nil {
			return nil, errors.Wrapf(err, "failed to create the %s histogram", h.name)
		}
	}

	gauges := []struct {
		name  string
		value *atomic.Int64
	}{
		{name: SessionsTotal, value: &m.total},
		{name: SessionsFree, value: &m.free},
		{name: SessionsUnhealthy, value: &m.unhealthy},
	}

	for _, g := range gauges {
		value := g.value

		if _, err := meter.Int64ObservableGauge(g.name, metric.WithInt64Callback(
			func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load())
				return nil
			})); err != nil {
			return nil, errors.Wrapf(err, "failed to create the %s gauge", g.name)
		}
	}

	return m, nil
}

// QueryRun counts a finished query.
func (m *Metrics) QueryRun(ctx context.Context, querySet string, status string) {
	if m == nil {
		return
	}

	m.queriesRun.Add(ctx, 1, metric.WithAttributes(
		attribute.String("query_set", querySet),
		attribute.String("status", status),
	))
}

// ObserveQuery records the duration of a query instruction set.
func (m *Metrics) ObserveQuery(ctx context.Context, querySet string, d time.Duration) {
	if m == nil {
		return
	}

	m.queryDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("query_set", querySet)))
}

// ObserveLockWait records the time spent acquiring a session lease.
func (m *Metrics) ObserveLockWait(ctx context.Context, logonSet string, acquired bool, d time.Duration) {
	if m == nil {
		return
	}

	m.lockWait.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("logon_set", logonSet),
		attribute.Bool("acquired", acquired),
	))
}

// ObserveKeySend records the latency of a key command.
func (m *Metrics) ObserveKeySend(ctx context.Context, key string, d time.Duration) {
	if m == nil {
		return
	}

	m.keySend.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("key", key)))
}

// ObserveScreenWait records the time spent waiting for an identification mark.
func (m *Metrics) ObserveScreenWait(ctx context.Context, mark string, matched bool, d time.Duration) {
	if m == nil {
		return
	}

	m.screenWait.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("mark", mark),
		attribute.Bool("matched", matched),
	))
}

// SetSessions publishes session gauges.
func (m *Metrics) SetSessions(total, free, unhealthy int) {
	if m == nil {
		return
	}

	m.total.Store(int64(total))
	m.free.Store(int64(free))
	m.unhealthy.Store(int64(unhealthy))
}

// Sessions returns the last published session gauges.
func (m *Metrics) Sessions() (total, free, unhealthy int) {
	if m == nil {
		return 0, 0, 0
	}

	return int(m.total.Load()), int(m.free.Load()), int(m.unhealthy.Load())
}
