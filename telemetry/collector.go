package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
)

// Interval is the fixed collection period, §4.10.
const Interval = 1000 * time.Millisecond

// Collector periodically samples every registered Provider and hands the
// resulting batch to a ReportSink. It is itself a Provider: its own
// sample reports a cumulative count of metric rows it has ever
// delivered. Grounded on MetricsCollector::run (metrics_collector.cc).
type Collector struct {
	registry         *Registry
	localManagerLock sync.Locker
	sink             ReportSink

	mu    sync.Mutex
	id    string
	total uint64

	done chan struct{}
	once sync.Once
}

// NewCollector builds a collector that samples providers in registry,
// taking localManagerLock before registry on every pass (the fixed lock
// order §4.10 requires), and reports batches to sink. id is the
// collector's own metrics identifier; pass "" to exclude it from its own
// batches (it is still useful to run even with an empty id, for the side
// effect of driving the sink).
func NewCollector(registry *Registry, localManagerLock sync.Locker, sink ReportSink, id string) *Collector {
	if sink == nil {
		sink = DiscardSink
	}
	c := &Collector{
		registry:         registry,
		localManagerLock: localManagerLock,
		sink:             sink,
		id:               id,
		done:             make(chan struct{}),
	}
	registry.Register(c)
	return c
}

// MetricsID implements Provider.
func (c *Collector) MetricsID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Collect implements Provider: reports the cumulative row count this
// collector has delivered across all of its runs so far.
func (c *Collector) Collect(m *Metric) {
	m.Add(Uint64Field("total", atomic.LoadUint64(&c.total)))
}

// Run blocks, sampling every Interval until ctx cancels. Intended to be
// launched on its own goroutine, mirroring the dedicated collector
// thread in the original.
func (c *Collector) Run(ctx *concurrency.Context) {
	for concurrency.Sleep(ctx, Interval) {
		c.runOnce()
	}
}

// Stop unregisters the collector from its registry. Idempotent.
func (c *Collector) Stop() {
	c.once.Do(func() {
		close(c.done)
		c.registry.Unregister(c)
	})
}

func (c *Collector) runOnce() {
	now := time.Now().UnixMilli()

	c.localManagerLock.Lock()
	c.registry.Lock()
	providers := c.registry.Snapshot()

	batch := make([]Metric, 0, len(providers))
	for _, p := range providers {
		id := p.MetricsID()
		if id == "" {
			continue
		}
		m := Metric{ProviderID: id, TimestampMS: now}
		p.Collect(&m)
		if len(m.Fields) == 0 {
			continue
		}
		batch = append(batch, m)
	}

	c.registry.Unlock()
	c.localManagerLock.Unlock()

	if len(batch) == 0 {
		return
	}

	atomic.AddUint64(&c.total, uint64(len(batch)))
	c.sink.Report(batch)
}
