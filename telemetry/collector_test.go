package telemetry_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
)

var _ = Describe("Collector", func() {
	It("drops providers with an empty id", func() {
		registry := telemetry.NewRegistry()
		registry.Register(&fakeProvider{id: "", fields: []telemetry.MetricField{telemetry.Uint64Field("x", 1)}})

		var captured []telemetry.Metric
		var mu sync.Mutex
		sink := telemetry.ReportSinkFunc(func(batch []telemetry.Metric) {
			mu.Lock()
			defer mu.Unlock()
			captured = append(captured, batch...)
		})

		c := telemetry.NewCollector(registry, &sync.Mutex{}, sink, "collector")
		defer c.Stop()

		ctx := concurrency.WithTimeout(concurrency.Background(), 30*time.Millisecond)
		c.Run(ctx)

		mu.Lock()
		defer mu.Unlock()
		for _, m := range captured {
			Expect(m.ProviderID).NotTo(Equal(""))
		}
	})

	It("drops samples with no fields", func() {
		registry := telemetry.NewRegistry()
		registry.Register(&fakeProvider{id: "empty"})

		var captured []telemetry.Metric
		var mu sync.Mutex
		sink := telemetry.ReportSinkFunc(func(batch []telemetry.Metric) {
			mu.Lock()
			defer mu.Unlock()
			captured = append(captured, batch...)
		})

		c := telemetry.NewCollector(registry, &sync.Mutex{}, sink, "")
		defer c.Stop()

		ctx := concurrency.WithTimeout(concurrency.Background(), 30*time.Millisecond)
		c.Run(ctx)

		mu.Lock()
		defer mu.Unlock()
		for _, m := range captured {
			Expect(m.ProviderID).NotTo(Equal("empty"))
		}
	})

	It("reports a cumulative total for its own provider identity", func() {
		registry := telemetry.NewRegistry()
		registry.Register(&fakeProvider{id: "p1", fields: []telemetry.MetricField{telemetry.Uint64Field("x", 1)}})

		sink := telemetry.DiscardSink
		c := telemetry.NewCollector(registry, &sync.Mutex{}, sink, "collector")
		defer c.Stop()

		m := telemetry.Metric{}
		c.Collect(&m)
		Expect(m.Fields).To(HaveLen(1))
		Expect(m.Fields[0].Name).To(Equal("total"))
	})

	It("stops sampling once its context cancels", func() {
		registry := telemetry.NewRegistry()
		c := telemetry.NewCollector(registry, &sync.Mutex{}, telemetry.DiscardSink, "c")
		defer c.Stop()

		ctx := concurrency.WithCancel(concurrency.Background())
		finished := make(chan struct{})
		go func() {
			c.Run(ctx)
			close(finished)
		}()

		ctx.Cancel()
		Eventually(finished).Should(BeClosed())
	})
})
