package telemetry_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
)

type fakeProvider struct {
	id     string
	fields []telemetry.MetricField
}

func (f *fakeProvider) MetricsID() string { return f.id }
func (f *fakeProvider) Collect(m *telemetry.Metric) {
	for _, fl := range f.fields {
		m.Add(fl)
	}
}

var _ = Describe("Registry", func() {
	It("tracks registration and deregistration", func() {
		r := telemetry.NewRegistry()
		p := &fakeProvider{id: "p1"}

		r.Register(p)
		Expect(r.Len()).To(Equal(1))

		r.Register(p)
		Expect(r.Len()).To(Equal(1))

		r.Unregister(p)
		Expect(r.Len()).To(Equal(0))
	})

	It("snapshots the current provider set while locked", func() {
		r := telemetry.NewRegistry()
		p1 := &fakeProvider{id: "p1"}
		p2 := &fakeProvider{id: "p2"}
		r.Register(p1)
		r.Register(p2)

		r.Lock()
		snap := r.Snapshot()
		r.Unlock()

		Expect(snap).To(HaveLen(2))
	})
})
